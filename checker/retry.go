package checker

import (
	"context"
	"net/http"
	"time"

	"github.com/lukemcguire/backlinkwatch/result"
)

// RetryPolicy configures retries of transient fetch failures.
type RetryPolicy struct {
	MaxRetries int           // retries after the first attempt (1 = 2 attempts)
	BaseDelay  time.Duration // initial backoff delay
	MaxDelay   time.Duration // backoff cap
}

// DefaultRetryPolicy returns 1 retry, 500ms base delay, 5s max delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

// FetchWithRetry wraps f.Fetch with exponential backoff. It retries
// transient failures (timeouts, refused connections, DNS hiccups, HTTP 429
// and 5xx) and returns the last outcome once retries are exhausted, so a
// persistent 503 still reaches the caller as a Page.
func FetchWithRetry(ctx context.Context, f PageFetcher, rawURL string, policy RetryPolicy) (*Page, error) {
	backoff := policy.BaseDelay
	var (
		page *Page
		err  error
	)

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return page, err
			case <-time.After(backoff):
				backoff = min(backoff*2, policy.MaxDelay)
			}
		}

		page, err = f.Fetch(ctx, rawURL)
		if !shouldRetry(page, err) {
			return page, err
		}
		if err != nil {
			fe := asFetchError(rawURL, err)
			fe.Attempts = attempt + 1
			err = fe
		}
	}

	return page, err
}

// shouldRetry reports whether an outcome is worth another attempt.
func shouldRetry(page *Page, err error) bool {
	if err != nil {
		switch asFetchError("", err).Category {
		case result.CategoryTimeout, result.CategoryConnectionRefused, result.CategoryDNSFailure:
			return true
		default:
			return false
		}
	}
	if page == nil {
		return false
	}
	return page.StatusCode == http.StatusTooManyRequests || page.StatusCode >= 500
}

// retryingFetcher applies a RetryPolicy to every fetch.
type retryingFetcher struct {
	next   PageFetcher
	policy RetryPolicy
}

// WithRetry wraps next so every fetch goes through FetchWithRetry.
func WithRetry(next PageFetcher, policy RetryPolicy) PageFetcher {
	if policy.MaxRetries <= 0 {
		return next
	}
	return &retryingFetcher{next: next, policy: policy}
}

func (r *retryingFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	return FetchWithRetry(ctx, r.next, rawURL, r.policy)
}
