package checker

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lukemcguire/backlinkwatch/result"
)

// fetcherFunc adapts a function to PageFetcher.
type fetcherFunc func(ctx context.Context, rawURL string) (*Page, error)

func (f fetcherFunc) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	return f(ctx, rawURL)
}

func fastRetry(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()
	if policy.MaxRetries != 1 || policy.BaseDelay != 500*time.Millisecond || policy.MaxDelay != 5*time.Second {
		t.Errorf("unexpected default policy: %+v", policy)
	}
}

func TestFetchWithRetry_RetriesServerErrors(t *testing.T) {
	var attempts int32
	f := fetcherFunc(func(ctx context.Context, rawURL string) (*Page, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return &Page{StatusCode: http.StatusInternalServerError}, nil
		}
		return &Page{StatusCode: http.StatusOK}, nil
	})

	page, err := FetchWithRetry(context.Background(), f, "http://blog.test", fastRetry(2))
	if err != nil || page.StatusCode != http.StatusOK {
		t.Fatalf("FetchWithRetry() = %+v, %v; want 200", page, err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestFetchWithRetry_DeliversLastStatusWhenExhausted(t *testing.T) {
	var attempts int32
	f := fetcherFunc(func(ctx context.Context, rawURL string) (*Page, error) {
		atomic.AddInt32(&attempts, 1)
		return &Page{StatusCode: http.StatusTooManyRequests}, nil
	})

	page, err := FetchWithRetry(context.Background(), f, "http://blog.test", fastRetry(1))
	if err != nil || page.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("FetchWithRetry() = %+v, %v; want the 429 page", page, err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestFetchWithRetry_NoRetryOnClientError(t *testing.T) {
	var attempts int32
	f := fetcherFunc(func(ctx context.Context, rawURL string) (*Page, error) {
		atomic.AddInt32(&attempts, 1)
		return &Page{StatusCode: http.StatusNotFound}, nil
	})

	if _, err := FetchWithRetry(context.Background(), f, "http://blog.test", fastRetry(3)); err != nil {
		t.Fatalf("FetchWithRetry() error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestFetchWithRetry_TransportErrors(t *testing.T) {
	tests := []struct {
		name         string
		category     result.ErrorCategory
		wantAttempts int32
	}{
		{name: "timeout retried", category: result.CategoryTimeout, wantAttempts: 3},
		{name: "refused retried", category: result.CategoryConnectionRefused, wantAttempts: 3},
		{name: "tls not retried", category: result.CategoryTLS, wantAttempts: 1},
		{name: "redirect loop not retried", category: result.CategoryRedirectLoop, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			f := fetcherFunc(func(ctx context.Context, rawURL string) (*Page, error) {
				atomic.AddInt32(&attempts, 1)
				return nil, &FetchError{URL: rawURL, Category: tt.category, Detail: "x", Attempts: 1, Err: errors.New("boom")}
			})

			_, err := FetchWithRetry(context.Background(), f, "http://blog.test", fastRetry(2))
			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
			var fe *FetchError
			if !errors.As(err, &fe) || fe.Category != tt.category {
				t.Fatalf("error = %v, want FetchError with category %s", err, tt.category)
			}
		})
	}
}

func TestFetchWithRetry_RecordsAttempts(t *testing.T) {
	f := fetcherFunc(func(ctx context.Context, rawURL string) (*Page, error) {
		return nil, &FetchError{URL: rawURL, Category: result.CategoryTimeout, Detail: "Connection timeout", Attempts: 1, Err: errors.New("slow")}
	})

	_, err := FetchWithRetry(context.Background(), f, "http://blog.test", fastRetry(1))
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", fe.Attempts)
	}
	if fe.Detail != "Connection timeout" {
		t.Errorf("Detail = %q, retries must not change the display text", fe.Detail)
	}
}

func TestFetchWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var attempts int32
	f := fetcherFunc(func(_ context.Context, rawURL string) (*Page, error) {
		atomic.AddInt32(&attempts, 1)
		cancel()
		return &Page{StatusCode: http.StatusBadGateway}, nil
	})

	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: time.Second}
	page, _ := FetchWithRetry(ctx, f, "http://blog.test", policy)
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 after cancellation", attempts)
	}
	if page == nil || page.StatusCode != http.StatusBadGateway {
		t.Errorf("expected the last page to be returned, got %+v", page)
	}
}

func TestWithRetry_ZeroRetriesReturnsNext(t *testing.T) {
	f := fetcherFunc(func(ctx context.Context, rawURL string) (*Page, error) { return nil, nil })
	if _, ok := WithRetry(f, RetryPolicy{}).(fetcherFunc); !ok {
		t.Error("WithRetry with no retries should return the wrapped fetcher")
	}
}
