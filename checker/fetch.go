package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lukemcguire/backlinkwatch/result"
)

// Page is a fetched HTTP response. Every status code is delivered as a Page;
// only transport failures produce a FetchError.
type Page struct {
	URL         string        // requested URL
	FinalURL    string        // URL after redirects; base for relative hrefs
	StatusCode  int           // HTTP status code
	ContentType string        // Content-Type header
	Body        []byte        // body, at most Config.MaxBodyBytes
	Duration    time.Duration // time from request to last body byte
}

// FetchError is a transport-level failure: no usable HTTP response arrived.
type FetchError struct {
	URL      string
	Category result.ErrorCategory
	Detail   string // display text, at most result.MaxDetailLen runes
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("fetch %s: %v (after %d attempts)", e.URL, e.Err, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PageFetcher retrieves a page. Implementations must be safe for concurrent use.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Fetcher performs single GET requests with a bounded timeout and redirect
// chain and browser-like headers.
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// NewFetcher creates a Fetcher. A nil client gets a fresh http.Client; the
// client's redirect policy is replaced either way.
func NewFetcher(cfg Config, client *http.Client) *Fetcher {
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{}
	} else {
		clone := *client
		client = &clone
	}

	f := &Fetcher{cfg: cfg, client: client}
	client.CheckRedirect = f.checkRedirect
	return f
}

// checkRedirect stops following after MaxRedirects hops and hands back the
// last 3xx response. A chain that revisits a URL fails as a redirect loop.
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > f.cfg.MaxRedirects {
		return http.ErrUseLastResponse
	}
	next := req.URL.String()
	for _, prev := range via {
		if prev.URL.String() == next {
			return result.ErrRedirectLoop
		}
	}
	return nil
}

// Fetch issues one GET for rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (page *Page, err error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newFetchError(rawURL, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, newFetchError(rawURL, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			page, err = nil, newFetchError(rawURL, fmt.Errorf("close response body: %w", closeErr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, newFetchError(rawURL, fmt.Errorf("read body: %w", err))
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Duration:    time.Since(start),
	}, nil
}

func newFetchError(rawURL string, err error) *FetchError {
	cat := result.ClassifyError(err, 0)
	return &FetchError{
		URL:      rawURL,
		Category: cat,
		Detail:   result.TransportDetail(cat, err),
		Attempts: 1,
		Err:      err,
	}
}

// asFetchError returns err as a *FetchError, classifying foreign errors.
func asFetchError(rawURL string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return newFetchError(rawURL, err)
}
