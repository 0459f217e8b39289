// Package checker verifies that backlinks are still present on the pages
// they were placed on. It fetches each page, scans its anchors for the
// target URL and anchor text, and reduces the outcome to one verdict per
// record. Batches run on a bounded worker pool with adaptive rate limiting.
package checker

import "time"

// DefaultUserAgent identifies requests as a desktop browser; some sites
// refuse clients that look like bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds fetch and batch settings.
type Config struct {
	RequestTimeout time.Duration // per-request timeout (default 15s)
	MaxRedirects   int           // redirects followed before the last 3xx is returned (default 5)
	UserAgent      string        // User-Agent header sent with every request
	MaxBodyBytes   int64         // bytes of a page body read at most (default 5 MiB)
	RetryPolicy    RetryPolicy   // retry behaviour for transient failures

	Concurrency int           // records checked in parallel (default 4)
	RateLimit   float64       // initial outbound requests per second (default 5)
	TargetRTT   time.Duration // response time the adaptive limiter aims for (default 2s)
	FixedRate   bool          // disable rate adaptation and keep RateLimit
}

// DefaultConfig returns a Config with the defaults used by the CLI and server.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 15 * time.Second,
		MaxRedirects:   5,
		UserAgent:      DefaultUserAgent,
		MaxBodyBytes:   5 << 20,
		RetryPolicy:    DefaultRetryPolicy(),
		Concurrency:    4,
		RateLimit:      5,
		TargetRTT:      2 * time.Second,
	}
}

// withDefaults fills zero values from DefaultConfig. MaxRedirects and
// RetryPolicy.MaxRetries keep zero since both are meaningful.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.MaxRedirects < 0 {
		c.MaxRedirects = def.MaxRedirects
	}
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.RetryPolicy.BaseDelay <= 0 {
		c.RetryPolicy.BaseDelay = def.RetryPolicy.BaseDelay
	}
	if c.RetryPolicy.MaxDelay <= 0 {
		c.RetryPolicy.MaxDelay = def.RetryPolicy.MaxDelay
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.RateLimit <= 0 {
		c.RateLimit = def.RateLimit
	}
	if c.TargetRTT <= 0 {
		c.TargetRTT = def.TargetRTT
	}
	return c
}
