package checker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// minRateFloor keeps a backlog moving even when every host is slow.
	minRateFloor = 0.5

	// maxRateCeiling caps outbound requests per second. Backlinks live on
	// third-party sites, so this stays well below a crawler's ceiling.
	maxRateCeiling = 20.0

	// emaAlpha weights a new RTT observation against the running average.
	emaAlpha = 0.2

	// recoveryFactor raises the rate 10% per fast response.
	recoveryFactor = 1.1

	// backoffFactor bounds how far a single slow response can drop the rate.
	backoffFactor = 0.5
)

// AdaptiveLimiter adjusts the outbound request rate from observed response
// times, using an exponential moving average so one slow page does not
// collapse the rate.
type AdaptiveLimiter struct {
	limiter   *rate.Limiter
	targetRTT time.Duration

	mu          sync.RWMutex
	emaRTT      time.Duration
	currentRate float64
	fixed       bool
}

// NewAdaptiveLimiter creates a limiter starting at initialRPS.
func NewAdaptiveLimiter(initialRPS float64, targetRTT time.Duration) *AdaptiveLimiter {
	clamped := clampRate(initialRPS)
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(rate.Limit(clamped), burstFor(clamped)),
		targetRTT:   targetRTT,
		currentRate: clamped,
		emaRTT:      targetRTT,
	}
}

// Wait blocks until a request may start or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// ObserveRTT folds one response time into the average and retunes the rate.
func (a *AdaptiveLimiter) ObserveRTT(rtt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fixed || a.targetRTT <= 0 {
		return
	}

	a.emaRTT = time.Duration(emaAlpha*float64(rtt) + (1-emaAlpha)*float64(a.emaRTT))
	if a.emaRTT <= 0 {
		return
	}

	ratio := float64(a.targetRTT) / float64(a.emaRTT)

	var next float64
	if ratio < 1 {
		next = max(a.currentRate*ratio, a.currentRate*backoffFactor)
	} else {
		next = a.currentRate * recoveryFactor
	}
	next = clampRate(next)

	if math.Abs(next-a.currentRate) > 0.05 {
		a.currentRate = next
		a.limiter.SetLimit(rate.Limit(next))
		a.limiter.SetBurst(burstFor(next))
	}
}

// SetRate pins the rate and disables adaptation.
func (a *AdaptiveLimiter) SetRate(rps float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	clamped := clampRate(rps)
	a.currentRate = clamped
	a.fixed = true
	a.limiter.SetLimit(rate.Limit(clamped))
	a.limiter.SetBurst(burstFor(clamped))
}

// CurrentRate returns the current limit in requests per second.
func (a *AdaptiveLimiter) CurrentRate() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentRate
}

// CurrentEMA returns the moving average of observed response times.
func (a *AdaptiveLimiter) CurrentEMA() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.emaRTT
}

func clampRate(rps float64) float64 {
	return min(max(rps, minRateFloor), maxRateCeiling)
}

func burstFor(rps float64) int {
	return max(1, int(math.Ceil(rps)))
}

// limitedFetcher waits on the limiter before each fetch and reports the
// response time back to it.
type limitedFetcher struct {
	next    PageFetcher
	limiter *AdaptiveLimiter
}

func (l *limitedFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}
	start := time.Now()
	page, err := l.next.Fetch(ctx, rawURL)
	l.limiter.ObserveRTT(time.Since(start))
	return page, err
}
