package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/backlinkwatch/backlink"
	"github.com/lukemcguire/backlinkwatch/logger"
	"github.com/lukemcguire/backlinkwatch/result"
)

// ResultSink persists a record after a check. Implementations must be safe
// for concurrent use; each record is saved at most once per run. An error
// wrapping backlink.ErrNotFound drops the record from the run; any other
// error aborts it.
type ResultSink interface {
	SaveCheck(ctx context.Context, rec backlink.Record) error
}

// Observer receives every verdict of a run, e.g. to export metrics.
type Observer interface {
	ObserveCheck(v result.Verification)
}

// Outcome pairs an updated record with the verdict that produced it.
type Outcome struct {
	Record       backlink.Record
	Verification result.Verification
}

// RunResult is the output of one batch run.
type RunResult struct {
	RunID       string
	Outcomes    []Outcome
	Stats       result.BatchStats
	Interrupted bool // the context was cancelled before every record was checked
}

// Runner checks batches of backlinks on a bounded worker pool.
type Runner struct {
	cfg        Config
	verifier   *Verifier
	limiter    *AdaptiveLimiter
	sink       ResultSink
	observer   Observer
	log        logger.Logger
	progressCh chan<- CheckEvent
}

// Option customizes a Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	fetcher    PageFetcher
	client     *http.Client
	observer   Observer
	log        logger.Logger
	progressCh chan<- CheckEvent
}

// WithFetcher replaces the HTTP fetcher, keeping retry, rate limiting and
// fetch sharing around it.
func WithFetcher(f PageFetcher) Option {
	return func(o *runnerOptions) { o.fetcher = f }
}

// WithHTTPClient sets the client used by the default fetcher.
func WithHTTPClient(c *http.Client) Option {
	return func(o *runnerOptions) { o.client = c }
}

// WithObserver registers a verdict observer.
func WithObserver(obs Observer) Option {
	return func(o *runnerOptions) { o.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *runnerOptions) { o.log = l }
}

// WithProgress sends a CheckEvent per checked record to ch. The caller must
// keep receiving until Run returns or the run context is cancelled.
func WithProgress(ch chan<- CheckEvent) Option {
	return func(o *runnerOptions) { o.progressCh = ch }
}

// NewRunner creates a Runner. sink may be nil for dry runs.
func NewRunner(cfg Config, sink ResultSink, opts ...Option) *Runner {
	cfg = cfg.withDefaults()

	var o runnerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewNop()
	}
	if o.fetcher == nil {
		o.fetcher = NewFetcher(cfg, o.client)
	}

	limiter := NewAdaptiveLimiter(cfg.RateLimit, cfg.TargetRTT)
	if cfg.FixedRate {
		limiter.SetRate(cfg.RateLimit)
	}

	var fetcher PageFetcher = &limitedFetcher{next: o.fetcher, limiter: limiter}
	fetcher = WithRetry(fetcher, cfg.RetryPolicy)
	fetcher = newSharedFetcher(fetcher)

	return &Runner{
		cfg:        cfg,
		verifier:   NewVerifier(fetcher, o.log),
		limiter:    limiter,
		sink:       sink,
		observer:   o.observer,
		log:        o.log,
		progressCh: o.progressCh,
	}
}

// NewDefaultVerifier returns a Verifier over a retrying HTTP fetcher, for
// single ad-hoc checks outside a batch.
func NewDefaultVerifier(cfg Config, log logger.Logger) *Verifier {
	cfg = cfg.withDefaults()
	return NewVerifier(WithRetry(NewFetcher(cfg, nil), cfg.RetryPolicy), log)
}

// Limiter exposes the runner's rate limiter.
func (r *Runner) Limiter() *AdaptiveLimiter {
	return r.limiter
}

// Run checks every record and saves each updated record to the sink.
//
// All records are validated before any fetch; an invalid record fails the
// run. Single-record failures become verdicts. A sink error is fatal and
// stops the run. Cancelling ctx stops new checks from starting; verdicts of
// checks interrupted mid-flight are discarded and counted as skipped.
func (r *Runner) Run(ctx context.Context, records []backlink.Record) (*RunResult, error) {
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("validate batch: %w", err)
		}
	}

	start := time.Now()
	runID := uuid.NewString()
	log := r.log.With(logger.String("run_id", runID))
	log.Info("batch started",
		logger.Int("records", len(records)),
		logger.Int("concurrency", r.cfg.Concurrency),
	)

	res := &RunResult{RunID: runID}
	res.Stats.Selected = len(records)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, rec := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			v, err := r.verifier.Verify(gctx, rec)
			if err != nil {
				return fmt.Errorf("verify record %d: %w", rec.ID, err)
			}
			if gctx.Err() != nil {
				return nil
			}

			updated := rec.Apply(v)
			if r.sink != nil {
				err := r.sink.SaveCheck(gctx, updated)
				if errors.Is(err, backlink.ErrNotFound) {
					log.Warn("record deleted during check",
						logger.Int64("record_id", rec.ID),
						logger.String("live_link", rec.LiveLink),
					)
					mu.Lock()
					res.Stats.Removed++
					mu.Unlock()
					return nil
				}
				if err != nil {
					return fmt.Errorf("save check for record %d: %w", rec.ID, err)
				}
			}
			if r.observer != nil {
				r.observer.ObserveCheck(v)
			}

			mu.Lock()
			res.Outcomes = append(res.Outcomes, Outcome{Record: updated, Verification: v})
			res.Stats.Add(v)
			evt := CheckEvent{
				RecordID:   rec.ID,
				LiveLink:   rec.LiveLink,
				Status:     v.Status,
				HTTPStatus: v.HTTPStatus,
				LinkFound:  v.LinkFound,
				MatchType:  v.MatchType,
				Detail:     v.ErrorDetail,
				Checked:    res.Stats.Checked,
				Total:      res.Stats.Selected,
				Found:      res.Stats.LinksFound,
				Failed:     res.Stats.Errors + res.Stats.Unreachable,
			}
			mu.Unlock()

			log.Debug("record checked",
				logger.Int64("record_id", rec.ID),
				logger.String("live_link", rec.LiveLink),
				logger.String("status", string(v.Status)),
				logger.Bool("link_found", v.LinkFound),
				logger.Int("retry_count", updated.RetryCount),
			)

			if r.progressCh != nil {
				select {
				case r.progressCh <- evt:
				case <-gctx.Done():
				}
			}
			return nil
		})
	}

	err := g.Wait()
	res.Stats.Skipped = res.Stats.Selected - res.Stats.Checked - res.Stats.Removed
	res.Stats.Duration = time.Since(start)
	if err != nil {
		log.Error("batch failed", logger.Error(err), logger.Int("checked", res.Stats.Checked))
		return res, err
	}

	res.Interrupted = res.Stats.Skipped > 0
	log.Info("batch finished",
		logger.Int("checked", res.Stats.Checked),
		logger.Int("live", res.Stats.Live),
		logger.Int("links_found", res.Stats.LinksFound),
		logger.Int("errors", res.Stats.Errors),
		logger.Int("unreachable", res.Stats.Unreachable),
		logger.Int("skipped", res.Stats.Skipped),
		logger.Int("removed", res.Stats.Removed),
		logger.Duration("duration", res.Stats.Duration),
	)
	return res, nil
}
