// Package monitor runs backlink checks against the store: it picks the due
// records, runs them through a checker.Runner and keeps metrics current.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/lukemcguire/backlinkwatch/backlink"
	"github.com/lukemcguire/backlinkwatch/checker"
	"github.com/lukemcguire/backlinkwatch/logger"
	"github.com/lukemcguire/backlinkwatch/metrics"
	"github.com/lukemcguire/backlinkwatch/recheck"
	"github.com/lukemcguire/backlinkwatch/result"
)

// ErrRunInProgress is returned when a check run is requested while another
// is still running.
var ErrRunInProgress = errors.New("check run already in progress")

// Repository is the persistence the service needs.
type Repository interface {
	checker.ResultSink
	All(ctx context.Context) ([]backlink.Record, error)
	ByIDs(ctx context.Context, ids []int64) ([]backlink.Record, error)
	Stats(ctx context.Context) (backlink.Stats, error)
}

// Batch runs a set of records; *checker.Runner implements it.
type Batch interface {
	Run(ctx context.Context, records []backlink.Record) (*checker.RunResult, error)
}

// Verifier checks one record without persisting it; *checker.Verifier
// implements it.
type Verifier interface {
	Verify(ctx context.Context, rec backlink.Record) (result.Verification, error)
}

// Service coordinates check runs. At most one run is active at a time.
type Service struct {
	repo       Repository
	batch      Batch
	verifier   Verifier
	policy     recheck.Policy
	batchLimit int
	metrics    *metrics.Metrics
	rate       func() float64
	log        logger.Logger
	now        func() time.Time
	running    atomic.Bool
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics publishes run and stats metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRateSource reports the fetch rate limit after each run, e.g.
// runner.Limiter().CurrentRate.
func WithRateSource(rate func() float64) Option {
	return func(s *Service) { s.rate = rate }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides the clock used to decide which records are due.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. batchLimit caps the due records checked per
// run; zero or less means no cap.
func NewService(repo Repository, batch Batch, verifier Verifier, policy recheck.Policy, batchLimit int, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		batch:      batch,
		verifier:   verifier,
		policy:     policy,
		batchLimit: batchLimit,
		log:        logger.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckDue checks the records that are due under the recheck policy, up to
// the batch limit. With force set every record is checked regardless of when
// it was last checked, in the same priority order and without the limit.
func (s *Service) CheckDue(ctx context.Context, force bool) (*checker.RunResult, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load backlinks: %w", err)
	}

	var batch []backlink.Record
	if force {
		batch = slices.Clone(all)
		recheck.Order(batch)
	} else {
		batch = s.policy.SelectDue(all, s.now(), s.batchLimit)
	}

	s.log.Info("check run selected records",
		logger.Int("stored", len(all)),
		logger.Int("selected", len(batch)),
		logger.Bool("force", force),
	)
	return s.run(ctx, batch)
}

// CheckIDs checks the given records now, whether due or not.
func (s *Service) CheckIDs(ctx context.Context, ids []int64) (*checker.RunResult, error) {
	recs, err := s.repo.ByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load backlinks: %w", err)
	}
	return s.run(ctx, recs)
}

func (s *Service) run(ctx context.Context, records []backlink.Record) (*checker.RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	res, err := s.batch.Run(ctx, records)
	if s.metrics != nil {
		if res != nil {
			s.metrics.ObserveRun(*res, err)
		} else {
			s.metrics.ObserveRun(checker.RunResult{}, err)
		}
		if s.rate != nil {
			s.metrics.SetRateLimit(s.rate())
		}
		s.refreshStats(ctx)
	}
	if err != nil {
		return res, fmt.Errorf("check run: %w", err)
	}
	return res, nil
}

// Running reports whether a check run is active.
func (s *Service) Running() bool {
	return s.running.Load()
}

// Test verifies an ad-hoc placement without storing anything.
func (s *Service) Test(ctx context.Context, liveLink, targetURL, targetAnchor string) (result.Verification, error) {
	return s.verifier.Verify(ctx, backlink.New(liveLink, targetURL, targetAnchor))
}

// Stats returns the stored backlink counts and publishes them as metrics.
func (s *Service) Stats(ctx context.Context) (backlink.Stats, error) {
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return backlink.Stats{}, fmt.Errorf("load stats: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SetStats(st)
	}
	return st, nil
}

func (s *Service) refreshStats(ctx context.Context) {
	// ctx may already be cancelled when a run was interrupted.
	st, err := s.repo.Stats(context.WithoutCancel(ctx))
	if err != nil {
		s.log.Warn("failed to refresh backlink stats", logger.Error(err))
		return
	}
	s.metrics.SetStats(st)
}
