// Package scheduler runs periodic backlink checks on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lukemcguire/backlinkwatch/checker"
	"github.com/lukemcguire/backlinkwatch/logger"
)

// Job is the periodic work; *monitor.Service implements it.
type Job interface {
	CheckDue(ctx context.Context, force bool) (*checker.RunResult, error)
}

// Parser accepts standard five-field specs and descriptors such as @daily
// and @every 6h.
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler triggers Job.CheckDue on a cron schedule. Overlapping triggers
// are skipped while a run is still active.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	spec     string
	job      Job
	log      logger.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates spec and creates a stopped Scheduler.
func New(spec string, job Job, log logger.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler requires a job")
	}
	if log == nil {
		log = logger.NewNop()
	}

	schedule, err := Parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cron expression %q: %w", spec, err)
	}

	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
		schedule: schedule,
		spec:     spec,
		job:      job,
		log:      log.With(logger.String("component", "scheduler")),
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.Trigger))
	return s, nil
}

// Start begins firing on schedule. Runs triggered by the scheduler use a
// context derived from ctx and are cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("scheduler started",
		logger.String("schedule", s.spec),
		logger.String("next_run", s.Next().Format(time.RFC3339)),
	)
}

// Stop cancels an active run and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Next returns the next time the schedule fires after now.
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(time.Now())
}

// Trigger runs one scheduled check immediately.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	s.log.Info("scheduled check triggered")
	res, err := s.job.CheckDue(ctx, false)
	if err != nil {
		s.log.Error("scheduled check failed", logger.Error(err))
		return
	}
	s.log.Info("scheduled check finished",
		logger.String("run_id", res.RunID),
		logger.Int("checked", res.Stats.Checked),
		logger.Int("links_found", res.Stats.LinksFound),
		logger.Bool("interrupted", res.Interrupted),
	)
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug("cron: "+msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error("cron: "+msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(keysAndValues []any) []logger.Field {
	out := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, logger.Any(key, keysAndValues[i+1]))
	}
	return out
}
