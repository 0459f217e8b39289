package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"

	"github.com/lukemcguire/backlinkwatch/checker"
	"github.com/lukemcguire/backlinkwatch/config"
	"github.com/lukemcguire/backlinkwatch/logger"
	"github.com/lukemcguire/backlinkwatch/metrics"
	"github.com/lukemcguire/backlinkwatch/monitor"
	"github.com/lukemcguire/backlinkwatch/store"
)

// app holds the dependencies shared by the subcommands.
type app struct {
	cfg   *config.Config
	log   logger.Logger
	store *store.Store
}

// newApp loads configuration and builds the logger.
func newApp() (*app, error) {
	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.LogConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &app{cfg: cfg, log: log}, nil
}

// openStore opens the configured database.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, a.cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.log.Debug("database opened", logger.String("path", a.cfg.Database.Path))
	return st, nil
}

// Close releases the store and flushes the logger.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("failed to close database", logger.Error(err))
		}
	}
	_ = a.log.Sync()
}

// newService wires a runner and verifier over the opened store. m may be nil.
func (a *app) newService(batchLimit int, m *metrics.Metrics, opts ...checker.Option) *monitor.Service {
	checkCfg := a.cfg.Checker()

	runnerOpts := append([]checker.Option{checker.WithLogger(a.log)}, opts...)
	if m != nil {
		runnerOpts = append(runnerOpts, checker.WithObserver(m))
	}
	runner := checker.NewRunner(checkCfg, a.store, runnerOpts...)

	svcOpts := []monitor.Option{monitor.WithLogger(a.log)}
	if m != nil {
		svcOpts = append(svcOpts, monitor.WithMetrics(m), monitor.WithRateSource(runner.Limiter().CurrentRate))
	}
	return monitor.NewService(a.store, runner, checker.NewDefaultVerifier(checkCfg, a.log), a.cfg.Policy(), batchLimit, svcOpts...)
}

// openOutput returns stdout for "" or "-", otherwise creates path.
func openOutput(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, f.Close, nil
}
