package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/backlinkwatch/api"
	"github.com/lukemcguire/backlinkwatch/logger"
	"github.com/lukemcguire/backlinkwatch/metrics"
	"github.com/lukemcguire/backlinkwatch/scheduler"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic checker",
		Long: `Serve exposes the dashboard API under /api, Prometheus metrics at /metrics and
a health check at /health. When the scheduler is enabled, due backlinks are
checked on the configured cron schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			return serve(ctx, a, st)
		},
	}
}

func serve(ctx context.Context, a *app, repo api.Repository) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	svc := a.newService(a.cfg.Check.BatchLimit, m)
	if _, err := svc.Stats(ctx); err != nil {
		a.log.Warn("failed to load initial stats", logger.Error(err))
	}

	if a.cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandler(repo, svc, a.log), api.RouterConfig{
		APIToken: a.cfg.Server.APIToken,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})
	if a.cfg.Server.APIToken == "" {
		a.log.Warn("server.api_token is empty; /api is not authenticated")
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Address,
		Handler:           router,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}

	if a.cfg.Scheduler.Enabled {
		sched, err := scheduler.New(a.cfg.Scheduler.Schedule, svc, a.log)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
