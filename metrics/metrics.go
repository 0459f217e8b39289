// Package metrics exports Prometheus metrics for backlink checks.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lukemcguire/backlinkwatch/backlink"
	"github.com/lukemcguire/backlinkwatch/checker"
	"github.com/lukemcguire/backlinkwatch/result"
)

const (
	// Namespace is the namespace for all backlinkwatch metrics.
	Namespace = "backlinkwatch"

	subsystemCheck = "check"
	subsystemRun   = "run"
)

// Run outcome label values.
const (
	RunCompleted   = "completed"
	RunInterrupted = "interrupted"
	RunFailed      = "failed"
)

// Metrics holds all Prometheus metrics for checks, runs and stored backlinks.
type Metrics struct {
	// Check metrics
	ChecksTotal    *prometheus.CounterVec
	CheckErrors    *prometheus.CounterVec
	CheckDuration  *prometheus.HistogramVec
	AnchorMatches  *prometheus.CounterVec
	FetchRateLimit prometheus.Gauge

	// Run metrics
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	RunSkipped      prometheus.Counter
	LastRunUnixTime prometheus.Gauge

	// Stored backlink metrics
	Backlinks *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics on reg, or on the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}
	m.initCheckMetrics(factory)
	m.initRunMetrics(factory)

	m.Backlinks = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "backlinks",
			Help:      "Stored backlinks by state",
		},
		[]string{"state"},
	)
	return m
}

func (m *Metrics) initCheckMetrics(factory promauto.Factory) {
	m.ChecksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemCheck,
			Name:      "total",
			Help:      "Total number of backlink checks by status",
		},
		[]string{"status", "link_found"},
	)

	m.CheckErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemCheck,
			Name:      "errors_total",
			Help:      "Failed checks by error category",
		},
		[]string{"category"},
	)

	m.CheckDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemCheck,
			Name:      "duration_seconds",
			Help:      "Duration of a single backlink check in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"status"},
	)

	m.AnchorMatches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemCheck,
			Name:      "anchor_matches_total",
			Help:      "Found links by anchor match type",
		},
		[]string{"match_type"},
	)

	m.FetchRateLimit = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystemCheck,
			Name:      "fetch_rate_limit",
			Help:      "Current outbound request rate limit in requests per second",
		},
	)
}

func (m *Metrics) initRunMetrics(factory promauto.Factory) {
	m.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemRun,
			Name:      "total",
			Help:      "Batch runs by outcome",
		},
		[]string{"outcome"},
	)

	m.RunDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemRun,
			Name:      "duration_seconds",
			Help:      "Duration of a batch run in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
		},
	)

	m.RunSkipped = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemRun,
			Name:      "skipped_total",
			Help:      "Records selected for a run but not checked before cancellation",
		},
	)

	m.LastRunUnixTime = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystemRun,
			Name:      "last_completed_timestamp_seconds",
			Help:      "Unix time the last batch run finished",
		},
	)
}

// ObserveCheck records one verdict. It implements checker.Observer.
func (m *Metrics) ObserveCheck(v result.Verification) {
	status := string(v.Status)
	m.ChecksTotal.WithLabelValues(status, strconv.FormatBool(v.LinkFound)).Inc()
	m.CheckDuration.WithLabelValues(status).Observe(v.Duration.Seconds())

	if v.ErrorCategory != "" {
		m.CheckErrors.WithLabelValues(string(v.ErrorCategory)).Inc()
	}
	if v.LinkFound && v.MatchType != "" {
		m.AnchorMatches.WithLabelValues(string(v.MatchType)).Inc()
	}
}

// ObserveRun records the outcome of a batch run. A non-nil err marks the run
// failed.
func (m *Metrics) ObserveRun(res checker.RunResult, err error) {
	outcome := RunCompleted
	switch {
	case err != nil:
		outcome = RunFailed
	case res.Interrupted:
		outcome = RunInterrupted
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(res.Stats.Duration.Seconds())
	m.RunSkipped.Add(float64(res.Stats.Skipped))
	if err == nil {
		m.LastRunUnixTime.SetToCurrentTime()
	}
}

// SetRateLimit records the current outbound request rate.
func (m *Metrics) SetRateLimit(rps float64) {
	m.FetchRateLimit.Set(rps)
}

// SetStats publishes stored backlink counts.
func (m *Metrics) SetStats(st backlink.Stats) {
	m.Backlinks.WithLabelValues("total").Set(float64(st.Total))
	m.Backlinks.WithLabelValues("live").Set(float64(st.Live))
	m.Backlinks.WithLabelValues("error").Set(float64(st.Errors))
	m.Backlinks.WithLabelValues("unreachable").Set(float64(st.Unreachable))
	m.Backlinks.WithLabelValues("pending").Set(float64(st.Pending))
	m.Backlinks.WithLabelValues("link_found").Set(float64(st.LinksFound))
}
