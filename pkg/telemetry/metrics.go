package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "fiber").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for commit duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the commit duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "fiber",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics records renderer activity as Prometheus metrics.
type Metrics struct {
	renderSlices    *prometheus.CounterVec
	renderYields    prometheus.Counter
	renderResults   *prometheus.CounterVec
	restarts        prometheus.Counter
	commits         prometheus.Counter
	commitDuration  prometheus.Histogram
	commitEffects   prometheus.Histogram
	updatesByPrio   *prometheus.CounterVec
	pendingCommits  prometheus.Gauge
	lastCommitUnixS prometheus.Gauge
}

// NewMetrics creates and registers the renderer metrics. Registering twice
// on the same registry panics, so give each renderer its own registry or
// share one Metrics between renderers.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		renderSlices: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_slices_total",
			Help:        "Total number of render slices started",
			ConstLabels: config.ConstLabels,
		}, []string{"mode"}),

		renderYields: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_yields_total",
			Help:        "Total number of render slices that yielded to the host",
			ConstLabels: config.ConstLabels,
		}),

		renderResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_results_total",
			Help:        "Total number of finished renders by exit status",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		restarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_restarts_total",
			Help:        "Total number of in-progress renders thrown away",
			ConstLabels: config.ConstLabels,
		}),

		commits: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commits_total",
			Help:        "Total number of commits",
			ConstLabels: config.ConstLabels,
		}),

		commitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commit_duration_seconds",
			Help:        "Commit duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		commitEffects: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commit_effects",
			Help:        "Number of effects applied per commit",
			ConstLabels: config.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(1, 4, 8), // 1 to 16384
		}),

		updatesByPrio: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "updates_scheduled_total",
			Help:        "Total number of scheduled updates by priority",
			ConstLabels: config.ConstLabels,
		}, []string{"priority"}),

		pendingCommits: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commits_in_progress",
			Help:        "Number of commits currently running",
			ConstLabels: config.ConstLabels,
		}),

		lastCommitUnixS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "last_commit_timestamp_seconds",
			Help:        "Unix time of the last finished commit",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) RenderStarted(_ *reconciler.Root, _ expiration.Time, sync bool) {
	mode := "concurrent"
	if sync {
		mode = "sync"
	}
	m.renderSlices.WithLabelValues(mode).Inc()
}

func (m *Metrics) RenderYielded(*reconciler.Root, expiration.Time) {
	m.renderYields.Inc()
}

func (m *Metrics) RenderFinished(_ *reconciler.Root, _ expiration.Time, status reconciler.Status) {
	m.renderResults.WithLabelValues(status.String()).Inc()
}

func (m *Metrics) Restarted(*reconciler.Root, expiration.Time) {
	m.restarts.Inc()
}

func (m *Metrics) CommitStarted(*reconciler.Root, expiration.Time) {
	m.pendingCommits.Inc()
}

func (m *Metrics) CommitFinished(_ *reconciler.Root, _ expiration.Time, effects int, d time.Duration) {
	m.pendingCommits.Dec()
	m.commits.Inc()
	m.commitDuration.Observe(d.Seconds())
	m.commitEffects.Observe(float64(effects))
	m.lastCommitUnixS.SetToCurrentTime()
}

func (m *Metrics) UpdateScheduled(_ *reconciler.Root, p scheduler.Priority, _ expiration.Time) {
	m.updatesByPrio.WithLabelValues(p.String()).Inc()
}

var _ reconciler.Observer = (*Metrics)(nil)
