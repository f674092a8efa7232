package observe

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fluxion-dev/fluxion/pkg/fluxion"
)

// MetricsConfig configures the Prometheus round hooks.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "fluxion").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for round duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus round hooks.
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

// WithBuckets sets the round-duration histogram buckets.
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
		Namespace: "fluxion",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// roundMetrics holds the Prometheus metrics for the scheduler.
type roundMetrics struct {
	roundsTotal    prometheus.Counter
	roundDuration  prometheus.Histogram
	levelsPerRound prometheus.Histogram
	pingsTotal     *prometheus.CounterVec
	nodesChanged   prometheus.Counter
}

func newRoundMetrics(config MetricsConfig) *roundMetrics {
	factory := promauto.With(config.Registry)

	return &roundMetrics{
		roundsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "rounds_total",
			Help:        "Total number of propagation rounds",
			ConstLabels: config.ConstLabels,
		}),

		roundDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "round_duration_seconds",
			Help:        "Propagation round duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		levelsPerRound: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "levels_per_round",
			Help:        "Number of level waves drained per propagation round",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 4, 8, 16, 32, 64},
		}),

		pingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pings_total",
			Help:        "Total number of delivered pings by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		nodesChanged: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "nodes_changed_total",
			Help:        "Total number of node changes that propagated to children",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Metrics returns round hooks that record scheduler activity as Prometheus
// metrics.
func Metrics(opts ...MetricsOption) fluxion.RoundHooks {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	m := newRoundMetrics(config)

	return fluxion.RoundHooks{
		RoundEnd: func(ctx context.Context, stats fluxion.RoundStats) {
			m.roundsTotal.Inc()
			m.roundDuration.Observe(stats.Duration.Seconds())
			m.levelsPerRound.Observe(float64(stats.Levels))
		},
		NodePinged: func(node fluxion.Reactor, outcome fluxion.PingOutcome) {
			m.pingsTotal.WithLabelValues(outcomeLabel(outcome)).Inc()
		},
		NodeChanged: func(node fluxion.Node) {
			m.nodesChanged.Inc()
		},
	}
}

func outcomeLabel(outcome fluxion.PingOutcome) string {
	if outcome == fluxion.OutcomePropagated {
		return "propagated"
	}
	return "absorbed"
}
