// Package observability holds the core's Prometheus instrumentation: a
// small set of collectors registered once and updated by the simulation
// controller and connection session. Ambient, non-core concern — the
// physics/rocket/reward packages never import this.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the registered set of core collectors.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	TicksTotal     prometheus.Counter
	TickDuration   prometheus.Histogram
	RewardPerStep  prometheus.Histogram
	PolicyFailures prometheus.Counter
	LandingOutcomes *prometheus.CounterVec
}

// New registers every collector against reg and returns the bound
// Metrics struct.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rocketsim_active_sessions",
			Help: "Number of currently running simulation sessions.",
		}),
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rocketsim_ticks_total",
			Help: "Total simulation ticks processed across all sessions.",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rocketsim_tick_duration_seconds",
			Help:    "Wall-clock duration of one controller tick.",
			Buckets: prometheus.DefBuckets,
		}),
		RewardPerStep: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rocketsim_reward_per_step",
			Help:    "Distribution of per-step reward values across all rockets.",
			Buckets: prometheus.LinearBuckets(-500, 100, 16),
		}),
		PolicyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "rocketsim_policy_predict_failures_total",
			Help: "Count of batched policy predictions that returned an error.",
		}),
		LandingOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rocketsim_landing_outcomes_total",
			Help: "Count of terminal landings by classification.",
		}, []string{"classification"}),
	}
}
