// Package metrics exposes the engine's commit outcomes as Prometheus
// collectors: ambient observability that stays in place even when a
// feature-scoped Non-goal excludes a specific outer surface.
//
// Grounded on pkg/server.ServeHTTP's dedicated prometheus.Registry
// (not the global default registry) plus the standard Go/process
// collectors, registered once at startup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the commit, lock-denial and open-session collectors,
// all registered on Registry. They change only through ObserveCommit or
// direct use of the fields; the transaction engine and RPC dispatcher
// do not update them.
type Metrics struct {
	Registry *prometheus.Registry

	CommitsTotal   *prometheus.CounterVec
	CommitDuration prometheus.Histogram
	LockDenied     prometheus.Counter
	SessionsOpen   prometheus.Gauge
}

// New builds a fresh registry with the standard Go/process collectors
// plus the engine's own metrics, matching pkg/server.ServeHTTP's
// registration sequence.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,
		CommitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clixon_engine",
			Name:      "commits_total",
			Help:      "Total number of commit attempts by outcome.",
		}, []string{"outcome"}),
		CommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clixon_engine",
			Name:      "commit_duration_seconds",
			Help:      "Duration of commit attempts from init to terminal phase.",
			Buckets:   prometheus.DefBuckets,
		}),
		LockDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clixon_engine",
			Name:      "lock_denied_total",
			Help:      "Total number of lock/edit-config attempts rejected as in-use.",
		}),
		SessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clixon_engine",
			Name:      "sessions_open",
			Help:      "Number of currently open client sessions.",
		}),
	}
	reg.MustRegister(m.CommitsTotal, m.CommitDuration, m.LockDenied, m.SessionsOpen)
	return m
}

// ObserveCommit records the outcome and wall-clock duration of a single
// commit attempt.
func (m *Metrics) ObserveCommit(outcome string, seconds float64) {
	m.CommitsTotal.WithLabelValues(outcome).Inc()
	m.CommitDuration.Observe(seconds)
}
