// ABOUTME: Prometheus collectors for logins, cache warming and local storage
// ABOUTME: Registered on a caller-supplied registry; nil-safe helpers

// Package metrics defines the Prometheus collectors for logins, cache
// warming and local storage. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors.
type Metrics struct {
	loginOutcomes     *prometheus.CounterVec
	warmedTables      *prometheus.CounterVec
	warmDuration      prometheus.Histogram
	storeReadFailures *prometheus.CounterVec
}

// New creates the collectors and registers them on reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loginOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldsync_login_outcomes_total",
			Help: "Login attempts by outcome and the path that decided them",
		}, []string{"outcome", "path"}),
		warmedTables: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldsync_warmed_tables_total",
			Help: "Tables mirrored into the local cache, by result",
		}, []string{"table", "result"}),
		warmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fieldsync_warm_duration_seconds",
			Help:    "Duration of a full cache warm",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		storeReadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldsync_store_read_failures_total",
			Help: "Local document store reads that failed and were answered empty",
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(m.loginOutcomes, m.warmedTables, m.warmDuration, m.storeReadFailures)
	}
	return m
}

// LoginFinished counts one login attempt.
func (m *Metrics) LoginFinished(outcome, path string) {
	if m == nil {
		return
	}
	m.loginOutcomes.WithLabelValues(outcome, path).Inc()
}

// TableWarmed counts one table of a warm run.
func (m *Metrics) TableWarmed(table string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.warmedTables.WithLabelValues(table, result).Inc()
}

// WarmFinished records how long a warm run took.
func (m *Metrics) WarmFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.warmDuration.Observe(d.Seconds())
}

// StoreReadFailed counts a swallowed document store read error. Its
// signature matches docstore.Options.OnReadError.
func (m *Metrics) StoreReadFailed(op string, _ error) {
	if m == nil {
		return
	}
	m.storeReadFailures.WithLabelValues(op).Inc()
}

// Handler serves the collectors of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
