// Package metrics exposes Prometheus instrumentation for the audit service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for audit runs and bundle refreshes.
type Metrics struct {
	Registry *prometheus.Registry

	// Audits by outcome: "ok", "invalid", "no_bundle", "error"
	AuditsTotal *prometheus.CounterVec

	// Emitted flags by severity and flag code
	FlagsTotal *prometheus.CounterVec

	// Engine latency per audit (excludes persistence)
	AuditLatency prometheus.Histogram

	// Lines on each audited statement
	LinesPerAudit prometheus.Histogram

	// Bundle cache refreshes by result: "ok", "error"
	BundleRefreshes *prometheus.CounterVec

	// Bundles currently cached
	BundlesCached prometheus.Gauge
}

// New creates a Metrics instance registered on its own registry, so several
// servers can live in one process (tests).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		AuditsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "les_audits_total",
			Help: "Total audit runs by outcome",
		}, []string{"outcome"}),

		FlagsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "les_audit_flags_total",
			Help: "Flags emitted by severity and flag code",
		}, []string{"severity", "code"}),

		AuditLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "les_audit_duration_seconds",
			Help:    "Duration of the audit pipeline for one statement",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.1},
		}),

		LinesPerAudit: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "les_audit_lines",
			Help:    "Number of statement lines per audit",
			Buckets: []float64{5, 10, 15, 20, 30, 50, 100},
		}),

		BundleRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "les_bundle_refreshes_total",
			Help: "Rate-table cache refreshes by result",
		}, []string{"result"}),

		BundlesCached: f.NewGauge(prometheus.GaugeOpts{
			Name: "les_bundles_cached",
			Help: "Rate-table bundle versions held in memory",
		}),
	}
}

// ObserveAudit records one completed audit.
func (m *Metrics) ObserveAudit(outcome string, lines int, d time.Duration) {
	if m != nil {
		m.AuditsTotal.WithLabelValues(outcome).Inc()
		if outcome == "ok" {
			m.AuditLatency.Observe(d.Seconds())
			m.LinesPerAudit.Observe(float64(lines))
		}
	}
}

// IncrementFlag records an emitted flag.
func (m *Metrics) IncrementFlag(severity, code string) {
	if m != nil {
		m.FlagsTotal.WithLabelValues(severity, code).Inc()
	}
}

// ObserveRefresh records a bundle refresh and the resulting cache size.
func (m *Metrics) ObserveRefresh(err error, cached int) {
	if m == nil {
		return
	}
	if err != nil {
		m.BundleRefreshes.WithLabelValues("error").Inc()
		return
	}
	m.BundleRefreshes.WithLabelValues("ok").Inc()
	m.BundlesCached.Set(float64(cached))
}
