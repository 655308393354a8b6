package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CascadeMetrics exposes counters/histograms for booking form sessions.
type CascadeMetrics struct {
	fetchTotal     *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	staleDropped   *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

func NewCascadeMetrics(reg prometheus.Registerer) *CascadeMetrics {
	m := &CascadeMetrics{
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "fetch_total",
			Help:      "Total availability gateway calls",
		}, []string{"resource", "outcome"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "availability",
			Name:      "fetch_latency_seconds",
			Help:      "Latency of availability gateway calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource"}),
		staleDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "cascade",
			Name:      "stale_results_dropped_total",
			Help:      "Fetch results discarded because the selection changed",
		}, []string{"field"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "confirmation",
			Name:      "submissions_total",
			Help:      "Booking submissions by outcome",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "booking",
			Subsystem: "forms",
			Name:      "active_sessions",
			Help:      "Form sessions currently open",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.fetchTotal, m.fetchLatency, m.staleDropped, m.submissions, m.activeSessions)
	return m
}

// ObserveFetch records one gateway call.
func (m *CascadeMetrics) ObserveFetch(resource, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(resource, outcome).Inc()
	m.fetchLatency.WithLabelValues(resource).Observe(elapsed.Seconds())
}

func (m *CascadeMetrics) ObserveStaleDrop(field string) {
	if m == nil {
		return
	}
	m.staleDropped.WithLabelValues(field).Inc()
}

func (m *CascadeMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *CascadeMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *CascadeMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
