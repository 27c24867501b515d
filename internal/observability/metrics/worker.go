package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	auditTotal    *prometheus.CounterVec
	auditInFlight prometheus.Gauge
	auditLag      *prometheus.HistogramVec
	sweepTotal    *prometheus.CounterVec
	sweptEntries  *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	auditTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rqa",
			Subsystem: "worker",
			Name:      "audit_events_total",
			Help:      "Total processed query-audit events by status.",
		},
		[]string{"service", "status"},
	)
	auditInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rqa",
			Subsystem: "worker",
			Name:      "audit_events_in_flight",
			Help:      "Number of in-flight audit event handlers.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	auditLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rqa",
			Subsystem: "worker",
			Name:      "audit_lag_seconds",
			Help:      "Delay between answering a query and processing its audit event.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service"},
	)
	sweepTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rqa",
			Subsystem: "worker",
			Name:      "cache_sweeps_total",
			Help:      "Total cache janitor sweeps by status.",
		},
		[]string{"service", "status"},
	)
	sweptEntries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rqa",
			Subsystem: "worker",
			Name:      "cache_swept_entries",
			Help:      "Distribution of expired cache entries removed per sweep.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"service"},
	)

	registry.MustRegister(auditTotal, auditInFlight, auditLag, sweepTotal, sweptEntries)

	return &WorkerMetrics{
		registry:      registry,
		auditTotal:    auditTotal,
		auditInFlight: auditInFlight,
		auditLag:      auditLag,
		sweepTotal:    sweepTotal,
		sweptEntries:  sweptEntries,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartAuditEvent() {
	m.auditInFlight.Inc()
}

func (m *WorkerMetrics) FinishAuditEvent(service string, err error) {
	m.auditInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.auditTotal.WithLabelValues(service, status).Inc()
}

func (m *WorkerMetrics) ObserveAuditLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.auditLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) FinishCacheSweep(service string, removed int64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sweepTotal.WithLabelValues(service, status).Inc()
	if err == nil {
		m.sweptEntries.WithLabelValues(service).Observe(float64(removed))
	}
}
