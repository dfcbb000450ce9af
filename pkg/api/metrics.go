package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the domain counters/histograms exposed at GET /metrics
// (SPEC_FULL.md §6, the concrete answer to spec.md's bare "Prometheus text
// exposition" requirement).
type Metrics struct {
	registry          *prometheus.Registry
	IngestTotal       *prometheus.CounterVec
	RiskScore         prometheus.Histogram
	WorkerJobsTotal   *prometheus.CounterVec
	WebhookRequests   *prometheus.CounterVec
}

// NewMetrics constructs and registers the domain metric set against a fresh
// registry. Call once at startup.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		IngestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cacp_ingest_total",
			Help: "Total appointments submitted to POST /ingest, labeled by outcome.",
		}, []string{"compliant"}),
		RiskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cacp_risk_score",
			Help:    "Distribution of computed risk scores.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		WorkerJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cacp_worker_jobs_total",
			Help: "Total worker pipeline outcomes, labeled by outcome.",
		}, []string{"outcome"}),
		WebhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cacp_webhook_requests_total",
			Help: "Total webhook requests received, labeled by kind and result.",
		}, []string{"kind", "result"}),
	}

	registry.MustRegister(m.IngestTotal, m.RiskScore, m.WorkerJobsTotal, m.WebhookRequests)
	return m
}

// Handler returns the Prometheus text-exposition HTTP handler for this
// metric set's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
