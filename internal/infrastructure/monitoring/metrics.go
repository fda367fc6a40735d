// Package monitoring handles Prometheus metrics collection
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	generationsTotal     *prometheus.CounterVec
	quotaDenialsTotal    *prometheus.CounterVec
	webhookEventsTotal   *prometheus.CounterVec
	profilesCreatedTotal prometheus.Counter
}

// NewMetrics creates and registers the application collectors on a private
// registry so tests can build as many instances as they need.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		generationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generations_total",
				Help: "Total generation calls by outcome",
			},
			[]string{"outcome"},
		),
		quotaDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_denials_total",
				Help: "Total quota-exceeded denials by caller type",
			},
			[]string{"caller"},
		),
		webhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Total payment webhook events by provider and result",
			},
			[]string{"provider", "result"},
		),
		profilesCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "profiles_created_total",
				Help: "Total registered profiles",
			},
		),
	}

	registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.generationsTotal,
		m.quotaDenialsTotal,
		m.webhookEventsTotal,
		m.profilesCreatedTotal,
	)

	return m
}

// HTTPRequest records one served HTTP request
func (m *Metrics) HTTPRequest(method, path, statusCode string, seconds float64) {
	m.httpRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// GenerationFinished records one external generation call
func (m *Metrics) GenerationFinished(outcome string) {
	m.generationsTotal.WithLabelValues(outcome).Inc()
}

// QuotaDenied records one quota-exceeded denial
func (m *Metrics) QuotaDenied(anonymous bool) {
	caller := "user"
	if anonymous {
		caller = "anonymous"
	}
	m.quotaDenialsTotal.WithLabelValues(caller).Inc()
}

// WebhookEvent records one processed webhook delivery
func (m *Metrics) WebhookEvent(provider, result string) {
	m.webhookEventsTotal.WithLabelValues(provider, result).Inc()
}

// ProfileCreated records one registration
func (m *Metrics) ProfileCreated() {
	m.profilesCreatedTotal.Inc()
}

// Handler returns the /metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
