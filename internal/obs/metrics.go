// Package obs holds the prometheus collectors for the incident service.
package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "incident"

// Metrics groups every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	transitionsTotal   *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	notificationsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Transition attempts by action and outcome.",
		}, []string{"action", "outcome"}),

		transitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_duration_seconds",
			Help:      "Transition attempt latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),

		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Notification delivery attempts by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transitionsTotal,
		m.transitionDuration,
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.notificationsTotal,
	)
	return m
}

// ObserveTransition records one transition attempt.
func (m *Metrics) ObserveTransition(action, outcome string, elapsed time.Duration) {
	m.transitionsTotal.WithLabelValues(action, outcome).Inc()
	m.transitionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// RequestStarted bumps the in-flight gauge and returns the matching finisher.
func (m *Metrics) RequestStarted() func(method, path, status string, elapsed time.Duration) {
	m.httpInFlight.Inc()
	return func(method, path, status string, elapsed time.Duration) {
		m.httpInFlight.Dec()
		m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(method, path, status).Observe(elapsed.Seconds())
	}
}

// ObserveDelivery counts notification deliveries ("sent" or "failed").
func (m *Metrics) ObserveDelivery(result string, n int) {
	if n <= 0 {
		return
	}
	m.notificationsTotal.WithLabelValues(result).Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
