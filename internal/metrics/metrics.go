// Package metrics exposes the load balancer's Prometheus text-format
// telemetry surface (spec.md §6). Grounded on internal/metrics/metrics.go's
// Metrics struct and PrometheusHandler, replacing the hand-rolled counters
// and hand-written Prometheus text encoder with
// github.com/prometheus/client_golang (the library the rest of the
// retrieved pack reaches for on this exact concern).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Direction labels byte-counter observations.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Result labels health-check counter observations.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics owns every Prometheus collector the load balancer registers.
// All fields are safe for concurrent use without additional locking —
// the client_golang collectors are lock-free counter/gauge families.
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	activeConnections *prometheus.GaugeVec
	backendHealth     *prometheus.GaugeVec
	bytes             *prometheus.CounterVec
	connections       *prometheus.CounterVec
	healthChecks      *prometheus.CounterVec
}

// New builds and registers every metric family named in spec.md §6. The
// histogram buckets are 13 exponential buckets starting at 1ms with
// ratio 2.5, covering roughly 1ms to ~60s.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rustlb_requests",
			Help: "Total HTTP requests forwarded, by frontend, backend, method and status.",
		}, []string{"frontend", "backend", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rustlb_request_duration_seconds",
			Help:    "HTTP request forwarding latency, by frontend and backend.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2.5, 13),
		}, []string{"frontend", "backend"}),
		activeConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rustlb_active_connections",
			Help: "Currently open proxied connections, by frontend and backend.",
		}, []string{"frontend", "backend"}),
		backendHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rustlb_backend_health",
			Help: "Backend server health, 1 = healthy, 0 = unhealthy.",
		}, []string{"backend", "server"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rustlb_bytes",
			Help: "Bytes proxied, by frontend, backend and direction.",
		}, []string{"frontend", "backend", "direction"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rustlb_connections",
			Help: "Total connections accepted, by frontend and backend.",
		}, []string{"frontend", "backend"}),
		healthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rustlb_health_checks",
			Help: "Active health check probes, by backend, server and result.",
		}, []string{"backend", "server", "result"}),
	}

	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.activeConnections,
		m.backendHealth,
		m.bytes,
		m.connections,
		m.healthChecks,
	)
	return m
}

// RecordRequest records exactly one HTTP request observation, matching
// spec.md §4.F step 8.
func (m *Metrics) RecordRequest(frontend, backend, method, status string, elapsedSeconds float64) {
	m.requests.WithLabelValues(frontend, backend, method, status).Inc()
	m.requestDuration.WithLabelValues(frontend, backend).Observe(elapsedSeconds)
}

// ConnectionOpened increments the connection and active-connection
// counters for a frontend/backend pair.
func (m *Metrics) ConnectionOpened(frontend, backend string) {
	m.connections.WithLabelValues(frontend, backend).Inc()
	m.activeConnections.WithLabelValues(frontend, backend).Inc()
}

// ConnectionClosed decrements the active-connection gauge.
func (m *Metrics) ConnectionClosed(frontend, backend string) {
	m.activeConnections.WithLabelValues(frontend, backend).Dec()
}

// RecordBytes adds n to the byte counter for (frontend, backend, direction).
func (m *Metrics) RecordBytes(frontend, backend, direction string, n int64) {
	if n <= 0 {
		return
	}
	m.bytes.WithLabelValues(frontend, backend, direction).Add(float64(n))
}

// SetBackendHealth publishes a server's current health as 1 (healthy) or
// 0 (unhealthy).
func (m *Metrics) SetBackendHealth(backend, server string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.backendHealth.WithLabelValues(backend, server).Set(v)
}

// RecordHealthCheck increments the probe-result counter for a backend's
// server.
func (m *Metrics) RecordHealthCheck(backend, server string, success bool) {
	result := ResultFailure
	if success {
		result = ResultSuccess
	}
	m.healthChecks.WithLabelValues(backend, server, result).Inc()
}

// Handler returns the http.Handler that serves the Prometheus text
// exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
