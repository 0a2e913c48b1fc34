// Package metrics exposes the planner's Prometheus collectors on a private
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service records.
type Metrics struct {
	registry        *prometheus.Registry
	toolInvocations *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	releaseFailures *prometheus.CounterVec
	rpcRequests     *prometheus.CounterVec
}

// New registers the planner collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_tool_invocations_total",
				Help: "Tool invocations by tool and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "planner_tool_duration_seconds",
				Help:    "Duration of tool invocations.",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 150},
			},
			[]string{"tool"},
		),
		releaseFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_capability_release_failures_total",
				Help: "Capability handles that failed to close.",
			},
			[]string{"capability"},
		),
		rpcRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_rpc_requests_total",
				Help: "JSON-RPC requests by method and error code (0 on success).",
			},
			[]string{"method", "code"},
		),
	}
	m.registry.MustRegister(
		m.toolInvocations,
		m.toolDuration,
		m.releaseFailures,
		m.rpcRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveTool records one finished tool invocation.
func (m *Metrics) ObserveTool(tool, outcome string, elapsed time.Duration) {
	m.toolInvocations.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ReleaseFailed counts a capability handle that could not be closed.
func (m *Metrics) ReleaseFailed(capability string) {
	m.releaseFailures.WithLabelValues(capability).Inc()
}

// ObserveRPC records one JSON-RPC request.
func (m *Metrics) ObserveRPC(method string, code int) {
	m.rpcRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
