// Package metrics provides Prometheus instrumentation for browsergate:
// request counters/histograms for the Tool Registry and HTTP bridge,
// registered with the default Prometheus registry. This package does not
// serve them over HTTP; the bridge has no /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "browsergate"

var (
	// registryRequestDuration tracks Registry.Route latency by tool and outcome.
	registryRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_request_duration_seconds",
			Help:      "Tool Registry route duration in seconds, by tool and outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		[]string{"tool", "outcome"},
	)

	// registryToolsRegistered counts tool registration/unregistration events.
	registryToolsRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_tools_registered_total",
			Help:      "Total tool registry mutations by event.",
		},
		[]string{"event"}, // registered, unregistered
	)

	// registryRequestErrors counts failed routes by error type.
	registryRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_request_errors_total",
			Help:      "Total Tool Registry route failures by error type.",
		},
		[]string{"tool", "error_type"},
	)

	// registryToolsHealthy tracks how many registered tools are currently healthy.
	registryToolsHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_tools_healthy",
			Help:      "Number of tools the health cache currently reports healthy.",
		},
	)

	// httpRequestDuration tracks HTTP bridge request latency.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_bridge_request_duration_seconds",
			Help:      "HTTP bridge request duration in seconds, by route and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)

	// websocketConnectionsActive tracks live extension websocket connections.
	websocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active /ws/extension connections.",
		},
	)

	// circuitBreakerState mirrors each tool's gobreaker state (0=closed, 1=half-open, 2=open).
	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state per tool (0=closed, 1=half-open, 2=open).",
		},
		[]string{"tool"},
	)
)

// Collector implements registry.Monitor and httpbridge's timing hook on top
// of the package's Prometheus vectors. A nil *Collector is not usable; use
// New.
type Collector struct{}

// New returns a Collector. Construction is cheap — the underlying vectors
// are package-level and registered with the default registry exactly once
// via promauto, so multiple Collectors share the same series.
func New() *Collector {
	return &Collector{}
}

// IncCounter implements registry.Monitor. name selects which counter
// family to increment; tags supplies its labels. Unknown names are
// dropped rather than panicking — a Monitor must never be able to crash
// the caller it instruments.
func (c *Collector) IncCounter(name string, tags map[string]string) {
	switch name {
	case "registry.tool.registered":
		registryToolsRegistered.WithLabelValues("registered").Inc()
	case "registry.tool.unregistered":
		registryToolsRegistered.WithLabelValues("unregistered").Inc()
	case "registry.request.error":
		registryRequestErrors.WithLabelValues(tags["tool"], tags["error_type"]).Inc()
	}
}

// ObserveTiming implements registry.Monitor. ms is converted to seconds to
// match Prometheus convention.
func (c *Collector) ObserveTiming(name string, ms float64, tags map[string]string) {
	switch name {
	case "registry.request.duration":
		registryRequestDuration.WithLabelValues(tags["tool"], tags["outcome"]).Observe(ms / 1000)
	case "http_bridge.request.duration":
		httpRequestDuration.WithLabelValues(tags["route"], tags["status"]).Observe(ms / 1000)
	}
}

// SetHealthyToolCount records the current healthy-tool gauge. The Registry
// does not call it; the gauge changes only when a caller sets it.
func (c *Collector) SetHealthyToolCount(n int) {
	registryToolsHealthy.Set(float64(n))
}

// SetWebSocketConnections records the current extension websocket gauge.
func (c *Collector) SetWebSocketConnections(n int) {
	websocketConnectionsActive.Set(float64(n))
}

// CircuitState mirrors gobreaker.State's three values without importing
// gobreaker into this package's public surface.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitHalfOpen
	CircuitOpen
)

// SetCircuitBreakerState records a tool's circuit breaker state transition.
func (c *Collector) SetCircuitBreakerState(tool string, state CircuitState) {
	circuitBreakerState.WithLabelValues(tool).Set(float64(state))
}
