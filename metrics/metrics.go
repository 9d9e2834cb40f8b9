// Package metrics holds the Prometheus collectors for tool calls and time
// source fetches.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// UnknownTool is the tool label for calls naming an unregistered tool.
const UnknownTool = "unknown"

// Metrics provides observability for the datetime tool.
type Metrics struct {
	// Tool invocations by tool name and outcome ("ok", "error")
	ToolCalls *prometheus.CounterVec

	// Time source fetch latency by provider
	ProviderFetchDuration *prometheus.HistogramVec

	// Time source fetch failures by provider and retryability
	ProviderFailures *prometheus.CounterVec

	// Requests answered by the fallback source
	Fallbacks prometheus.Counter
}

// New creates a Metrics instance registered with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "currentdt_tool_calls_total",
			Help: "Total tool invocations by tool and outcome",
		}, []string{"tool", "outcome"}),

		ProviderFetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "currentdt_provider_fetch_duration_seconds",
			Help:    "Duration of time source fetches by provider",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),

		ProviderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "currentdt_provider_failures_total",
			Help: "Total time source fetch failures by provider and retryability",
		}, []string{"provider", "retryable"}),

		Fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "currentdt_provider_fallbacks_total",
			Help: "Total requests that fell back to another time source",
		}),
	}
}

// IncrementToolCall records a tool invocation.
func (m *Metrics) IncrementToolCall(tool string, failed bool) {
	if m != nil {
		outcome := "ok"
		if failed {
			outcome = "error"
		}
		m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	}
}

// ObserveFetch records the duration of a fetch from provider.
func (m *Metrics) ObserveFetch(provider string, d time.Duration) {
	if m != nil {
		m.ProviderFetchDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// IncrementFailure records a failed fetch.
func (m *Metrics) IncrementFailure(provider string, retryable bool) {
	if m != nil {
		m.ProviderFailures.WithLabelValues(provider, strconv.FormatBool(retryable)).Inc()
	}
}

// IncrementFallback records a request served by the fallback source.
func (m *Metrics) IncrementFallback() {
	if m != nil {
		m.Fallbacks.Inc()
	}
}
