// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the analyst server.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for model and sandbox
// latencies, ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts HTTP requests by method, route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyst_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyst_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// InFlightRequests tracks requests currently being served.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "analyst_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// ProviderRequestsTotal counts model calls.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyst_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records model call latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyst_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyst_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// ToolExecutionsTotal counts tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyst_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool_name", "status"},
	)

	// ToolDuration records tool execution time in seconds.
	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyst_tool_duration_seconds",
			Help:    "Tool execution duration",
			Buckets: LLMBuckets,
		},
		[]string{"tool_name"},
	)

	// AgentTurnsTotal counts agent turns by outcome (completed/failed).
	AgentTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyst_agent_turns_total",
			Help: "Agent turns",
		},
		[]string{"outcome"},
	)

	// AgentModelCalls records how many model calls one turn needed.
	AgentModelCalls = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analyst_agent_model_calls_per_turn",
			Help:    "Model calls per agent turn",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)

	// NormalizerDroppedTotal counts history messages skipped by the
	// normalizer, by message kind.
	NormalizerDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyst_normalizer_dropped_messages_total",
			Help: "Messages dropped during normalization",
		},
		[]string{"kind"},
	)

	// CheckpointThreads tracks the number of conversations held in memory.
	CheckpointThreads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "analyst_checkpoint_threads",
			Help: "Conversations held by the checkpoint store",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		ToolExecutionsTotal,
		ToolDuration,
		AgentTurnsTotal,
		AgentModelCalls,
		NormalizerDroppedTotal,
		CheckpointThreads,
	)
}
