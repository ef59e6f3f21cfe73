// Package obsmetrics centralizes Prometheus instrumentation for the
// planning core, grounded in the teacher's
// internal/observability/metrics.go Metrics struct (promauto-registered
// CounterVec/HistogramVec/GaugeVec fields, one struct instance shared
// across the process), scoped down to this domain's components:
// orchestration cycles, tool execution, LLM calls, compression, and
// persistence — the teacher's channel/webhook/HTTP-gateway metrics have
// no analogue here since those surfaces are out of scope.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide collection of planning-core instruments.
type Metrics struct {
	// OrchestratorCycles counts recursive cycle executions by outcome
	// (success|failure|recursion_limit).
	OrchestratorCycles *prometheus.CounterVec

	// OrchestratorCycleDuration measures one full Run() call's wall time.
	OrchestratorCycleDuration *prometheus.HistogramVec

	// LLMRequestDuration measures streaming completion call latency.
	// Labels: provider, model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts completion calls by provider, model, status.
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks input/output token consumption.
	// Labels: provider, model, type (input|output).
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by tool name and status.
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures per-call tool latency.
	ToolExecutionDuration *prometheus.HistogramVec

	// CompressionRuns counts compressor worker runs by outcome.
	CompressionRuns *prometheus.CounterVec

	// CompressionRatio observes the ratio produced by each successful run.
	CompressionRatio prometheus.Histogram

	// ActiveSessions gauges the number of live streaming sessions.
	ActiveSessions prometheus.Gauge

	// StorageQueryDuration measures DAO call latency by operation.
	StorageQueryDuration *prometheus.HistogramVec
}

// New registers and returns a Metrics instance against the default
// Prometheus registry, matching the teacher's promauto convention of
// registering at construction time rather than deferring to an explicit
// Register call.
func New() *Metrics {
	return &Metrics{
		OrchestratorCycles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtplanner_orchestrator_cycles_total",
				Help: "Total number of orchestrator cycles by outcome",
			},
			[]string{"outcome"},
		),
		OrchestratorCycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gtplanner_orchestrator_run_duration_seconds",
				Help:    "Duration of a full orchestrator Run call",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gtplanner_llm_request_duration_seconds",
				Help:    "Duration of streaming LLM completion calls",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtplanner_llm_requests_total",
				Help: "Total number of LLM completion calls by provider, model, status",
			},
			[]string{"provider", "model", "status"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtplanner_llm_tokens_total",
				Help: "Total tokens consumed by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtplanner_tool_executions_total",
				Help: "Total tool invocations by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gtplanner_tool_execution_duration_seconds",
				Help:    "Duration of individual tool calls",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		CompressionRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gtplanner_compression_runs_total",
				Help: "Total compressor worker runs by outcome",
			},
			[]string{"outcome"},
		),
		CompressionRatio: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gtplanner_compression_ratio",
				Help:    "Compressed/original message count ratio per successful run",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gtplanner_active_sessions",
				Help: "Number of currently active streaming sessions",
			},
		),
		StorageQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gtplanner_storage_query_duration_seconds",
				Help:    "Duration of persistence DAO calls by operation",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),
	}
}
