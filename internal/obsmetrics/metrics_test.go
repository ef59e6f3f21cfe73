package obsmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// newTestMetrics builds a Metrics instance registered against a private
// registry so repeated test runs don't collide with promauto's default
// registerer, which panics on duplicate registration.
func newTestMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		OrchestratorCycles: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "test_orchestrator_cycles_total"},
			[]string{"outcome"},
		),
		OrchestratorCycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{Name: "test_orchestrator_run_duration_seconds"},
			[]string{"outcome"},
		),
		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{Name: "test_llm_request_duration_seconds"},
			[]string{"provider", "model"},
		),
		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "test_llm_requests_total"},
			[]string{"provider", "model", "status"},
		),
		LLMTokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "test_llm_tokens_total"},
			[]string{"provider", "model", "type"},
		),
		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "test_tool_executions_total"},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{Name: "test_tool_execution_duration_seconds"},
			[]string{"tool_name"},
		),
		CompressionRuns: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "test_compression_runs_total"},
			[]string{"outcome"},
		),
		CompressionRatio: factory.NewHistogram(
			prometheus.HistogramOpts{Name: "test_compression_ratio"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{Name: "test_active_sessions"},
		),
		StorageQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{Name: "test_storage_query_duration_seconds"},
			[]string{"operation"},
		),
	}, reg
}

func TestMetrics_CounterVecIncrementsByLabelCombination(t *testing.T) {
	m, reg := newTestMetrics()

	m.ToolExecutionCounter.WithLabelValues("research", "success").Inc()
	m.ToolExecutionCounter.WithLabelValues("research", "failure").Inc()
	m.ToolExecutionCounter.WithLabelValues("research", "success").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "test_tool_executions_total" {
			found = f
			break
		}
	}
	if found == nil {
		t.Fatal("expected test_tool_executions_total in gathered families")
	}
	if len(found.Metric) != 2 {
		t.Fatalf("expected 2 distinct label series, got %d", len(found.Metric))
	}

	var successCount float64
	for _, metric := range found.Metric {
		for _, label := range metric.Label {
			if label.GetName() == "status" && label.GetValue() == "success" {
				successCount = metric.GetCounter().GetValue()
			}
		}
	}
	if successCount != 2 {
		t.Errorf("success count = %v, want 2", successCount)
	}
}

func TestMetrics_GaugeAndHistogramDoNotPanic(t *testing.T) {
	m, _ := newTestMetrics()

	m.ActiveSessions.Inc()
	m.ActiveSessions.Inc()
	m.ActiveSessions.Dec()

	m.CompressionRatio.Observe(0.42)
	m.LLMRequestDuration.WithLabelValues("anthropic", "claude-sonnet-4-20250514").Observe(1.2)
	m.StorageQueryDuration.WithLabelValues("AppendMessage").Observe(0.003)
}
