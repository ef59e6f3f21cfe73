package planning

import (
	"context"
	"encoding/json"
	"testing"
)

type noopReporter struct{}

func (noopReporter) ReportProgress(callID, message string) {}

func TestToolRecommendTool_MatchesCatalogKeyword(t *testing.T) {
	tool := ToolRecommendTool{}
	args, _ := json.Marshal(map[string]string{"requirement": "need durable storage"})

	out, err := tool.Invoke(context.Background(), args, noopReporter{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	var result struct {
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Recommendations) == 0 {
		t.Error("expected at least one recommendation")
	}
}

func TestToolRecommendTool_RequiresRequirement(t *testing.T) {
	tool := ToolRecommendTool{}
	args, _ := json.Marshal(map[string]string{"requirement": ""})

	if _, err := tool.Invoke(context.Background(), args, noopReporter{}); err == nil {
		t.Error("expected error for empty requirement")
	}
}

func TestResearchTool_ReturnsFindings(t *testing.T) {
	tool := ResearchTool{}
	args, _ := json.Marshal(map[string]string{"topic": "vector databases"})

	out, err := tool.Invoke(context.Background(), args, noopReporter{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	var result struct {
		Topic    string   `json:"topic"`
		Findings []string `json:"findings"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Topic != "vector databases" {
		t.Errorf("topic = %q", result.Topic)
	}
	if len(result.Findings) == 0 {
		t.Error("expected findings")
	}
}

func TestShortPlanningTool_ReturnsOrderedSteps(t *testing.T) {
	tool := ShortPlanningTool{}
	args, _ := json.Marshal(map[string]string{"goal": "ship v1"})

	out, err := tool.Invoke(context.Background(), args, noopReporter{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	var result struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Steps) != 4 {
		t.Errorf("expected 4 steps, got %d", len(result.Steps))
	}
}

func TestDefaultRegistry_RegistersAllThreeTools(t *testing.T) {
	reg := DefaultRegistry()
	for _, name := range []string{"tool_recommend", "research", "short_planning"} {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("expected %q to be registered", name)
		}
	}
	if len(reg.All()) != 3 {
		t.Errorf("expected 3 tools, got %d", len(reg.All()))
	}
}
