// Package planning provides the default toolexec.Tool implementations
// the CLI registers: tool_recommend, research, and short_planning. The
// orchestration core treats these as interface-only collaborators (name,
// JSON schema, async invoke) and never depends on this package directly;
// cmd/gtplanner wires them in at startup the way the teacher's cmd/nexus
// wires internal/tools/* into its agent.Executor registry.
package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gtplanner/core/internal/toolexec"
)

// toolRecommendSchema, researchSchema, and shortPlanningSchema are
// intentionally small. The orchestrator forwards these bytes to the LLM
// provider as the tool's advertised schema, and internal/toolexec's
// Executor separately validates each call's arguments against the same
// bytes before Invoke ever runs.
var (
	toolRecommendSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"requirement": {"type": "string", "description": "the capability the plan needs"}
		},
		"required": ["requirement"]
	}`)

	researchSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"topic": {"type": "string", "description": "what to research"}
		},
		"required": ["topic"]
	}`)

	shortPlanningSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"goal": {"type": "string", "description": "the outcome the plan should reach"}
		},
		"required": ["goal"]
	}`)
)

// catalog is the fixed set of tool recommendations this deterministic
// stand-in draws from, keyed by a lowercased substring of the requested
// requirement. A production deployment would replace this with a real
// lookup against a maintained tool catalog.
var catalog = map[string][]string{
	"storage":    {"postgres", "sqlite", "redis"},
	"queue":      {"kafka", "rabbitmq", "sqs"},
	"auth":       {"oauth2", "oidc", "jwt"},
	"search":     {"elasticsearch", "meilisearch", "typesense"},
	"monitoring": {"prometheus", "grafana", "otel"},
}

// ToolRecommendTool implements toolexec.Tool, recommending candidate
// libraries/services for a stated requirement.
type ToolRecommendTool struct{}

func (ToolRecommendTool) Name() string { return "tool_recommend" }

func (ToolRecommendTool) Description() string {
	return "Recommend candidate libraries or services for a stated requirement."
}

func (ToolRecommendTool) Schema() json.RawMessage { return toolRecommendSchema }

func (ToolRecommendTool) Invoke(ctx context.Context, args json.RawMessage, reporter toolexec.ProgressReporter) (json.RawMessage, error) {
	var in struct {
		Requirement string `json:"requirement"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("tool_recommend: decode arguments: %w", err)
	}
	if strings.TrimSpace(in.Requirement) == "" {
		return nil, fmt.Errorf("tool_recommend: requirement is required")
	}

	needle := strings.ToLower(in.Requirement)
	var matches []string
	for keyword, options := range catalog {
		if strings.Contains(needle, keyword) {
			matches = append(matches, options...)
		}
	}
	if len(matches) == 0 {
		matches = []string{"no catalog match; use general-purpose library search"}
	}

	out, err := json.Marshal(map[string]any{
		"requirement":      in.Requirement,
		"recommendations":  matches,
	})
	if err != nil {
		return nil, fmt.Errorf("tool_recommend: encode result: %w", err)
	}
	return out, nil
}

// ResearchTool implements toolexec.Tool, producing a structured finding
// placeholder for a research topic. Reports incremental progress so the
// streaming layer's tool_call_progress path has something real to carry
// during longer-running invocations.
type ResearchTool struct{}

func (ResearchTool) Name() string { return "research" }

func (ResearchTool) Description() string {
	return "Gather structured findings on a research topic, reporting progress as it works."
}

func (ResearchTool) Schema() json.RawMessage { return researchSchema }

func (ResearchTool) Invoke(ctx context.Context, args json.RawMessage, reporter toolexec.ProgressReporter) (json.RawMessage, error) {
	var in struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("research: decode arguments: %w", err)
	}
	if strings.TrimSpace(in.Topic) == "" {
		return nil, fmt.Errorf("research: topic is required")
	}

	reporter.ReportProgress("", fmt.Sprintf("gathering findings for %q", in.Topic))

	out, err := json.Marshal(map[string]any{
		"topic": in.Topic,
		"findings": []string{
			fmt.Sprintf("summary of prior art relevant to %q", in.Topic),
			"no external sources consulted in this deployment",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("research: encode result: %w", err)
	}
	return out, nil
}

// ShortPlanningTool implements toolexec.Tool, producing a short ordered
// plan toward a stated goal.
type ShortPlanningTool struct{}

func (ShortPlanningTool) Name() string { return "short_planning" }

func (ShortPlanningTool) Description() string {
	return "Produce a short ordered plan toward a stated goal."
}

func (ShortPlanningTool) Schema() json.RawMessage { return shortPlanningSchema }

func (ShortPlanningTool) Invoke(ctx context.Context, args json.RawMessage, reporter toolexec.ProgressReporter) (json.RawMessage, error) {
	var in struct {
		Goal string `json:"goal"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("short_planning: decode arguments: %w", err)
	}
	if strings.TrimSpace(in.Goal) == "" {
		return nil, fmt.Errorf("short_planning: goal is required")
	}

	steps := []string{
		fmt.Sprintf("clarify scope for %q", in.Goal),
		"identify the smallest working version",
		"list open risks and unknowns",
		"sequence remaining work",
	}

	out, err := json.Marshal(map[string]any{
		"goal":  in.Goal,
		"steps": steps,
	})
	if err != nil {
		return nil, fmt.Errorf("short_planning: encode result: %w", err)
	}
	return out, nil
}

// DefaultRegistry builds the toolexec.Registry the CLI registers by
// default.
func DefaultRegistry() toolexec.Registry {
	return toolexec.NewRegistry(
		ToolRecommendTool{},
		ResearchTool{},
		ShortPlanningTool{},
	)
}
