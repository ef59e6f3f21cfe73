// Package toolexec invokes a batch of tool calls concurrently, preserving
// input order in the output. Grounded on the teacher's
// internal/agent/executor.go: goroutine-per-call + sync.WaitGroup,
// semaphore-bounded concurrency, per-call timeout via context, and
// panic recovery around the tool's own Invoke.
package toolexec

import (
	"context"
	"encoding/json"
)

// Tool is what the orchestrator's tool registry exposes to the executor:
// a name, description, and JSON schema (used both to advertise the tool
// to the LLM and to validate call arguments before dispatch), and an
// async invoke function. Per §6.5, the executor never filters the
// registry by state — the caller always sees the same full tool set.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Invoke(ctx context.Context, args json.RawMessage, session ProgressReporter) (json.RawMessage, error)
}

// ProgressReporter lets a long-running tool emit tool_call_progress
// events while it runs.
type ProgressReporter interface {
	ReportProgress(callID, message string)
}

// Registry looks tools up by name for dispatch.
type Registry interface {
	Lookup(name string) (Tool, bool)
	All() []Tool
}

// mapRegistry is the default in-memory Registry implementation.
type mapRegistry struct {
	tools map[string]Tool
}

// NewRegistry builds a Registry from a list of tools.
func NewRegistry(tools ...Tool) Registry {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return &mapRegistry{tools: m}
}

func (r *mapRegistry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *mapRegistry) All() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}
