package planner

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gtplanner/core/internal/events"
	"github.com/gtplanner/core/internal/llm"
	"github.com/gtplanner/core/internal/streaming"
	"github.com/gtplanner/core/internal/toolexec"
	"github.com/gtplanner/core/pkg/models"
)

type scriptedProvider struct {
	responses []llm.CompletionChunk // one "turn" per call to Complete, replayed in order
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (<-chan llm.CompletionChunk, error) {
	turn := p.calls
	p.calls++
	ch := make(chan llm.CompletionChunk, 8)
	go func() {
		defer close(ch)
		if turn < len(p.responses) {
			ch <- p.responses[turn]
		}
		ch <- llm.CompletionChunk{Done: true}
	}()
	return ch, nil
}

type echoTool struct{ name string }

func (t *echoTool) Name() string            { return t.name }
func (t *echoTool) Description() string     { return "echoes a fixed result for tests" }
func (t *echoTool) Schema() json.RawMessage { return json.RawMessage(`{}`) }
func (t *echoTool) Invoke(ctx context.Context, args json.RawMessage, r toolexec.ProgressReporter) (json.RawMessage, error) {
	return json.RawMessage(`{"ok":true}`), nil
}

func TestRun_NoStreamHandlersReturnsStreamingRequiredFailure(t *testing.T) {
	provider := &scriptedProvider{}
	executor := toolexec.New(toolexec.NewRegistry(), toolexec.DefaultConfig())
	o := New(provider, executor, DefaultConfig())

	result := o.Run(context.Background(), streaming.NewSession("no-handlers"), models.AgentContext{}, "hi")
	if result.Success {
		t.Fatal("expected failure when no handlers are registered")
	}
	if result.Error == "" {
		t.Error("expected a non-empty streaming-required error message")
	}
}

func TestRun_NoToolCallsTerminatesAfterOneCycle(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.CompletionChunk{{Text: "final answer"}}}
	executor := toolexec.New(toolexec.NewRegistry(), toolexec.DefaultConfig())
	o := New(provider, executor, DefaultConfig())

	sess := streaming.NewSession("sess-1")
	sess.AddHandler(noopHandler{})

	result := o.Run(context.Background(), sess, models.AgentContext{}, "plan something")
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if len(result.NewMessages) != 1 {
		t.Fatalf("expected exactly the assistant message, got %d", len(result.NewMessages))
	}
	if result.NewMessages[0].Content != "final answer" {
		t.Errorf("content = %q", result.NewMessages[0].Content)
	}
	if provider.calls != 1 {
		t.Errorf("expected exactly one LLM call, got %d", provider.calls)
	}
}

func TestRun_RecursionCapSynthesizesTerminatingMessage(t *testing.T) {
	toolCallChunk := llm.CompletionChunk{ToolCallDelta: &llm.ToolCallDelta{Index: 0, ID: "c1", Name: "loopy", ArgumentsFragment: "{}"}}
	var responses []llm.CompletionChunk
	for i := 0; i < 10; i++ {
		responses = append(responses, toolCallChunk)
	}
	provider := &scriptedProvider{responses: responses}

	reg := toolexec.NewRegistry(&echoTool{name: "loopy"})
	executor := toolexec.New(reg, toolexec.DefaultConfig())
	o := New(provider, executor, Config{MaxRecursionDepth: 2, MaxTokens: 100})

	sess := streaming.NewSession("sess-1")
	sess.AddHandler(noopHandler{})

	result := o.Run(context.Background(), sess, models.AgentContext{}, "loop forever please")
	if !result.Success {
		t.Fatalf("expected a synthesized success result, got error %q", result.Error)
	}
	last := result.NewMessages[len(result.NewMessages)-1]
	if last.Role != models.RoleAssistant {
		t.Fatalf("expected the final message to be the synthesized assistant message, got role %q", last.Role)
	}
	if last.Content == "" {
		t.Error("expected a non-empty recursion-limit message")
	}
}

func TestRun_ExtractsKnownToolResultIntoSharedSlot(t *testing.T) {
	toolCallChunk := llm.CompletionChunk{ToolCallDelta: &llm.ToolCallDelta{Index: 0, ID: "c1", Name: "tool_recommend", ArgumentsFragment: "{}"}}
	provider := &scriptedProvider{responses: []llm.CompletionChunk{toolCallChunk, {Text: "done"}}}

	reg := toolexec.NewRegistry(&echoTool{name: "tool_recommend"})
	executor := toolexec.New(reg, toolexec.DefaultConfig())
	o := New(provider, executor, DefaultConfig())

	sess := streaming.NewSession("sess-1")
	sess.AddHandler(noopHandler{})

	result := o.Run(context.Background(), sess, models.AgentContext{}, "recommend tools")
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.ToolExecutionResultsUpdates["recommended_tools"] == nil {
		t.Error("expected recommended_tools to be populated from the tool_recommend extractor")
	}
}

type noopHandler struct{}

func (noopHandler) HandleEvent(e events.Event) error         { return nil }
func (noopHandler) HandleError(err error, sessionID string) {}
func (noopHandler) Close() error                              { return nil }
