package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gtplanner/core/internal/streaming"
)

type fakeTool struct {
	name    string
	delay   time.Duration
	err     error
	result  json.RawMessage
	panics  bool
}

func (f *fakeTool) Name() string              { return f.name }
func (f *fakeTool) Description() string       { return "fake tool for tests" }
func (f *fakeTool) Schema() json.RawMessage   { return json.RawMessage(`{"type": "object"}`) }
func (f *fakeTool) Invoke(ctx context.Context, args json.RawMessage, session ProgressReporter) (json.RawMessage, error) {
	if f.panics {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestExecuteAll_PreservesInputOrder(t *testing.T) {
	reg := NewRegistry(
		&fakeTool{name: "slow", delay: 30 * time.Millisecond, result: json.RawMessage(`"slow-result"`)},
		&fakeTool{name: "fast", result: json.RawMessage(`"fast-result"`)},
	)
	ex := New(reg, DefaultConfig())
	sess := streaming.NewSession("sess-1")

	calls := []Call{
		{ID: "c1", ToolName: "slow", Arguments: json.RawMessage(`{}`)},
		{ID: "c2", ToolName: "fast", Arguments: json.RawMessage(`{}`)},
	}
	results := ex.ExecuteAll(context.Background(), calls, sess)

	if results[0].CallID != "c1" || results[1].CallID != "c2" {
		t.Fatalf("results out of order: %+v", results)
	}
	if string(results[0].Result) != `"slow-result"` {
		t.Errorf("results[0].Result = %s", results[0].Result)
	}
}

func TestExecute_PartialFailureDoesNotCancelSiblings(t *testing.T) {
	reg := NewRegistry(
		&fakeTool{name: "ok", result: json.RawMessage(`"done"`)},
		&fakeTool{name: "bad", err: errors.New("boom")},
	)
	ex := New(reg, DefaultConfig())
	sess := streaming.NewSession("sess-1")

	results := ex.ExecuteAll(context.Background(), []Call{
		{ID: "c1", ToolName: "bad", Arguments: json.RawMessage(`{}`)},
		{ID: "c2", ToolName: "ok", Arguments: json.RawMessage(`{}`)},
	}, sess)

	if results[0].Error == nil {
		t.Error("expected c1 to fail")
	}
	if results[1].Error != nil {
		t.Errorf("c2 must still succeed, got %v", results[1].Error)
	}
}

func TestExecute_TimeoutReportedAsFailure(t *testing.T) {
	reg := NewRegistry(&fakeTool{name: "slow", delay: 100 * time.Millisecond})
	ex := New(reg, Config{MaxConcurrency: 1, DefaultTimeout: 10 * time.Millisecond})
	sess := streaming.NewSession("sess-1")

	results := ex.ExecuteAll(context.Background(), []Call{
		{ID: "c1", ToolName: "slow", Arguments: json.RawMessage(`{}`)},
	}, sess)

	if results[0].Error == nil || results[0].Error.Error() != "timeout" {
		t.Errorf("Error = %v, want timeout", results[0].Error)
	}
}

func TestExecute_PanicRecovered(t *testing.T) {
	reg := NewRegistry(&fakeTool{name: "panicky", panics: true})
	ex := New(reg, DefaultConfig())
	sess := streaming.NewSession("sess-1")

	results := ex.ExecuteAll(context.Background(), []Call{
		{ID: "c1", ToolName: "panicky", Arguments: json.RawMessage(`{}`)},
	}, sess)

	if results[0].Error == nil {
		t.Fatal("expected panic to surface as an error")
	}
}

func TestExecute_NonObjectArgumentsRejected(t *testing.T) {
	reg := NewRegistry(&fakeTool{name: "ok", result: json.RawMessage(`"fine"`)})
	ex := New(reg, DefaultConfig())
	sess := streaming.NewSession("sess-1")

	results := ex.ExecuteAll(context.Background(), []Call{
		{ID: "c1", ToolName: "ok", Arguments: json.RawMessage(`"not-an-object"`)},
	}, sess)

	if results[0].Error == nil {
		t.Fatal("expected non-object arguments to be rejected")
	}
}
