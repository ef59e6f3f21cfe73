package sessions

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/gtplanner/core/internal/obslog"
	"github.com/gtplanner/core/internal/storage"
	"github.com/gtplanner/core/pkg/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	store, err := storage.New(context.Background(), db)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return New(store, obslog.New(obslog.Config{}))
}

func TestBuildAgentContext_ReflectsAppendedMessages(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, "draft a plan")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := m.AddUserMessage(ctx, sess.ID, "what should we build?"); err != nil {
		t.Fatalf("AddUserMessage: %v", err)
	}

	agentCtx, err := m.BuildAgentContext(ctx, sess.ID)
	if err != nil {
		t.Fatalf("BuildAgentContext: %v", err)
	}
	if len(agentCtx.DialogueHistory) != 1 {
		t.Fatalf("DialogueHistory = %d messages, want 1", len(agentCtx.DialogueHistory))
	}
	if agentCtx.IsCompressed {
		t.Error("fresh session should not report IsCompressed")
	}
}

func TestAddToolMessage_RequiresToolCallID(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, "s")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := m.AddToolMessage(ctx, sess.ID, "", "result"); err == nil {
		t.Error("expected error for empty tool_call_id")
	}
}

func TestUpdateFromAgentResult_MergesPerKey(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, "s")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	err = m.UpdateFromAgentResult(ctx, sess.ID, "what should we build?", models.AgentResult{
		Success: true,
		NewMessages: []models.Message{
			{Role: models.RoleAssistant, Content: "recommendation ready"},
		},
		ToolExecutionResultsUpdates: map[string]any{"recommended_tools": []any{"a", "b"}},
	})
	if err != nil {
		t.Fatalf("UpdateFromAgentResult: %v", err)
	}

	agentCtx, err := m.BuildAgentContext(ctx, sess.ID)
	if err != nil {
		t.Fatalf("BuildAgentContext: %v", err)
	}
	if len(agentCtx.DialogueHistory) != 2 {
		t.Fatalf("DialogueHistory = %d, want 2 (user turn + assistant message)", len(agentCtx.DialogueHistory))
	}
	if agentCtx.DialogueHistory[0].Role != models.RoleUser {
		t.Errorf("DialogueHistory[0].Role = %q, want user", agentCtx.DialogueHistory[0].Role)
	}
	if agentCtx.ToolExecutionResults["recommended_tools"] == nil {
		t.Error("expected recommended_tools to be present after merge")
	}
}

func TestUpdateFromAgentResult_SkipsToolMessageWithEmptyToolCallID(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, "s")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	err = m.UpdateFromAgentResult(ctx, sess.ID, "recommend a stack", models.AgentResult{
		Success: true,
		NewMessages: []models.Message{
			{Role: models.RoleAssistant, Content: "", ToolCalls: []models.ToolCall{{ID: "c1", Name: "tool_recommend"}}},
			{Role: models.RoleTool, Content: "result", ToolCallID: ""},
		},
	})
	if err != nil {
		t.Fatalf("UpdateFromAgentResult: %v", err)
	}

	agentCtx, err := m.BuildAgentContext(ctx, sess.ID)
	if err != nil {
		t.Fatalf("BuildAgentContext: %v", err)
	}
	if len(agentCtx.DialogueHistory) != 2 {
		t.Fatalf("DialogueHistory = %d, want 2 (user turn + assistant message; malformed tool message skipped)", len(agentCtx.DialogueHistory))
	}
	for _, msg := range agentCtx.DialogueHistory {
		if msg.Role == models.RoleTool {
			t.Error("expected the tool message with an empty tool_call_id to be skipped")
		}
	}
}

func TestLoadSession_AmbiguousPrefixErrors(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.CreateSession(ctx, "a"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := m.CreateSession(ctx, "b"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := m.LoadSession(ctx, ""); err == nil {
		t.Error("expected empty prefix to be ambiguous across two sessions")
	}
}
