// Package sessions is the session-manager facade sitting between the
// orchestrator and the persistence DAO in internal/storage: it owns
// message append (with mirror-write), agent-context assembly from the
// active compressed_context, and tool-execution-result merge after each
// orchestrator cycle. Grounded in the teacher's internal/sessions
// ScopedStore, which layers session-lifecycle policy (scoping, expiry,
// atomic get-or-create) over a raw Store — this package plays the same
// role, layered over storage.Store instead of CockroachStore.
package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/gtplanner/core/internal/obslog"
	"github.com/gtplanner/core/internal/storage"
	"github.com/gtplanner/core/pkg/models"
)

// Manager is the session-manager facade.
type Manager struct {
	store *storage.Store
	log   *obslog.Logger
}

// New wraps a storage.Store. log records the warnings §4.6 requires when
// UpdateFromAgentResult skips a malformed message.
func New(store *storage.Store, log *obslog.Logger) *Manager {
	return &Manager{store: store, log: log}
}

// CreateSession starts a new session with its seeded v1 compressed_context.
func (m *Manager) CreateSession(ctx context.Context, title string) (*models.Session, error) {
	return m.store.CreateSession(ctx, title)
}

// LoadSession resolves id against stored sessions, accepting any unique
// prefix per §4.2's load_session_by_partial_id behavior.
func (m *Manager) LoadSession(ctx context.Context, id string) (*models.Session, error) {
	found, resolved, matches, err := m.store.LoadSessionByPartialID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sessions: resolve %q: %w", id, err)
	}
	if !found {
		if len(matches) > 1 {
			return nil, fmt.Errorf("sessions: %q is ambiguous, matches %v", id, matches)
		}
		return nil, storage.ErrNotFound
	}
	return m.store.GetSession(ctx, resolved)
}

// BuildAgentContext assembles the orchestrator-facing view of a session
// from its active compressed_context row. Errors with
// storage.ErrDataCorruption if the session has no active row — per §4.6
// this must never happen for a well-formed session and is treated as
// DataCorruption rather than a missing-session condition.
func (m *Manager) BuildAgentContext(ctx context.Context, sessionID string) (*models.AgentContext, error) {
	cc, err := m.store.GetActiveCompressedContext(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &models.AgentContext{
		SessionID:             sessionID,
		DialogueHistory:       cc.Messages,
		ToolExecutionResults:  cc.ToolExecutionResults,
		SessionMetadata:       map[string]any{"compression_version": cc.CompressionVersion},
		IsCompressed:          cc.CompressionVersion > 1,
	}, nil
}

// AddUserMessage records a user turn.
func (m *Manager) AddUserMessage(ctx context.Context, sessionID, content string) (models.Message, error) {
	return m.addMessage(ctx, sessionID, models.RoleUser, content, nil, "")
}

// AddAssistantMessage records an assistant turn, optionally carrying
// tool calls the model requested.
func (m *Manager) AddAssistantMessage(ctx context.Context, sessionID, content string, toolCalls []models.ToolCall) (models.Message, error) {
	return m.addMessage(ctx, sessionID, models.RoleAssistant, content, toolCalls, "")
}

// AddToolMessage records a tool result turn; toolCallID must reference
// the originating assistant tool call.
func (m *Manager) AddToolMessage(ctx context.Context, sessionID, toolCallID, content string) (models.Message, error) {
	if toolCallID == "" {
		return models.Message{}, fmt.Errorf("sessions: tool message requires a non-empty tool_call_id")
	}
	return m.addMessage(ctx, sessionID, models.RoleTool, content, nil, toolCallID)
}

func (m *Manager) addMessage(ctx context.Context, sessionID string, role models.Role, content string, toolCalls []models.ToolCall, toolCallID string) (models.Message, error) {
	msg := models.Message{
		SessionID:  sessionID,
		Role:       role,
		Content:    content,
		Timestamp:  time.Now().UTC(),
		ToolCalls:  toolCalls,
		ToolCallID: toolCallID,
	}
	if err := m.store.AppendMessage(ctx, msg); err != nil {
		return models.Message{}, fmt.Errorf("sessions: append message: %w", err)
	}
	if content != "" {
		if err := m.store.IndexMessage(ctx, sessionID, msg.ID, content); err != nil {
			return models.Message{}, fmt.Errorf("sessions: index message: %w", err)
		}
	}
	return msg, nil
}

// UpdateFromAgentResult folds one orchestrator cycle's output back into
// the session, per §4.6: the user's turn is appended first, then every
// message in result.NewMessages in order, all in one transaction — a
// failure partway through aborts the whole delta rather than leaving a
// committed prefix. Any tool message with an empty tool_call_id fails
// validation and is skipped with a logged warning rather than aborting
// the rest of the delta. tool_execution_results are then merged per-key
// (later calls replace earlier ones under the same key, per §4.6's
// decided semantics).
func (m *Manager) UpdateFromAgentResult(ctx context.Context, sessionID, userMessage string, result models.AgentResult) error {
	msgs := make([]models.Message, 0, len(result.NewMessages)+1)
	msgs = append(msgs, models.Message{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   userMessage,
		Timestamp: time.Now().UTC(),
	})
	for _, msg := range result.NewMessages {
		if msg.Role == models.RoleTool && msg.ToolCallID == "" {
			m.log.Warn(ctx, "skipping tool message with empty tool_call_id", "session_id", sessionID)
			continue
		}
		msg.SessionID = sessionID
		msgs = append(msgs, msg)
	}

	if err := m.store.AppendMessages(ctx, msgs); err != nil {
		return fmt.Errorf("sessions: apply agent result messages: %w", err)
	}
	for _, msg := range msgs {
		if msg.Content == "" {
			continue
		}
		if err := m.store.IndexMessage(ctx, sessionID, msg.ID, msg.Content); err != nil {
			return fmt.Errorf("sessions: index message: %w", err)
		}
	}

	if len(result.ToolExecutionResultsUpdates) > 0 {
		if err := m.store.MergeToolExecutionResults(ctx, sessionID, result.ToolExecutionResultsUpdates); err != nil {
			return fmt.Errorf("sessions: merge tool_execution_results: %w", err)
		}
	}
	return nil
}

// RecordToolExecution writes the audit trail row for one tool
// invocation, independent of the message mirror-write.
func (m *Manager) RecordToolExecution(ctx context.Context, exec models.ToolExecution) error {
	return m.store.InsertToolExecution(ctx, exec)
}

// Search performs a full-text search across indexed messages.
func (m *Manager) Search(ctx context.Context, keyword string) ([]storage.SearchHit, error) {
	return m.store.SearchSessions(ctx, keyword)
}

// Statistics aggregates per-session counters for reporting.
func (m *Manager) Statistics(ctx context.Context, sessionID string) (*storage.Statistics, error) {
	return m.store.GetSessionStatistics(ctx, sessionID)
}
