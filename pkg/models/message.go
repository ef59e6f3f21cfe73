// Package models holds the shared data-model types passed between the
// orchestrator, the tool executor, the session manager facade, and the
// persistence layer.
package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type. Strictly OpenAI-compatible.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
	SessionDeleted  SessionStatus = "deleted"
)

// Message is a single conversational turn. History is immutable: a
// Message is created once by delta ingestion and never updated.
type Message struct {
	ID              string         `json:"id"`
	SessionID       string         `json:"session_id"`
	Role            Role           `json:"role"`
	Content         string         `json:"content"`
	Timestamp       time.Time      `json:"timestamp"`
	TokenCount      int            `json:"token_count"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ToolCalls       []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID      string         `json:"tool_call_id,omitempty"`
	ParentMessageID string         `json:"parent_message_id,omitempty"`
}

// ToolCall is an LLM's request to invoke a tool, embedded in an
// assistant Message.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Session is the top-level conversation container.
type Session struct {
	ID            string         `json:"id"`
	Title         string         `json:"title,omitempty"`
	ProjectStage  string         `json:"project_stage,omitempty"`
	TotalMessages int            `json:"total_messages"`
	TotalTokens   int            `json:"total_tokens"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Status        SessionStatus  `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
