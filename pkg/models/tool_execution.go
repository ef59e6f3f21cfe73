package models

import (
	"encoding/json"
	"time"
)

// ToolExecution is the audit record for one invocation of a tool. It is
// written once by the tool executor and never updated.
type ToolExecution struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	MessageID     string          `json:"message_id,omitempty"`
	ToolName      string          `json:"tool_name"`
	Arguments     json.RawMessage `json:"arguments"`
	Result        json.RawMessage `json:"result,omitempty"`
	Success       bool            `json:"success"`
	ExecutionTime float64         `json:"execution_time"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   time.Time       `json:"completed_at"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}
