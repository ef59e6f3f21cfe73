package models

import "time"

// CompressedContext is the sole conversational state the orchestrator
// reads. At most one row per session has IsActive set; a compression run
// inserts a new version and atomically transfers the active flag.
type CompressedContext struct {
	ID                     string         `json:"id"`
	SessionID              string         `json:"session_id"`
	CompressionVersion     int            `json:"compression_version"`
	CreatedAt              time.Time      `json:"created_at"`
	OriginalMessageCount   int            `json:"original_message_count"`
	CompressedMessageCount int            `json:"compressed_message_count"`
	OriginalTokenCount     int            `json:"original_token_count"`
	CompressedTokenCount   int            `json:"compressed_token_count"`
	CompressionRatio       float64        `json:"compression_ratio"`
	Messages               []Message      `json:"compressed_messages"`
	Summary                string         `json:"summary"`
	KeyDecisions           []string       `json:"key_decisions,omitempty"`
	ToolExecutionResults   map[string]any `json:"tool_execution_results,omitempty"`
	IsActive               bool           `json:"is_active"`
}

// AgentContext is the in-memory, request-scoped materialization of the
// active CompressedContext handed to the orchestrator.
type AgentContext struct {
	SessionID            string
	DialogueHistory      []Message
	ToolExecutionResults map[string]any
	SessionMetadata      map[string]any
	IsCompressed         bool
}

// AgentResult is the delta returned from one orchestration run.
type AgentResult struct {
	Success                   bool
	NewMessages               []Message
	ToolExecutionResultsUpdates map[string]any
	Error                     string
	ExecutionTime             float64
}
