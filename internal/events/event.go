// Package events defines the closed set of stream event kinds emitted by
// the orchestrator, their payload shapes, and their JSON/SSE
// serialization. Modeled as a tagged union: one Kind, one Data payload
// whose concrete type is determined by Kind.
package events

import (
	"encoding/json"
	"time"
)

// Kind is the closed set of event kinds a StreamEvent may carry.
type Kind string

const (
	KindConversationStart        Kind = "conversation_start"
	KindAssistantMessageStart    Kind = "assistant_message_start"
	KindAssistantMessageChunk    Kind = "assistant_message_chunk"
	KindAssistantMessageEnd      Kind = "assistant_message_end"
	KindToolCallStart            Kind = "tool_call_start"
	KindToolCallProgress         Kind = "tool_call_progress"
	KindToolCallEnd              Kind = "tool_call_end"
	KindDesignDocumentGenerated  Kind = "design_document_generated"
	KindProcessingStatus         Kind = "processing_status"
	KindError                    Kind = "error"
	KindConversationEnd          Kind = "conversation_end"
)

// ToolCallStatus is the status carried by tool_call_* events.
type ToolCallStatus string

const (
	ToolStatusStarting  ToolCallStatus = "starting"
	ToolStatusRunning   ToolCallStatus = "running"
	ToolStatusCompleted ToolCallStatus = "completed"
	ToolStatusFailed    ToolCallStatus = "failed"
)

// Event is a tagged record: Kind selects which fields of Data are
// meaningful. Data is always a JSON object with lowercase_snake_case
// keys, matching the wire-format requirement in full.
type Event struct {
	Kind      Kind           `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON renders the timestamp as RFC3339 (ISO-8601), matching the
// wire contract, and defaults nil maps to empty objects so that decoders
// never observe a JSON null for data/metadata.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias struct {
		Kind      Kind           `json:"event_type"`
		Timestamp string         `json:"timestamp"`
		SessionID string         `json:"session_id"`
		Data      map[string]any `json:"data"`
		Metadata  map[string]any `json:"metadata"`
	}
	data := e.Data
	if data == nil {
		data = map[string]any{}
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return json.Marshal(alias{
		Kind:      e.Kind,
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
		SessionID: e.SessionID,
		Data:      data,
		Metadata:  meta,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON, accepting a timestamp
// string and tolerating its absence (recomputing to the current time),
// matching the round-trip property that timestamp may be recomputed.
func (e *Event) UnmarshalJSON(b []byte) error {
	var raw struct {
		Kind      Kind           `json:"event_type"`
		Timestamp string         `json:"timestamp"`
		SessionID string         `json:"session_id"`
		Data      map[string]any `json:"data"`
		Metadata  map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.Kind = raw.Kind
	e.SessionID = raw.SessionID
	e.Data = raw.Data
	e.Metadata = raw.Metadata
	if raw.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw.Timestamp); err == nil {
			e.Timestamp = t
		} else {
			e.Timestamp = time.Now()
		}
	} else {
		e.Timestamp = time.Now()
	}
	return nil
}

// ToSSE renders the event as an SSE frame: "event: <kind>\ndata:
// <json>\n\n".
func (e Event) ToSSE() (string, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return "event: " + string(e.Kind) + "\ndata: " + string(payload) + "\n\n", nil
}
