package events

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAssistantMessageChunk_IsCompleteFlag(t *testing.T) {
	total := 3
	e := AssistantMessageChunk("sess-1", "hello", 2, true, &total)
	if e.Kind != KindAssistantMessageChunk {
		t.Fatalf("Kind = %v, want %v", e.Kind, KindAssistantMessageChunk)
	}
	if e.Data["is_complete"] != true {
		t.Errorf("is_complete = %v, want true", e.Data["is_complete"])
	}
	if e.Data["chunk_index"] != 2 {
		t.Errorf("chunk_index = %v, want 2", e.Data["chunk_index"])
	}
}

func TestToolCallEnd_StatusNotOverridden(t *testing.T) {
	e := ToolCallEnd("sess-1", ToolCallParams{
		ToolName: "research",
		Status:   ToolStatusFailed,
		CallID:   "c1",
		ErrorMessage: "HTTP 500",
	})
	if e.Data["status"] != "failed" {
		t.Errorf("status = %v, want failed", e.Data["status"])
	}
	if e.Data["error_message"] != "HTTP 500" {
		t.Errorf("error_message = %v, want HTTP 500", e.Data["error_message"])
	}
}

func TestEvent_SSEFormat(t *testing.T) {
	e := ConversationStart("sess-1", "hello")
	frame, err := e.ToSSE()
	if err != nil {
		t.Fatalf("ToSSE: %v", err)
	}
	if !strings.HasPrefix(frame, "event: conversation_start\ndata: ") {
		t.Errorf("frame prefix wrong: %q", frame)
	}
	if !strings.HasSuffix(frame, "\n\n") {
		t.Errorf("frame must end with blank line: %q", frame)
	}
}

func TestEvent_JSONRoundTrip(t *testing.T) {
	original := ConversationEnd("sess-1", true, "done", map[string]any{"recommended_tools": "x"}, "")

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Kind != original.Kind {
		t.Errorf("Kind = %v, want %v", decoded.Kind, original.Kind)
	}
	if decoded.SessionID != original.SessionID {
		t.Errorf("SessionID = %v, want %v", decoded.SessionID, original.SessionID)
	}
	if decoded.Data["success"] != true {
		t.Errorf("success = %v, want true", decoded.Data["success"])
	}
}
