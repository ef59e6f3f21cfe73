package events

import "time"

// base constructs the common envelope for an event of the given kind.
// Mirrors the teacher's EventEmitter.base() pattern of a single shared
// envelope constructor feeding per-kind builder functions.
func base(kind Kind, sessionID string, data map[string]any) Event {
	return Event{
		Kind:      kind,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      data,
	}
}

// ConversationStart builds a conversation_start event.
func ConversationStart(sessionID, userInput string) Event {
	return base(KindConversationStart, sessionID, map[string]any{
		"user_input": userInput,
	})
}

// AssistantMessageStart builds an assistant_message_start event.
func AssistantMessageStart(sessionID string) Event {
	return base(KindAssistantMessageStart, sessionID, map[string]any{})
}

// AssistantMessageChunk builds an assistant_message_chunk event. Per the
// decided Open Question on is_complete semantics, isComplete is set true
// on the final chunk even though an assistant_message_end event always
// follows it.
func AssistantMessageChunk(sessionID, content string, chunkIndex int, isComplete bool, totalChunks *int) Event {
	data := map[string]any{
		"content":     content,
		"chunk_index": chunkIndex,
		"is_complete": isComplete,
	}
	if totalChunks != nil {
		data["total_chunks"] = *totalChunks
	} else {
		data["total_chunks"] = nil
	}
	return base(KindAssistantMessageChunk, sessionID, data)
}

// AssistantMessageEnd builds an assistant_message_end event.
func AssistantMessageEnd(sessionID, completeMessage string, messageMetadata map[string]any) Event {
	if messageMetadata == nil {
		messageMetadata = map[string]any{}
	}
	return base(KindAssistantMessageEnd, sessionID, map[string]any{
		"complete_message": completeMessage,
		"message_metadata": messageMetadata,
	})
}

// ToolCallParams carries the fields shared by tool_call_* events.
type ToolCallParams struct {
	ToolName        string
	Status          ToolCallStatus
	CallID          string
	ProgressMessage string
	Arguments       any
	Result          any
	ExecutionTime   *float64
	ErrorMessage    string
}

func (p ToolCallParams) toData() map[string]any {
	return map[string]any{
		"tool_name":        p.ToolName,
		"status":           string(p.Status),
		"call_id":          p.CallID,
		"progress_message": nz(p.ProgressMessage),
		"arguments":        p.Arguments,
		"result":           p.Result,
		"execution_time":   execTime(p.ExecutionTime),
		"error_message":    nz(p.ErrorMessage),
	}
}

func nz(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func execTime(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// ToolCallStart builds a tool_call_start event.
func ToolCallStart(sessionID string, p ToolCallParams) Event {
	p.Status = ToolStatusStarting
	return base(KindToolCallStart, sessionID, p.toData())
}

// ToolCallProgress builds a tool_call_progress event.
func ToolCallProgress(sessionID string, p ToolCallParams) Event {
	p.Status = ToolStatusRunning
	return base(KindToolCallProgress, sessionID, p.toData())
}

// ToolCallEnd builds a tool_call_end event.
func ToolCallEnd(sessionID string, p ToolCallParams) Event {
	return base(KindToolCallEnd, sessionID, p.toData())
}

// DesignDocumentGenerated builds a design_document_generated event.
func DesignDocumentGenerated(sessionID, filename, content string) Event {
	return base(KindDesignDocumentGenerated, sessionID, map[string]any{
		"filename": filename,
		"content":  content,
	})
}

// ProcessingStatus builds a processing_status event.
func ProcessingStatus(sessionID, status, message string) Event {
	return base(KindProcessingStatus, sessionID, map[string]any{
		"status":  status,
		"message": message,
	})
}

// Error builds an error event.
func Error(sessionID, errorMessage string, errorDetails map[string]any) Event {
	if errorDetails == nil {
		errorDetails = map[string]any{}
	}
	return base(KindError, sessionID, map[string]any{
		"error_message": errorMessage,
		"error_details": errorDetails,
	})
}

// ConversationEnd builds a conversation_end event.
func ConversationEnd(sessionID string, success bool, content string, toolExecutionResultsUpdates map[string]any, errMsg string) Event {
	data := map[string]any{
		"success": success,
		"content": content,
	}
	if errMsg != "" {
		data["error"] = errMsg
	}
	if len(toolExecutionResultsUpdates) > 0 {
		data["tool_execution_results_updates"] = toolExecutionResultsUpdates
	}
	return base(KindConversationEnd, sessionID, data)
}
