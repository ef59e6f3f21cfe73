package planner

import (
	"errors"
	"fmt"
)

// Kind categorizes a planner-level failure for differentiated
// propagation policy, grounded in the teacher's internal/agent
// ToolErrorType taxonomy but closed over the planning core's own
// failure modes rather than tool-specific ones.
type Kind string

const (
	// KindValidation marks a malformed AgentContext at the API boundary.
	KindValidation Kind = "ValidationError"

	// KindLLMCallFailure marks a failed streaming chat completion.
	KindLLMCallFailure Kind = "LLMCallFailure"

	// KindToolFailure marks a single failed tool call.
	KindToolFailure Kind = "ToolFailure"

	// KindRecursionLimit marks the cycle hitting its recursion bound.
	KindRecursionLimit Kind = "RecursionLimit"

	// KindPersistenceError marks an aborted storage transaction.
	KindPersistenceError Kind = "PersistenceError"

	// KindDataCorruption marks a session with no active compressed_context.
	KindDataCorruption Kind = "DataCorruption"

	// KindCompressorFailure marks a failed background compression run.
	KindCompressorFailure Kind = "CompressorFailure"
)

// Error is a structured planner failure, closed over Kind, constructed
// so errors.As and errors.Is both work against it.
type Error struct {
	Kind       Kind
	Message    string
	SessionID  string
	ToolName   string
	ToolCallID string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, planner.KindX) work by comparing Kind, matching
// the teacher's sentinel-error comparison convention adapted for a
// struct-typed error.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ValidationError builds a KindValidation error.
func ValidationError(message string, cause error) *Error {
	return newError(KindValidation, message, cause)
}

// LLMCallFailure builds a KindLLMCallFailure error.
func LLMCallFailure(message string, cause error) *Error {
	return newError(KindLLMCallFailure, message, cause)
}

// ToolFailure builds a KindToolFailure error scoped to one call.
func ToolFailure(toolName, toolCallID, message string, cause error) *Error {
	err := newError(KindToolFailure, message, cause)
	err.ToolName = toolName
	err.ToolCallID = toolCallID
	return err
}

// RecursionLimit builds a KindRecursionLimit error.
func RecursionLimit(message string) *Error {
	return newError(KindRecursionLimit, message, nil)
}

// PersistenceError builds a KindPersistenceError error.
func PersistenceError(message string, cause error) *Error {
	return newError(KindPersistenceError, message, cause)
}

// DataCorruption builds a KindDataCorruption error scoped to a session.
func DataCorruption(sessionID, message string, cause error) *Error {
	err := newError(KindDataCorruption, message, cause)
	err.SessionID = sessionID
	return err
}

// CompressorFailure builds a KindCompressorFailure error.
func CompressorFailure(sessionID, message string, cause error) *Error {
	err := newError(KindCompressorFailure, message, cause)
	err.SessionID = sessionID
	return err
}
