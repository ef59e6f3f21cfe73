// Package streaming implements the per-session event fan-out layer: a
// StreamingSession dispatches StreamEvents to every registered handler
// (terminal, SSE, ...), and a process-wide StreamingManager owns the
// session registry. Modeled on the teacher's EventSink/MultiSink
// fan-out (internal/agent/event_sink.go), generalized from a single
// AgentEvent type to this system's events.Event.
package streaming

import "github.com/gtplanner/core/internal/events"

// Handler is a consumer of events.Event, typically a terminal renderer
// or an SSE writer. Implementations are assumed single-threaded: a
// Session serializes calls into a given handler (no concurrent
// HandleEvent calls reach the same handler instance).
type Handler interface {
	HandleEvent(e events.Event) error
	HandleError(err error, sessionID string)
	Close() error
}
