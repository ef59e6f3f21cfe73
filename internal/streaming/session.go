package streaming

import (
	"fmt"
	"sync"

	"github.com/gtplanner/core/internal/events"
)

// Session is a per-request bag of handlers identified by a session id.
// emit_event stamps the event's session id, then delivers to every
// handler in registration order; a handler's failure (returned error or
// panic) is routed to that handler's HandleError and does not suppress
// delivery to the remaining handlers — mirroring the teacher's MultiSink
// fan-out semantics in internal/agent/event_sink.go.
type Session struct {
	mu       sync.Mutex
	id       string
	active   bool
	handlers []Handler
	metadata map[string]any
}

// NewSession constructs a Session for the given session id.
func NewSession(id string) *Session {
	return &Session{
		id:       id,
		active:   true,
		metadata: map[string]any{},
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// AddHandler registers a handler. Safe to call concurrently with Emit.
func (s *Session) AddHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// RemoveHandler unregisters a handler by identity.
func (s *Session) RemoveHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.handlers[:0]
	for _, existing := range s.handlers {
		if existing != h {
			out = append(out, existing)
		}
	}
	s.handlers = out
}

// Start marks the session active, allowing Emit to deliver events.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
}

// Stop closes every handler and prevents further emits.
func (s *Session) Stop() {
	s.mu.Lock()
	handlers := append([]Handler(nil), s.handlers...)
	s.active = false
	s.mu.Unlock()

	for _, h := range handlers {
		_ = h.Close()
	}
}

// HasHandlers reports whether any handler is registered, letting callers
// enforce a streaming-only execution gate before doing real work.
func (s *Session) HasHandlers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers) > 0
}

// Metadata returns the session's free-form metadata map.
func (s *Session) Metadata() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

// EmitEvent stamps e.SessionID with this session's id and delivers it to
// every handler. A handler that returns an error, or panics, is reported
// via its own HandleError and otherwise retained — it is never removed
// and never blocks delivery to the remaining handlers.
func (s *Session) EmitEvent(e events.Event) {
	e.SessionID = s.id

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	handlers := append([]Handler(nil), s.handlers...)
	s.mu.Unlock()

	for _, h := range handlers {
		s.deliver(h, e)
	}
}

func (s *Session) deliver(h Handler, e events.Event) {
	defer func() {
		if r := recover(); r != nil {
			h.HandleError(fmt.Errorf("handler panic: %v", r), s.id)
		}
	}()
	if err := h.HandleEvent(e); err != nil {
		h.HandleError(err, s.id)
	}
}
