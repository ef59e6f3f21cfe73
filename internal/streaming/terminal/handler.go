// Package terminal renders a stream of events.Event to a terminal sink,
// concatenating assistant message chunks into one printed line and
// summarizing tool activity. Grounded in the teacher's CLI rendering
// conventions (cmd/nexus chrome) but written fresh for this event model.
package terminal

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gtplanner/core/internal/events"
)

// Config controls optional rendering behavior.
type Config struct {
	ShowTimestamps bool
	ShowMetadata   bool
}

// Handler implements streaming.Handler, rendering to Out.
type Handler struct {
	mu sync.Mutex

	out    io.Writer
	cfg    Config
	active bool // an assistant message is currently being printed
	tools  map[string]string // call_id -> tool_name, for the close summary
}

// New constructs a terminal Handler writing to out.
func New(out io.Writer, cfg Config) *Handler {
	return &Handler{
		out:   out,
		cfg:   cfg,
		tools: map[string]string{},
	}
}

// HandleEvent renders a single event.
func (h *Handler) HandleEvent(e events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prefix := ""
	if h.cfg.ShowTimestamps {
		prefix = "[" + e.Timestamp.Format(time.RFC3339) + "] "
	}

	switch e.Kind {
	case events.KindAssistantMessageChunk:
		if !h.active {
			fmt.Fprint(h.out, prefix)
			h.active = true
		}
		if content, ok := e.Data["content"].(string); ok {
			fmt.Fprint(h.out, content)
		}
	case events.KindAssistantMessageEnd:
		if h.active {
			fmt.Fprintln(h.out)
			h.active = false
		}
	case events.KindToolCallStart:
		h.flushNewlineIfActive()
		name, _ := e.Data["tool_name"].(string)
		callID, _ := e.Data["call_id"].(string)
		h.tools[callID] = name
		fmt.Fprintf(h.out, "%s-> calling %s (%s)\n", prefix, name, callID)
	case events.KindToolCallEnd:
		h.flushNewlineIfActive()
		name, _ := e.Data["tool_name"].(string)
		status, _ := e.Data["status"].(string)
		fmt.Fprintf(h.out, "%s<- %s %s\n", prefix, name, status)
	case events.KindError:
		h.flushNewlineIfActive()
		msg, _ := e.Data["error_message"].(string)
		fmt.Fprintf(h.out, "%s! error: %s\n", prefix, msg)
	case events.KindConversationEnd:
		h.flushNewlineIfActive()
	}
	return nil
}

func (h *Handler) flushNewlineIfActive() {
	if h.active {
		fmt.Fprintln(h.out)
		h.active = false
	}
}

// HandleError reports a delivery failure to the terminal itself; this
// handler has nowhere else to route errors.
func (h *Handler) HandleError(err error, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.out, "! handler error (session %s): %v\n", sessionID, err)
}

// Close prints a summary of tools that were in flight when the session
// ended.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active {
		fmt.Fprintln(h.out)
		h.active = false
	}
	if len(h.tools) > 0 {
		fmt.Fprintf(h.out, "(%d tool call(s) observed this session)\n", len(h.tools))
	}
	return nil
}
