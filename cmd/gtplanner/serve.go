package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gtplanner/core/internal/compressor"
	"github.com/gtplanner/core/internal/streaming"
	"github.com/gtplanner/core/internal/streaming/sse"
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command: an HTTP server exposing one
// SSE endpoint per orchestration turn, matching §8's streaming transport
// requirements (text/event-stream frames, heartbeats, optional chunk
// coalescing per the SSEConfig wired from the loaded configuration).
func buildServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/SSE server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			a.comp = &compressorHandle{}
			comp := compressor.New(a.store, a.provider, compressor.Config{
				MaxMessages:         a.cfg.Compressor.MaxMessages,
				MaxTokens:           a.cfg.Compressor.MaxTokens,
				PreserveRecentCount: a.cfg.Compressor.PreserveRecentCount,
				QueueDepth:          a.cfg.Compressor.QueueDepth,
				Model:               a.cfg.Compressor.Model,
			}, slog.Default())
			a.comp.close = comp.Close

			streamMgr := streaming.NewManager()
			defer streamMgr.CloseAll()

			mux := http.NewServeMux()
			mux.HandleFunc("POST /sessions", a.handleCreateSession)
			mux.HandleFunc("POST /sessions/{id}/messages", a.handleSendMessage(streamMgr, comp))

			a.log.Info(ctx, "starting server", "addr", addr)
			return http.ListenAndServe(addr, mux)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	return cmd
}

func (a *app) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	session, err := a.mgr.CreateSession(r.Context(), body.Title)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(session)
}

// handleSendMessage streams one orchestration turn's event_type/data
// frames over SSE, matching §8.1's wire format.
func (a *app) handleSendMessage(streamMgr *streaming.Manager, comp *compressor.Compressor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if sessionID == "" {
			http.Error(w, "session id is required", http.StatusBadRequest)
			return
		}

		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Message) == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		write := func(frame string) error {
			if _, err := w.Write([]byte(frame)); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		}

		handler := sse.New(write, sse.Config{
			HeartbeatInterval: a.cfg.SSE.HeartbeatInterval,
			IncludeMetadata:   a.cfg.SSE.IncludeMetadata,
			BufferEvents:      a.cfg.SSE.BufferEvents,
			CoalesceChunks:    a.cfg.SSE.CoalesceChunks,
			CoalesceInterval:  a.cfg.SSE.CoalesceInterval,
		})

		stream := streamMgr.CreateSession(sessionID)
		stream.AddHandler(handler)
		defer streamMgr.CloseSession(sessionID)

		if err := a.runTurn(r.Context(), stream, sessionID, body.Message, comp); err != nil {
			a.log.Warn(r.Context(), "turn failed", "session_id", sessionID, "error", err)
		}
	}
}
