// Package compressor keeps each session's active compressed_context small
// enough for the orchestrator to hand to an LLM on every cycle. It runs a
// single serial worker draining a bounded queue, grounded in the
// teacher's internal/sessions Compactor (threshold detection +
// strategy-based rewrite), generalized from the teacher's synchronous
// CompactionStrategy dispatch to an async queued worker per §4.7's
// "enqueue and return immediately" requirement.
package compressor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gtplanner/core/internal/llm"
	"github.com/gtplanner/core/internal/planner"
	"github.com/gtplanner/core/internal/storage"
	"github.com/gtplanner/core/pkg/models"
)

// Config configures compression thresholds and worker capacity, modeled
// on the teacher's CompactionConfig.
type Config struct {
	MaxMessages         int
	MaxTokens           int
	PreserveRecentCount int
	QueueDepth          int
	Model               string
}

// DefaultConfig mirrors §4.7's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxMessages:         50,
		MaxTokens:           8000,
		PreserveRecentCount: 5,
		QueueDepth:          64,
		Model:               "claude-sonnet-4-20250514",
	}
}

const structuredCompressionPrompt = `You are compressing an agent's conversation history to fit a smaller context window.
Summarize the messages below into a compact JSON object with this exact shape:
{"compressed_messages": [{"role": "user"|"assistant"|"tool", "content": "..."}], "summary": "...", "key_decisions": ["..."]}
Preserve every decision and fact a future turn would need. Do not include anything outside the JSON object.

Messages:
%s`

// Compressor drains a bounded queue of session ids with a single serial
// worker goroutine, so at most one compression runs at a time per
// process, per §4.7's "no parallel compressions" requirement.
type Compressor struct {
	store    *storage.Store
	provider llm.Provider
	cfg      Config
	log      *slog.Logger

	queue chan string
	done  chan struct{}
}

// New starts the worker goroutine and returns the Compressor. Close must
// be called to stop the worker.
func New(store *storage.Store, provider llm.Provider, cfg Config, log *slog.Logger) *Compressor {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultConfig().QueueDepth
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Compressor{
		store:    store,
		provider: provider,
		cfg:      cfg,
		log:      log,
		queue:    make(chan string, cfg.QueueDepth),
		done:     make(chan struct{}),
	}
	go c.worker()
	return c
}

// Close stops accepting new work and waits for the worker to drain.
func (c *Compressor) Close() {
	close(c.queue)
	<-c.done
}

func (c *Compressor) worker() {
	defer close(c.done)
	for sessionID := range c.queue {
		if err := c.compressSession(context.Background(), sessionID); err != nil {
			// Compression failures are logged and silently swallowed per
			// §4.8: the prior active compressed_context row remains in force.
			c.log.Error("compression failed", "session_id", sessionID, "error", err)
		}
	}
}

// ShouldCompress reports whether sessionID's active compressed_context
// exceeds either configured threshold.
func (c *Compressor) ShouldCompress(ctx context.Context, sessionID string) (bool, error) {
	cc, err := c.store.GetActiveCompressedContext(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if c.cfg.MaxMessages > 0 && cc.CompressedMessageCount > c.cfg.MaxMessages {
		return true, nil
	}
	if c.cfg.MaxTokens > 0 && cc.CompressedTokenCount > c.cfg.MaxTokens {
		return true, nil
	}
	return false, nil
}

// CompressIfNeeded enqueues a compression task if thresholds are
// exceeded; it never blocks on the worker and returns immediately. A
// full queue drops the request — the next cycle's check will re-enqueue.
func (c *Compressor) CompressIfNeeded(ctx context.Context, sessionID string) error {
	should, err := c.ShouldCompress(ctx, sessionID)
	if err != nil {
		return err
	}
	if !should {
		return nil
	}
	select {
	case c.queue <- sessionID:
	default:
		c.log.Warn("compression queue full, dropping request", "session_id", sessionID)
	}
	return nil
}

type structuredCompressionResult struct {
	CompressedMessages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"compressed_messages"`
	Summary      string   `json:"summary"`
	KeyDecisions []string `json:"key_decisions"`
}

func (c *Compressor) compressSession(ctx context.Context, sessionID string) error {
	cc, err := c.store.GetActiveCompressedContext(ctx, sessionID)
	if err != nil {
		return planner.CompressorFailure(sessionID, "load active compressed_context", err)
	}

	if cc.CompressedMessageCount <= c.cfg.PreserveRecentCount {
		return nil
	}

	all := cc.Messages
	splitAt := len(all) - c.cfg.PreserveRecentCount
	if splitAt < 0 {
		splitAt = 0
	}
	head, tail := all[:splitAt], all[splitAt:]

	result, err := c.runStructuredCompression(ctx, head)
	if err != nil {
		return planner.CompressorFailure(sessionID, "structured compression call", err)
	}

	compressed := make([]models.Message, 0, len(result.CompressedMessages)+len(tail))
	for _, m := range result.CompressedMessages {
		compressed = append(compressed, models.Message{
			SessionID: sessionID,
			Role:      models.Role(m.Role),
			Content:   m.Content,
		})
	}
	compressed = append(compressed, tail...)

	originalCount := cc.CompressedMessageCount
	ratio := 1.0
	if originalCount > 0 {
		ratio = float64(len(compressed)) / float64(originalCount)
	}

	next := models.CompressedContext{
		SessionID:              sessionID,
		CompressionVersion:     cc.CompressionVersion + 1,
		OriginalMessageCount:   originalCount,
		CompressedMessageCount: len(compressed),
		OriginalTokenCount:     cc.CompressedTokenCount,
		CompressedTokenCount:   estimateTokens(compressed),
		CompressionRatio:       ratio,
		Messages:               compressed,
		Summary:                result.Summary,
		KeyDecisions:           result.KeyDecisions,
		ToolExecutionResults:   cc.ToolExecutionResults, // copied forward unchanged
	}

	if err := c.store.SwapActiveCompressedContext(ctx, sessionID, next); err != nil {
		return planner.CompressorFailure(sessionID, "swap active compressed_context", err)
	}
	return nil
}

// runStructuredCompression calls the provider with the fixed prompt and
// accumulates the streamed text before parsing it as JSON, matching
// §4.7 step 3's "invoke the LLM... returning JSON" requirement.
func (c *Compressor) runStructuredCompression(ctx context.Context, messages []models.Message) (*structuredCompressionResult, error) {
	var sb strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&sb, "[%s] %s\n", m.Role, m.Content)
	}

	chunks, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Model: c.cfg.Model,
		Messages: []llm.CompletionMessage{
			{Role: "user", Content: fmt.Sprintf(structuredCompressionPrompt, sb.String())},
		},
		MaxTokens: 4096,
	})
	if err != nil {
		return nil, err
	}

	var out strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		out.WriteString(chunk.Text)
	}

	var result structuredCompressionResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(out.String())), &result); err != nil {
		return nil, fmt.Errorf("compressor: parse structured compression response: %w", err)
	}
	return &result, nil
}

func estimateTokens(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / 4
	}
	return total
}
