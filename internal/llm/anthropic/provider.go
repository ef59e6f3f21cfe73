// Package anthropic is the concrete streaming chat-completion Provider
// backed by github.com/anthropics/anthropic-sdk-go. Adapted from the
// teacher's internal/agent/providers/anthropic.go processStream loop:
// same content_block_start/delta/stop event switch and same
// message_start/message_delta token bookkeeping, but emits incremental
// ToolCallDelta fragments (matching this spec's §4.3.2c
// "arguments accumulate as raw JSON text" requirement) instead of
// waiting for content_block_stop to emit one finalized tool call.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/gtplanner/core/internal/llm"
)

const maxEmptyStreamEvents = 50

type anthropicStream = ssestream.Stream[anthropic.MessageStreamEventUnion]

// Config configures the provider.
type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// DefaultConfig mirrors the teacher's AnthropicConfig defaults.
func DefaultConfig() Config {
	return Config{
		DefaultModel: "claude-sonnet-4-20250514",
		MaxRetries:   3,
		RetryDelay:   time.Second,
	}
}

// Provider implements llm.Provider over the Anthropic Messages API.
type Provider struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// New constructs a Provider from cfg.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = DefaultConfig().DefaultModel
	}
	return &Provider{
		client:       anthropic.NewClient(opts...),
		defaultModel: model,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) getModel(requested string) string {
	if requested != "" {
		return requested
	}
	return p.defaultModel
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (<-chan llm.CompletionChunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	chunks := make(chan llm.CompletionChunk, 16)
	go func() {
		defer close(chunks)
		p.processStream(stream, chunks, params.Model)
	}()
	return chunks, nil
}

func (p *Provider) buildParams(req llm.CompletionRequest) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.getModel(req.Model)),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

// processStream folds Anthropic SSE events into llm.CompletionChunk
// values. Text deltas are emitted immediately; tool_use content blocks
// emit an initial ToolCallDelta carrying {id, name} on content_block_start
// and further ToolCallDelta fragments carrying the accumulating
// arguments JSON on each input_json_delta, so the orchestrator can fold
// them the same way it folds text — never waiting for content_block_stop
// to learn a tool call exists.
func (p *Provider) processStream(stream *anthropicStream, chunks chan<- llm.CompletionChunk, model string) {
	toolIndex := -1
	emptyEvents := 0

	var inputTokens, outputTokens int

	for stream.Next() {
		event := stream.Current()
		processed := false

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}
			processed = true

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolIndex++
				toolUse := block.AsToolUse()
				chunks <- llm.CompletionChunk{ToolCallDelta: &llm.ToolCallDelta{
					Index: toolIndex,
					ID:    toolUse.ID,
					Name:  toolUse.Name,
				}}
				processed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					chunks <- llm.CompletionChunk{Text: delta.Text}
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					chunks <- llm.CompletionChunk{ToolCallDelta: &llm.ToolCallDelta{
						Index:             toolIndex,
						ArgumentsFragment: delta.PartialJSON,
					}}
					processed = true
				}
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}
			processed = true

		case "message_stop":
			chunks <- llm.CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
			return

		case "error":
			chunks <- llm.CompletionChunk{Error: fmt.Errorf("anthropic stream error (model %s)", model)}
			return
		}

		if processed {
			emptyEvents = 0
		} else {
			emptyEvents++
			if emptyEvents >= maxEmptyStreamEvents {
				chunks <- llm.CompletionChunk{Error: fmt.Errorf("anthropic stream appears malformed after %d empty events", emptyEvents)}
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		chunks <- llm.CompletionChunk{Error: fmt.Errorf("anthropic stream: %w", err)}
	}
}
