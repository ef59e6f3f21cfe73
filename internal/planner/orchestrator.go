// Package planner is the orchestration engine: the recursive
// function-calling cycle that drives LLM <-> tool interaction with
// bounded recursion, streaming token capture, and tool-tag filtering.
// Grounded in the teacher's internal/agent AgenticLoop (loop.go), whose
// streamPhase/executeToolsPhase split this package generalizes into a
// single recursive cycle per the planning core's "one function, not two
// paths" requirement.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gtplanner/core/internal/events"
	"github.com/gtplanner/core/internal/llm"
	"github.com/gtplanner/core/internal/streaming"
	"github.com/gtplanner/core/internal/toolexec"
	"github.com/gtplanner/core/pkg/models"
)

// extractorTargets maps a tool name to the canonical key its parsed
// result is copied into under shared.toolExecutionResults, per §4.3.4.
var extractorTargets = map[string]string{
	"tool_recommend":  "recommended_tools",
	"research":        "research_findings",
	"short_planning":  "short_planning",
}

// Config configures one Orchestrator.
type Config struct {
	MaxRecursionDepth int
	SystemPrompt      string
	Model             string
	MaxTokens         int
}

// DefaultConfig returns §4.3.3's documented default recursion cap.
func DefaultConfig() Config {
	return Config{
		MaxRecursionDepth: 5,
		SystemPrompt:      "You are a planning assistant. Use the available tools to help the user plan their project.",
		MaxTokens:         4096,
	}
}

// Orchestrator drives the ReAct cycle described in §4.3.
type Orchestrator struct {
	provider    llm.Provider
	executor    *toolexec.Executor
	cfg         Config
	toolSchemas []llm.ToolSchema
}

// New constructs an Orchestrator. The tool catalog advertised to the LLM
// on every call is built once here from executor's registry, per §6.5's
// "the orchestrator advertises the full set to the LLM on every call".
func New(provider llm.Provider, executor *toolexec.Executor, cfg Config) *Orchestrator {
	if cfg.MaxRecursionDepth <= 0 {
		cfg.MaxRecursionDepth = DefaultConfig().MaxRecursionDepth
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	return &Orchestrator{
		provider:    provider,
		executor:    executor,
		cfg:         cfg,
		toolSchemas: buildToolSchemas(executor.Registry()),
	}
}

// buildToolSchemas translates a toolexec.Registry into the LLM-facing
// schema catalog, matching the teacher's tool-advertising conversion in
// its provider request builder.
func buildToolSchemas(registry toolexec.Registry) []llm.ToolSchema {
	tools := registry.All()
	schemas := make([]llm.ToolSchema, 0, len(tools))
	for _, t := range tools {
		schemas = append(schemas, llm.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return schemas
}

// sharedState is the mutable bag threaded through the recursive cycle,
// mirroring §4.3's "shared" map — a concrete struct here rather than a
// duck-typed dict, per the Design Notes' Open Question decision.
type sharedState struct {
	history              []llm.CompletionMessage
	toolExecutionResults map[string]any
	newMessages          []models.Message
	errors               []sharedError
	cycle                int
}

type sharedError struct {
	Source    string
	Message   string
	Timestamp time.Time
}

// Run drives the cycle to completion and returns the delta the planner
// entry hands back to the session-manager facade. Per §4.3's error
// containment rule, Run never returns a Go error for mid-cycle failures
// — those are folded into the returned AgentResult's Error field and
// recorded in the event stream instead, so a conversation_end event can
// always be emitted.
func (o *Orchestrator) Run(ctx context.Context, sess *streaming.Session, agentCtx models.AgentContext, userMessage string) models.AgentResult {
	start := time.Now()

	if sess == nil || !sess.HasHandlers() {
		return models.AgentResult{
			Success: false,
			Error:   "streaming required: no stream handlers registered for this session",
		}
	}

	state := &sharedState{
		history:              toCompletionHistory(agentCtx.DialogueHistory),
		toolExecutionResults: cloneResults(agentCtx.ToolExecutionResults),
	}
	state.history = append(state.history, llm.CompletionMessage{Role: "user", Content: userMessage})

	sess.EmitEvent(events.ConversationStart(sess.ID(), userMessage))

	result := o.cycle(ctx, sess, state)
	result.ExecutionTime = time.Since(start).Seconds()

	sess.EmitEvent(events.ConversationEnd(sess.ID(), result.Success, lastAssistantContent(result.NewMessages), result.ToolExecutionResultsUpdates, result.Error))
	return result
}

// cycle implements one pass of the recursive loop: LLM call, fold,
// dispatch tools if any, recurse. It is unified — there is no separate
// "final iteration" code path — per §4.3.2.
func (o *Orchestrator) cycle(ctx context.Context, sess *streaming.Session, state *sharedState) models.AgentResult {
	state.cycle++
	if state.cycle > o.cfg.MaxRecursionDepth {
		msg := models.Message{
			Role:    models.RoleAssistant,
			Content: fmt.Sprintf("maximum recursion depth of %d reached; stopping before another model call", o.cfg.MaxRecursionDepth),
		}
		state.newMessages = append(state.newMessages, msg)
		return models.AgentResult{
			Success:                     true,
			NewMessages:                state.newMessages,
			ToolExecutionResultsUpdates: state.toolExecutionResults,
		}
	}

	sess.EmitEvent(events.AssistantMessageStart(sess.ID()))

	chunks, err := o.provider.Complete(ctx, llm.CompletionRequest{
		Model:             o.cfg.Model,
		System:            o.cfg.SystemPrompt,
		Messages:          state.history,
		Tools:             o.toolSchemas,
		MaxTokens:         o.cfg.MaxTokens,
		ParallelToolCalls: true,
	})
	if err != nil {
		return o.fail(state, LLMCallFailure("starting completion stream", err))
	}

	content, toolCalls, streamErr := o.foldStream(sess, chunks)
	if streamErr != nil {
		return o.fail(state, LLMCallFailure("reading completion stream", streamErr))
	}

	sess.EmitEvent(events.AssistantMessageEnd(sess.ID(), content, map[string]any{"tool_calls": len(toolCalls)}))

	assistantMsg := models.Message{
		Role:      models.RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	}
	state.newMessages = append(state.newMessages, assistantMsg)
	state.history = append(state.history, toCompletionMessage(assistantMsg))

	if len(toolCalls) == 0 {
		return models.AgentResult{
			Success:                     true,
			NewMessages:                state.newMessages,
			ToolExecutionResultsUpdates: state.toolExecutionResults,
		}
	}

	calls := make([]toolexec.Call, len(toolCalls))
	for i, tc := range toolCalls {
		calls[i] = toolexec.Call{ID: tc.ID, ToolName: tc.Name, Arguments: tc.Arguments}
	}
	results := o.executor.ExecuteAll(ctx, calls, sess)

	for _, r := range results {
		toolMsg := models.Message{
			Role:       models.RoleTool,
			Content:    resultContent(r),
			ToolCallID: r.CallID,
		}
		state.newMessages = append(state.newMessages, toolMsg)
		state.history = append(state.history, toCompletionMessage(toolMsg))

		if r.Error == nil {
			o.extract(state, r.ToolName, r.Result)
		} else {
			state.errors = append(state.errors, sharedError{
				Source:    r.ToolName,
				Message:   r.Error.Error(),
				Timestamp: time.Now().UTC(),
			})
		}
	}

	return o.cycle(ctx, sess, state)
}

// extract copies a tool's successful result into the shared extraction
// slot named by extractorTargets, per §4.3.4.
func (o *Orchestrator) extract(state *sharedState, toolName string, result json.RawMessage) {
	key, ok := extractorTargets[toolName]
	if !ok || len(result) == 0 {
		return
	}
	var parsed any
	if err := json.Unmarshal(result, &parsed); err != nil {
		return
	}
	state.toolExecutionResults[key] = parsed
}

// foldStream folds provider chunks into the filtered display content and
// the tool-call-by-index accumulator described in §4.3.2c, emitting
// assistant_message_chunk events as content arrives.
func (o *Orchestrator) foldStream(sess *streaming.Session, chunks <-chan llm.CompletionChunk) (string, []models.ToolCall, error) {
	var content strings.Builder
	filter := &tagFilter{}
	type pendingCall struct {
		id, name string
		args     strings.Builder
	}
	byIndex := map[int]*pendingCall{}
	var order []int
	chunkIndex := 0

	for chunk := range chunks {
		if chunk.Error != nil {
			return "", nil, chunk.Error
		}
		if chunk.Text != "" {
			filtered := filter.Feed(chunk.Text)
			if filtered != "" {
				content.WriteString(filtered)
				sess.EmitEvent(events.AssistantMessageChunk(sess.ID(), filtered, chunkIndex, false, nil))
				chunkIndex++
			}
		}
		if chunk.ToolCallDelta != nil {
			d := chunk.ToolCallDelta
			pc, ok := byIndex[d.Index]
			if !ok {
				pc = &pendingCall{}
				byIndex[d.Index] = pc
				order = append(order, d.Index)
			}
			if d.ID != "" {
				pc.id = d.ID
			}
			if d.Name != "" {
				pc.name = d.Name
			}
			if d.ArgumentsFragment != "" {
				pc.args.WriteString(d.ArgumentsFragment)
			}
		}
		if chunk.Done {
			break
		}
	}

	if tail := filter.Flush(); tail != "" {
		content.WriteString(tail)
		sess.EmitEvent(events.AssistantMessageChunk(sess.ID(), tail, chunkIndex, false, nil))
		chunkIndex++
	}
	sess.EmitEvent(events.AssistantMessageChunk(sess.ID(), "", chunkIndex, true, nil))

	toolCalls := make([]models.ToolCall, 0, len(order))
	for _, idx := range order {
		pc := byIndex[idx]
		toolCalls = append(toolCalls, models.ToolCall{
			ID:        pc.id,
			Name:      pc.name,
			Arguments: json.RawMessage(pc.args.String()),
		})
	}
	return content.String(), toolCalls, nil
}

func (o *Orchestrator) fail(state *sharedState, err *Error) models.AgentResult {
	state.errors = append(state.errors, sharedError{
		Source:    string(err.Kind),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	})
	return models.AgentResult{
		Success:                     false,
		NewMessages:                 state.newMessages,
		ToolExecutionResultsUpdates: state.toolExecutionResults,
		Error:                       err.Error(),
	}
}

func resultContent(r toolexec.Result) string {
	if r.Error != nil {
		return fmt.Sprintf("error: %s", r.Error.Error())
	}
	return string(r.Result)
}

func lastAssistantContent(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleAssistant {
			return messages[i].Content
		}
	}
	return ""
}

// toCompletionHistory strips any legacy <tool_call>...</tool_call> text
// from historical content before sending it to the provider, per §4.3.6.
func toCompletionHistory(messages []models.Message) []llm.CompletionMessage {
	out := make([]llm.CompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, toCompletionMessage(m))
	}
	return out
}

func toCompletionMessage(m models.Message) llm.CompletionMessage {
	cleaned := stripLegacyToolTags(m.Content)
	cm := llm.CompletionMessage{
		Role:       string(m.Role),
		Content:    cleaned,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		cm.ToolCalls = append(cm.ToolCalls, llm.CompletionToolCall{
			ID:        tc.ID,
			Name:      tc.Name,
			Arguments: string(tc.Arguments),
		})
	}
	return cm
}

func stripLegacyToolTags(content string) string {
	f := &tagFilter{}
	out := f.Feed(content)
	return out + f.Flush()
}

func cloneResults(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
