package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/gtplanner/core/internal/events"
	"github.com/gtplanner/core/internal/streaming"
)

// Config mirrors the teacher's ExecutorConfig/DefaultExecutorConfig.
type Config struct {
	MaxConcurrency int
	DefaultTimeout time.Duration
}

// DefaultConfig matches the teacher's DefaultExecutorConfig values.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 5,
		DefaultTimeout: 30 * time.Second,
	}
}

// Call is one tool invocation requested by the orchestrator.
type Call struct {
	ID        string
	ToolName  string
	Arguments json.RawMessage
}

// Result is the outcome of one Call, always in the same position as its
// Call in the input slice.
type Result struct {
	CallID        string
	ToolName      string
	Result        json.RawMessage
	Error         error
	ExecutionTime float64
}

// Executor runs batches of tool Calls concurrently against a Registry.
type Executor struct {
	registry    Registry
	cfg         Config
	sem         chan struct{}
	schemaCache sync.Map // tool name -> *jsonschema.Schema
}

// New constructs an Executor.
func New(registry Registry, cfg Config) *Executor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	return &Executor{
		registry: registry,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxConcurrency),
	}
}

// Registry returns the tool registry this executor dispatches against,
// so a caller (the orchestrator) can advertise the same catalog to the
// LLM that the executor will actually honor.
func (e *Executor) Registry() Registry {
	return e.registry
}

// ExecuteAll dispatches every call concurrently and returns results in
// the same order as calls, regardless of completion order. A partial
// failure never cancels siblings.
func (e *Executor) ExecuteAll(ctx context.Context, calls []Call, session *streaming.Session) []Result {
	results := make([]Result, len(calls))

	for i, call := range calls {
		session.EmitEvent(events.ToolCallStart(session.ID(), events.ToolCallParams{
			ToolName:  call.ToolName,
			CallID:    call.ID,
			Arguments: rawToAny(call.Arguments),
		}))
	}

	done := make(chan int, len(calls))
	for i, call := range calls {
		go func(i int, call Call) {
			results[i] = e.execute(ctx, call, session)
			done <- i
		}(i, call)
	}
	for range calls {
		<-done
	}

	for _, r := range results {
		status := events.ToolStatusCompleted
		errMsg := ""
		if r.Error != nil {
			status = events.ToolStatusFailed
			errMsg = r.Error.Error()
		}
		et := r.ExecutionTime
		session.EmitEvent(events.ToolCallEnd(session.ID(), events.ToolCallParams{
			ToolName:      r.ToolName,
			Status:        status,
			CallID:        r.CallID,
			Result:        rawToAny(r.Result),
			ExecutionTime: &et,
			ErrorMessage:  errMsg,
		}))
	}

	return results
}

func (e *Executor) execute(ctx context.Context, call Call, session *streaming.Session) Result {
	e.sem <- struct{}{}
	defer func() { <-e.sem }()

	start := time.Now()
	res := Result{CallID: call.ID, ToolName: call.ToolName}

	tool, ok := e.registry.Lookup(call.ToolName)
	if !ok {
		res.Error = fmt.Errorf("unknown tool %q", call.ToolName)
		res.ExecutionTime = time.Since(start).Seconds()
		return res
	}

	if err := e.validateArguments(tool, call.Arguments); err != nil {
		res.Error = fmt.Errorf("arguments for tool %q: %w", call.ToolName, err)
		res.ExecutionTime = time.Since(start).Seconds()
		return res
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.DefaultTimeout)
	defer cancel()

	result, err := e.invokeWithRecover(callCtx, tool, call, session)
	res.ExecutionTime = time.Since(start).Seconds()

	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		res.Error = errors.New("timeout")
		return res
	}
	if err != nil {
		res.Error = err
		return res
	}
	res.Result = result
	return res
}

// invokeWithRecover runs tool.Invoke in the current goroutine, converting
// a panic into an error, matching the teacher's executeWithTimeout
// panic-recovery discipline.
func (e *Executor) invokeWithRecover(ctx context.Context, tool Tool, call Call, session *streaming.Session) (result json.RawMessage, err error) {
	reporter := &progressReporter{session: session, toolName: call.ToolName}
	resultCh := make(chan json.RawMessage, 1)
	errCh := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("tool %q panicked: %v", call.ToolName, r)
			}
		}()
		out, invokeErr := tool.Invoke(ctx, call.Arguments, reporter)
		if invokeErr != nil {
			errCh <- invokeErr
			return
		}
		resultCh <- out
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case out := <-resultCh:
		return out, nil
	}
}

// validateArguments checks call arguments against tool.Schema() before
// dispatch, matching the teacher's pkg/pluginsdk.ValidateConfig
// compile-then-validate idiom. An empty argument payload validates as
// an empty object, since many tools declare no required properties.
func (e *Executor) validateArguments(tool Tool, raw json.RawMessage) error {
	schema, err := e.compileSchema(tool)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	payload := raw
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// compileSchema compiles (and caches) tool.Schema() as a JSON Schema,
// keyed by tool name since each registered tool's schema is static for
// the lifetime of the Executor.
func (e *Executor) compileSchema(tool Tool) (*jsonschema.Schema, error) {
	if cached, ok := e.schemaCache.Load(tool.Name()); ok {
		return cached.(*jsonschema.Schema), nil
	}

	compiled, err := jsonschema.CompileString(tool.Name()+".schema.json", string(tool.Schema()))
	if err != nil {
		return nil, err
	}
	e.schemaCache.Store(tool.Name(), compiled)
	return compiled, nil
}

func rawToAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

type progressReporter struct {
	session  *streaming.Session
	toolName string
}

func (p *progressReporter) ReportProgress(callID, message string) {
	p.session.EmitEvent(events.ToolCallProgress(p.session.ID(), events.ToolCallParams{
		ToolName:        p.toolName,
		CallID:          callID,
		ProgressMessage: message,
	}))
}
