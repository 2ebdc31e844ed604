// Package toolloop implements §4.4: the bounded ReAct-style loop that
// drives a model through tool calls until a terminal response, a hard
// iteration cap, or cancellation. It is grounded tightly on
// flow/base.go's BaseFlow.runOnce; the request/response-processor
// pipeline collapses here into a single loop body since the node
// executor, not a pluggable processor chain, owns pre/post-processing at
// this layer, generalized to add the iteration cap, concurrent
// side-effect-free tool dispatch, and structured-output retry-once.
package toolloop

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/internal/util"
	"github.com/flowstack/orchestrator/logging"
	"github.com/flowstack/orchestrator/model"
	"github.com/flowstack/orchestrator/tool"
)

// DefaultMaxIterations is the default hard cap on model calls within one
// loop, per §4.4.
const DefaultMaxIterations = 10

// Budget carries the tunables a tool loop runs under.
type Budget struct {
	MaxIterations  int           // default DefaultMaxIterations if zero
	ToolCallDeadline time.Duration // per-call deadline; zero means no deadline
}

// Loop drives one AGENT node's model conversation.
type Loop struct {
	Model        model.Model
	ModelConfig  core.ModelConfig
	Tools        map[string]tool.Binding // by tool name, as declared to the model
	OutputSchema map[string]any          // non-nil enables structured-output mode
	Budget       Budget
	Logger       logging.Logger
	Events       EventSink // optional; nil disables tool_call/tool_result notifications
}

// Result is the loop's outcome on a normal, suspended, or budget-exhausted
// return.
type Result struct {
	Final       core.Content
	Structured  map[string]any // populated only when OutputSchema is set
	Iterations  int
	Messages    []core.Content // full transcript, always populated
	Exhausted   bool

	// Suspended reports a tool requested a pause via tool.SuspendRequest
	// (e.g. a confirmation gate); SuspendReason carries its Reason. The
	// loop stops driving further iterations the moment one surfaces.
	Suspended     bool
	SuspendReason string
}

// suspendSignal lets concurrent tool dispatch goroutines report a
// tool.SuspendRequest back to Run without racing: the first one observed
// wins, matching the "stop driving further iterations" contract.
type suspendSignal struct {
	mu     sync.Mutex
	reason string
	fired  bool
}

func (s *suspendSignal) set(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fired {
		s.fired = true
		s.reason = reason
	}
}

func (s *suspendSignal) get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason, s.fired
}

// Run executes the loop: system + user message, then up to Budget
// iterations of model-call / tool-dispatch / append, until the model
// returns no tool calls (or, in structured-output mode, a value that
// validates against OutputSchema).
func (l *Loop) Run(ctx context.Context, executionID, nodeID string, systemPrompt string, userContent core.Content) (Result, error) {
	max := l.Budget.MaxIterations
	if max <= 0 {
		max = DefaultMaxIterations
	}
	logger := l.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	messages := []core.Content{
		{Role: "system", Parts: []core.Part{core.TextPart{Text: systemPrompt}}},
		userContent,
	}

	toolDefs := l.toolDefinitions()
	structuredRetried := false

	for iter := 1; iter <= max; iter++ {
		select {
		case <-ctx.Done():
			return Result{Messages: messages, Iterations: iter - 1}, ctx.Err()
		default:
		}

		req := model.Request{Contents: messages, Tools: toolDefs}
		content, finishReason, err := l.generate(ctx, req)
		if err != nil {
			return Result{Messages: messages, Iterations: iter}, core.NewRetryableError(core.ErrorKindProvider, "model generate failed", err)
		}
		messages = append(messages, content)

		calls := functionCalls(content)
		if len(calls) == 0 {
			if l.OutputSchema != nil {
				structured, verr := l.validateStructured(content)
				if verr == nil {
					return Result{Final: content, Structured: structured, Iterations: iter, Messages: messages}, nil
				}
				if structuredRetried {
					return Result{Messages: messages, Iterations: iter}, core.NewError(core.ErrorKindSchemaValidation, verr.Error(), verr)
				}
				structuredRetried = true
				messages = append(messages, core.Content{
					Role:  "user",
					Parts: []core.Part{core.TextPart{Text: fmt.Sprintf("Your previous response did not validate against the required schema: %v. Reply again with a value matching the schema.", verr)}},
				})
				continue
			}
			return Result{Final: content, Iterations: iter, Messages: messages}, nil
		}

		logger.Debug("toolloop.iteration.tool_calls", "node_id", nodeID, "iteration", iter, "count", len(calls))

		sig := &suspendSignal{}
		responses := l.dispatch(ctx, executionID, nodeID, calls, sig)
		messages = append(messages, core.Content{Role: "tool", Parts: responses})

		if reason, fired := sig.get(); fired {
			return Result{Suspended: true, SuspendReason: reason, Iterations: iter, Messages: messages}, nil
		}

		_ = finishReason
	}

	return Result{Messages: messages, Iterations: max, Exhausted: true},
		core.NewError(core.ErrorKindToolLoopExhausted, fmt.Sprintf("tool loop exceeded %d iterations", max), nil)
}

// generate collects a (possibly streamed) Model.Generate call into one
// final Content, matching flow/base.go's channel-draining shape but
// folding partial chunks rather than forwarding each as a separate event
// (the loop only needs the final turn, not a live stream; streaming to
// the caller is the event bus's job, one layer up).
func (l *Loop) generate(ctx context.Context, req model.Request) (core.Content, string, error) {
	respCh, errCh := l.Model.Generate(ctx, req)
	var final core.Content
	var finishReason string
	for {
		select {
		case <-ctx.Done():
			return final, finishReason, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				return final, finishReason, nil
			}
			if !resp.Partial {
				final = resp.Content
				finishReason = resp.FinishReason
			}
		case err, ok := <-errCh:
			if ok && err != nil {
				return final, finishReason, err
			}
		}
	}
}

func (l *Loop) toolDefinitions() []model.ToolDefinition {
	if len(l.Tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(l.Tools))
	for name, b := range l.Tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        name,
				Description: b.Tool.Description(),
				Parameters:  b.Tool.Parameters(),
			},
		})
	}
	return defs
}

func functionCalls(c core.Content) []core.FunctionCall {
	var out []core.FunctionCall
	for _, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			out = append(out, fc.FunctionCall)
		}
	}
	return out
}

// dispatch executes every tool call emitted in one iteration: calls
// declared side_effect_free run concurrently, everything else runs
// sequentially in emission order, then results are re-assembled in the
// model's original emission order so the recorded transcript stays
// sequential regardless of which calls ran in parallel (§5's "strict
// sequential order" guarantee for the loop transcript).
func (l *Loop) dispatch(ctx context.Context, executionID, nodeID string, calls []core.FunctionCall, sig *suspendSignal) []core.Part {
	results := make([]core.Part, len(calls))

	var concurrentIdx []int
	for i, fc := range calls {
		binding, ok := l.Tools[fc.Name]
		if ok && binding.Tool.SideEffectFree() {
			concurrentIdx = append(concurrentIdx, i)
		}
	}

	var wg sync.WaitGroup
	for _, i := range concurrentIdx {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = l.callOne(ctx, executionID, nodeID, calls[i], sig)
		}(i)
	}
	wg.Wait()

	for i, fc := range calls {
		if results[i] != nil {
			continue
		}
		results[i] = l.callOne(ctx, executionID, nodeID, fc, sig)
	}
	return results
}

func (l *Loop) callOne(ctx context.Context, executionID, nodeID string, fc core.FunctionCall, sig *suspendSignal) core.Part {
	binding, ok := l.Tools[fc.Name]
	if !ok {
		return core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID: fc.ID, Name: fc.Name, Error: fmt.Sprintf("%s: tool %q is not bound to this agent", tool.FailureUnavailable, fc.Name),
		}}
	}

	var args map[string]any
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
				ID: fc.ID, Name: fc.Name, Error: fmt.Sprintf("%s: %v", tool.FailureInvalidArguments, err),
			}}
		}
	}

	var deadline time.Time
	if l.Budget.ToolCallDeadline > 0 {
		deadline = time.Now().Add(l.Budget.ToolCallDeadline)
	}

	if l.Events != nil {
		l.Events.ToolCall(nodeID, binding.ID, args)
	}
	toolCtx := core.NewToolContext(ctx, executionID, nodeID, fc.ID, l.Logger)
	result := tool.Invoke(toolCtx, binding, args, deadline)
	if l.Events != nil {
		l.Events.ToolResult(nodeID, binding.ID, result.Value, result.Failure != nil)
	}
	if result.Failure != nil {
		return core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID: fc.ID, Name: fc.Name, Error: fmt.Sprintf("%s: %s", result.Failure.Code, result.Failure.Message),
		}}
	}
	if sr, ok := result.Value.(tool.SuspendRequest); ok {
		sig.set(sr.Reason)
		return core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID: fc.ID, Name: fc.Name, Response: map[string]any{"status": "awaiting_input", "reason": sr.Reason},
		}}
	}
	return core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
		ID: fc.ID, Name: fc.Name, Response: result.Value,
	}}
}

func (l *Loop) validateStructured(c core.Content) (map[string]any, error) {
	var text string
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			text += tp.Text
		}
	}
	var structured map[string]any
	if err := json.Unmarshal([]byte(text), &structured); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	if err := util.ValidateParameters(structured, l.OutputSchema); err != nil {
		return nil, err
	}
	return structured, nil
}
