package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/internal/util"
)

// Failure kinds surfaced to the agent tool loop as structured tool results
// rather than as loop errors, per §4.5. These are deliberately distinct from
// core.ErrorKind: a failed tool call does not fail the node by itself, only
// an agent that re-raises it (or a loop that exhausts its iteration budget)
// does.
const (
	FailureInvalidArguments = "InvalidArguments"
	FailureTimeout          = "ToolTimeout"
	FailureUnavailable      = "ToolUnavailable"
	FailureFailed           = "ToolFailed"
)

// Binding pairs a resolved tool with the identifier a workflow references it
// by, returned from Resolve so callers don't need a second registry lookup.
type Binding struct {
	ID   string
	Tool Tool
}

// ResolveOne looks up a single tool id, returning an error naming the id
// when it is not registered.
func (r *Registry) ResolveOne(id string) (Binding, error) {
	t, ok := r.Lookup(id)
	if !ok {
		return Binding{}, fmt.Errorf("tool: unknown tool id %q", id)
	}
	return Binding{ID: id, Tool: t}, nil
}

// SuspendRequest is a sentinel a tool implementation can return as its
// result to ask the enclosing AGENT node to pause rather than continue the
// tool loop, e.g. a "request_confirmation" tool that needs a human
// response before the workflow can proceed. The tool loop recognizes this
// value and stops driving further iterations; the node executor turns it
// into a §4.2 Suspend outcome instead of a normal completion.
type SuspendRequest struct {
	Reason string
}

// Result is the outcome of Invoke: exactly one of Value or Failure is set.
// Callers append Result to the tool-loop transcript as a FunctionResponse
// regardless of which branch fired; the loop never treats a ToolError as a
// reason to abort, only as content the model observes.
type Result struct {
	Value   any
	Failure *ToolError
}

// Invoke validates arguments against binding's schema, then executes it under
// deadline. It never returns a Go error for an ordinary tool failure: those
// are categorized into Result.Failure so the caller can format a structured
// tool result for the model, matching the loop's "observe and recover"
// design (§4.5).
func Invoke(toolCtx *core.ToolContext, binding Binding, args map[string]any, deadline time.Time) Result {
	if err := util.ValidateParameters(args, binding.Tool.Parameters()); err != nil {
		return Result{Failure: &ToolError{
			Tool:    binding.ID,
			Message: err.Error(),
			Code:    FailureInvalidArguments,
			Details: err,
		}}
	}

	callCtx := toolCtx.Context
	var cancel context.CancelFunc
	if !deadline.IsZero() {
		callCtx, cancel = context.WithDeadline(callCtx, deadline)
		defer cancel()
	}

	scoped := core.NewToolContext(callCtx, toolCtx.ExecutionID, toolCtx.NodeID, toolCtx.ToolCallID, toolCtx.Logger())

	type callOutcome struct {
		value any
		err   error
	}
	done := make(chan callOutcome, 1)
	go func() {
		v, err := binding.Tool.Call(scoped, args)
		done <- callOutcome{v, err}
	}()

	select {
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return Result{Failure: &ToolError{
				Tool:    binding.ID,
				Message: "tool call exceeded its deadline",
				Code:    FailureTimeout,
			}}
		}
		return Result{Failure: &ToolError{
			Tool:    binding.ID,
			Message: "tool call cancelled",
			Code:    FailureFailed,
			Details: callCtx.Err(),
		}}
	case out := <-done:
		if out.err != nil {
			var te *ToolError
			if errors.As(out.err, &te) {
				if te.Code == "" {
					te.Code = FailureFailed
				}
				return Result{Failure: te}
			}
			return Result{Failure: &ToolError{
				Tool:    binding.ID,
				Message: out.err.Error(),
				Code:    FailureFailed,
			}}
		}
		return Result{Value: out.value}
	}
}
