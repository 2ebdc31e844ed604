package tool

import (
	"fmt"
	"time"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/internal/util"
)

// FunctionTool adapts a plain Go function to the Tool interface. It validates
// arguments against a JSON-Schema-like parameter map before invoking the
// function, and normalizes errors into *ToolError so the tool loop can branch
// on Code without inspecting arbitrary error types.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	sideEffectFree bool
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and
// implementation. sideEffectFree marks the tool eligible for concurrent
// execution within a single tool-loop iteration.
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	sideEffectFree bool,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:           name,
		description:    description,
		parameters:     parameters,
		sideEffectFree: sideEffectFree,
		fn:             fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct via
// reflection instead of a hand-written schema map.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	sideEffectFree bool,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	schema := util.CreateSchema(structType)
	return NewFunctionTool(name, description, schema, sideEffectFree, fn)
}

func (t *FunctionTool) Name() string { return t.name }

func (t *FunctionTool) Description() string { return t.description }

func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// SideEffectFree reports whether the tool loop may run this tool concurrently
// with other side-effect-free tools requested in the same model turn.
func (t *FunctionTool) SideEffectFree() bool { return t.sideEffectFree }

// Call validates args against the declared schema, then invokes fn. A
// *ToolError returned by fn is forwarded unchanged; any other error is
// wrapped with Code "EXECUTION_ERROR".
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "tool_call_id", toolCtx.ToolCallID)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok {
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)
			return nil, toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
