package tool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/tool"
)

func echoTool(name string) *tool.FunctionTool {
	return tool.NewFunctionTool(name, "echoes its input", map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": "string"}},
		"required":   []any{"x"},
	}, true, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["x"], nil
	})
}

func TestRegistry_RegisterThenLookup(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(echoTool("echo"))

	got, ok := r.Lookup("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", got.Name())

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(echoTool("echo"))

	assert.Panics(t, func() { r.Register(echoTool("echo")) })
}

func TestRegistry_RegisterAfterSealPanics(t *testing.T) {
	r := tool.NewRegistry()
	r.Seal()

	assert.Panics(t, func() { r.Register(echoTool("echo")) })
}

func TestRegistry_ResolveReturnsErrorNamingFirstMissingID(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(echoTool("echo"))

	_, err := r.Resolve([]string{"echo", "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestRegistry_ResolveReturnsAllToolsInOrder(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(echoTool("a"))
	r.Register(echoTool("b"))

	got, err := r.Resolve([]string{"b", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Name())
	assert.Equal(t, "a", got[1].Name())
}

func TestFunctionTool_CallRejectsMissingRequiredArgument(t *testing.T) {
	ft := echoTool("echo")
	toolCtx := core.NewToolContext(context.Background(), "exec-1", "node-1", "call-1", nil)

	_, err := ft.Call(toolCtx, map[string]any{})
	require.Error(t, err)

	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_CallInvokesFnOnValidArguments(t *testing.T) {
	ft := echoTool("echo")
	toolCtx := core.NewToolContext(context.Background(), "exec-1", "node-1", "call-1", nil)

	out, err := ft.Call(toolCtx, map[string]any{"x": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestFunctionTool_CallWrapsNonToolErrorAsExecutionError(t *testing.T) {
	ft := tool.NewFunctionTool("boom", "always fails", map[string]any{
		"type": "object", "properties": map[string]any{},
	}, true, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, assertErr{}
	})
	toolCtx := core.NewToolContext(context.Background(), "exec-1", "node-1", "call-1", nil)

	_, err := ft.Call(toolCtx, map[string]any{})
	require.Error(t, err)

	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
