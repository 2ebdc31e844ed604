package testutil

import (
	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/tool"
)

// FuncTool adapts a plain function to the tool.Tool interface so tests can
// define one-off tools inline instead of a named type per behavior.
type FuncTool struct {
	NameVal           string
	DescriptionVal    string
	ParametersVal     map[string]interface{}
	SideEffectFreeVal bool
	CallFn            func(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error)
}

func (f FuncTool) Name() string                        { return f.NameVal }
func (f FuncTool) Description() string                 { return f.DescriptionVal }
func (f FuncTool) Parameters() map[string]interface{}  { return f.ParametersVal }
func (f FuncTool) SideEffectFree() bool                { return f.SideEffectFreeVal }
func (f FuncTool) Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error) {
	return f.CallFn(toolCtx, args)
}

var _ tool.Tool = FuncTool{}

// SuspendingTool always returns a tool.SuspendRequest with a fixed reason,
// used to exercise the AGENT node's suspend-on-tool-request path.
func SuspendingTool(name, reason string) FuncTool {
	return FuncTool{
		NameVal:        name,
		DescriptionVal: "pauses the workflow for external input",
		ParametersVal:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		CallFn: func(*core.ToolContext, map[string]interface{}) (interface{}, error) {
			return tool.SuspendRequest{Reason: reason}, nil
		},
	}
}

// FailingTool always returns err, used to exercise tool-failure recovery in
// the tool loop (the loop surfaces it as a structured FunctionResponse
// error rather than aborting).
func FailingTool(name string, err error) FuncTool {
	return FuncTool{
		NameVal:        name,
		DescriptionVal: "always fails",
		ParametersVal:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		CallFn: func(*core.ToolContext, map[string]interface{}) (interface{}, error) {
			return nil, err
		},
	}
}

// EchoTool returns its input arguments unchanged under the "echo" key.
func EchoTool(name string) FuncTool {
	return FuncTool{
		NameVal:           name,
		DescriptionVal:    "echoes its input arguments",
		ParametersVal:     map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		SideEffectFreeVal: true,
		CallFn: func(_ *core.ToolContext, args map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"echo": args}, nil
		},
	}
}
