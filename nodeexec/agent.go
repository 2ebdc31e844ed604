package nodeexec

import (
	"fmt"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/internal/util"
	"github.com/flowstack/orchestrator/jsonpath"
	"github.com/flowstack/orchestrator/tool"
	"github.com/flowstack/orchestrator/toolloop"
)

// Agent materializes the node's input bundle from state via input_mapping,
// drives the bounded tool loop (§4.4) against the resolved agent
// definition and its bound tools, writes the final response under
// output_key, and advances along the node's single outgoing edge.
// Grounded on flow/base.go's runOnce, generalized through the toolloop
// package.
func Agent(state core.State, node core.NodeDescription, execCtx *Context) Outcome {
	cfg := node.Agent
	def, ok := execCtx.Graph.ResolvedAgents[node.NodeID]
	if !ok {
		return Fail(core.NewError(core.ErrorKindCompilation, fmt.Sprintf("agent node %q has no resolved agent definition", node.NodeID), nil))
	}

	selectors, order, err := jsonpath.ParseMapping(cfg.InputMapping)
	if err != nil {
		return Fail(core.NewError(core.ErrorKindCompilation, "bad input_mapping", err))
	}
	bundle, err := jsonpath.EvalBundle(selectors, state)
	if err != nil {
		return Fail(core.NewError(core.ErrorKindCompilation, "input_mapping evaluation failed", err))
	}
	bundleJSON, err := jsonpath.EncodeBundle(order, bundle)
	if err != nil {
		return Fail(core.NewError(core.ErrorKindCompilation, "input_mapping encoding failed", err))
	}

	m, err := execCtx.Models(def.Model)
	if err != nil {
		return Fail(core.NewError(core.ErrorKindProvider, "model provider unavailable", err))
	}

	bindings := make(map[string]tool.Binding, len(def.ToolIDs))
	for _, tid := range def.ToolIDs {
		t, ok := execCtx.Tools.Lookup(tid)
		if !ok {
			return Fail(core.NewError(core.ErrorKindCompilation, fmt.Sprintf("tool %q bound to agent %q is not registered", tid, def.ID), nil))
		}
		bindings[t.Name()] = tool.Binding{ID: tid, Tool: t}
	}

	loop := &toolloop.Loop{
		Model:        m,
		ModelConfig:  def.Model,
		Tools:        bindings,
		OutputSchema: def.OutputSchema,
		Budget: toolloop.Budget{
			MaxIterations:    execCtx.MaxToolLoopIterations,
			ToolCallDeadline: execCtx.ToolCallDeadline,
		},
		Logger: execCtx.Logger,
		Events: execCtx.Events,
	}

	instructions, err := util.RenderTemplate(def.Instructions, bundle)
	if err != nil {
		return Fail(core.NewError(core.ErrorKindCompilation, "instructions template render failed", err))
	}

	userContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: bundleJSON}}}
	result, loopErr := loop.Run(execCtx.Ctx, execCtx.ExecutionID, node.NodeID, instructions, userContent)
	if loopErr != nil {
		if ed, ok := loopErr.(*core.ErrorDetail); ok {
			return Fail(ed)
		}
		return Fail(core.NewError(core.ErrorKindProvider, "agent tool loop failed", loopErr))
	}

	if result.Suspended {
		return Suspend(result.SuspendReason)
	}

	var output any
	if def.OutputSchema != nil {
		output = result.Structured
	} else {
		output = textOf(result.Final)
	}

	outputKey := cfg.OutputKey
	if outputKey == "" {
		outputKey = node.NodeID
	}

	edges := execCtx.Graph.Outgoing[node.NodeID]
	targets := make([]string, len(edges))
	for i, e := range edges {
		targets[i] = e.TargetID
	}
	return StateUpdate(core.Delta{outputKey: output}, targets)
}

func textOf(c core.Content) string {
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(core.TextPart); ok {
			out += tp.Text
		}
	}
	return out
}
