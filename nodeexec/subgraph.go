package nodeexec

import (
	"fmt"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/jsonpath"
)

// Subgraph projects a subset of parent state into the child graph via
// input_mapping, runs the child to completion through the scheduler-
// injected RunChild callback (sharing the parent's checkpointer under a
// namespaced thread id, per §4.2), and merges the child's final state
// under output_key before advancing along the node's single outgoing
// edge. Cancellation propagates for free: RunChild shares execCtx.Ctx.
func Subgraph(state core.State, node core.NodeDescription, execCtx *Context) Outcome {
	cfg := node.Subgraph
	child, ok := execCtx.Graph.Subgraphs[node.NodeID]
	if !ok {
		return Fail(core.NewError(core.ErrorKindCompilation, fmt.Sprintf("subgraph node %q has no compiled child graph", node.NodeID), nil))
	}
	if execCtx.RunChild == nil {
		return Fail(core.NewError(core.ErrorKindCompilation, fmt.Sprintf("subgraph node %q: no SubgraphRunner configured", node.NodeID), nil))
	}

	selectors, _, err := jsonpath.ParseMapping(cfg.InputMapping)
	if err != nil {
		return Fail(core.NewError(core.ErrorKindCompilation, "bad input_mapping", err))
	}
	projected, err := jsonpath.EvalBundle(selectors, state)
	if err != nil {
		return Fail(core.NewError(core.ErrorKindCompilation, "input_mapping evaluation failed", err))
	}

	childThreadID := execCtx.ExecutionID + "/" + node.NodeID
	if tid, ok := state[core.StateKeyThreadID].(string); ok && tid != "" {
		childThreadID = tid + "/" + node.NodeID
	}

	finalState, errDetail := execCtx.RunChild(execCtx.Ctx, child, childThreadID, core.State(projected))
	if errDetail != nil {
		return Fail(errDetail)
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
	return StateUpdate(core.Delta{outputKey: map[string]any(finalState)}, targets)
}
