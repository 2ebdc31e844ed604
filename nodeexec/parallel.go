package nodeexec

import "github.com/flowstack/orchestrator/core"

// Parallel emits one frontier entry per outgoing edge and produces no
// state delta of its own; the scheduler is responsible for actually
// running each target concurrently (§4.2: "this executor itself produces
// no state delta and takes zero time").
func Parallel(state core.State, node core.NodeDescription, execCtx *Context) Outcome {
	edges := execCtx.Graph.Outgoing[node.NodeID]
	targets := make([]string, len(edges))
	for i, e := range edges {
		targets[i] = e.TargetID
	}
	return StateUpdate(nil, targets)
}
