package nodeexec

import (
	"github.com/flowstack/orchestrator/core"
)

// Router evaluates node's outgoing compiled edges against state in
// declared order; the first matching predicate wins, and the
// compile-time-synthesized default edge guarantees one always fires
// (testable property 5: router completeness). Router produces no state
// delta beyond routing itself; state is unaffected by which way it went.
func Router(state core.State, node core.NodeDescription, execCtx *Context) Outcome {
	edges := execCtx.Graph.Outgoing[node.NodeID]
	for _, edge := range edges {
		if edge.Predicate == nil {
			return StateUpdate(nil, []string{edge.TargetID})
		}
		matched, err := edge.Predicate.Evaluate(state)
		if err != nil {
			return Fail(core.NewError(core.ErrorKindCompilation, "router condition evaluation failed", err))
		}
		if matched {
			return StateUpdate(nil, []string{edge.TargetID})
		}
	}
	// Unreachable when the compiler has synthesized a default edge, which
	// it always does (§4.1 step 5); guarded here rather than panicking so
	// a hand-built CompiledGraph that skipped compilation fails cleanly.
	return Fail(core.NewError(core.ErrorKindCompilation, "router has no matching edge and no default", nil))
}
