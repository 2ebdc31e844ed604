package nodeexec

import (
	"fmt"
	"sort"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/merge"
)

// Join consults the ledger entry the scheduler has already decided is
// ready (every WaitFor predecessor completed or failed), applies the
// node's failure policy, and, if the policy doesn't trip, synthesizes a
// final delta from the completed predecessors' deltas via
// AggregationStrategy. It never fires before readiness (testable property
// 6): Join checks JoinLedger.Ready() itself and fails the node if the
// ledger entry is missing or not yet ready.
func Join(state core.State, node core.NodeDescription, execCtx *Context) Outcome {
	cfg := node.Join
	rec := execCtx.JoinLedger
	if rec == nil || !rec.Ready() {
		return Fail(core.NewError(core.ErrorKindCompilation, fmt.Sprintf("join %q invoked before its ledger entry was ready", node.NodeID), nil))
	}

	failed := rec.FailureCount()
	total := len(rec.WaitFor)
	policyTripped := false
	switch cfg.FailurePolicy {
	case core.FailurePolicyAny:
		policyTripped = failed > 0
	case core.FailurePolicyAllRequired:
		policyTripped = failed == total
	case core.FailurePolicyMajority:
		fallthrough
	default:
		policyTripped = failed*2 > total
	}
	if policyTripped {
		return Fail(core.NewError(core.ErrorKindJoinFailed, fmt.Sprintf("join %q failure policy %q tripped: %d/%d predecessors failed", node.NodeID, cfg.FailurePolicy, failed, total), nil))
	}

	preds := append([]string{}, rec.WaitFor...)
	sort.Strings(preds)
	deltas := make([]core.Delta, 0, len(preds))
	for _, p := range preds {
		if d, ok := rec.Completed[p]; ok {
			deltas = append(deltas, d)
		}
	}

	aggregated, err := aggregate(cfg.AggregationStrategy, deltas, execCtx.Reducers)
	if err != nil {
		return Fail(core.NewError(core.ErrorKindCompilation, fmt.Sprintf("join %q aggregation failed", node.NodeID), err))
	}

	if cfg.OutputKey != "" {
		aggregated = core.Delta{cfg.OutputKey: aggregated}
	}

	edges := execCtx.Graph.Outgoing[node.NodeID]
	targets := make([]string, len(edges))
	for i, e := range edges {
		targets[i] = e.TargetID
	}
	return StateUpdate(aggregated, targets)
}

// aggregate folds deltas under strategy: a built-in merge rule is applied
// key-by-key via merge.Apply against an empty base (so every key present
// in any predecessor's delta ends up in the result); anything else is
// looked up as a user-named reducer.
func aggregate(strategy core.MergeRule, deltas []core.Delta, reducers map[string]Reducer) (core.Delta, error) {
	switch strategy {
	case core.MergeObject, core.MergeAppendList, core.MergeMap, core.MergeReplace, "":
		rule := strategy
		if rule == "" {
			rule = core.MergeObject
		}
		schema := core.StateSchema{}
		node := make([]merge.NodeDelta, len(deltas))
		keys := map[string]bool{}
		for i, d := range deltas {
			node[i] = merge.NodeDelta{NodeID: fmt.Sprintf("%03d", i), Delta: d}
			for k := range d {
				keys[k] = true
			}
		}
		for k := range keys {
			schema[k] = core.SchemaProperty{MergeRule: rule}
		}
		merged, err := merge.Apply(core.State{}, node, schema)
		if err != nil {
			return nil, err
		}
		return core.Delta(merged), nil
	default:
		reducer, ok := reducers[string(strategy)]
		if !ok {
			return nil, fmt.Errorf("unknown aggregation strategy %q", strategy)
		}
		return reducer(deltas)
	}
}
