package scheduler

import "github.com/flowstack/orchestrator/core"

// freshLedger builds an empty JoinRecord per JOIN node in graph, from its
// resolved JoinWaitFor predecessor set.
func freshLedger(graph *core.CompiledGraph) map[string]*core.JoinRecord {
	out := make(map[string]*core.JoinRecord, len(graph.JoinWaitFor))
	for joinID, preds := range graph.JoinWaitFor {
		out[joinID] = &core.JoinRecord{
			WaitFor:   append([]string{}, preds...),
			Completed: make(map[string]core.Delta),
			Failed:    make(map[string]bool),
		}
	}
	return out
}

// cloneLedger deep-copies a checkpointed ledger so the scheduler never
// mutates state a Checkpointer handed back by reference.
func cloneLedger(in map[string]*core.JoinRecord) map[string]*core.JoinRecord {
	out := make(map[string]*core.JoinRecord, len(in))
	for k, v := range in {
		rec := &core.JoinRecord{
			WaitFor:   append([]string{}, v.WaitFor...),
			Completed: make(map[string]core.Delta, len(v.Completed)),
			Failed:    make(map[string]bool, len(v.Failed)),
		}
		for pk, pv := range v.Completed {
			rec.Completed[pk] = pv
		}
		for pk, pv := range v.Failed {
			rec.Failed[pk] = pv
		}
		out[k] = rec
	}
	return out
}

// buildPredToJoins inverts CompiledGraph.JoinWaitFor into predecessor node
// id -> the join node ids that predecessor feeds, so a failed or completed
// node can update every join ledger it participates in without the
// scheduler re-scanning the whole graph each super-step.
func buildPredToJoins(graph *core.CompiledGraph) map[string][]string {
	out := make(map[string][]string)
	for joinID, preds := range graph.JoinWaitFor {
		for _, p := range preds {
			out[p] = append(out[p], joinID)
		}
	}
	return out
}

// classifyTargets splits a StateUpdate outcome's NextFrontier into targets
// that route through a join's ledger (because fromNode is one of that
// join's declared wait_for predecessors) versus targets that join the next
// frontier directly. __end__ is dropped from both: it never becomes a
// frontier entry.
func classifyTargets(graph *core.CompiledGraph, fromNode string, targets []string) (joinTargets, passTargets []string) {
	for _, t := range targets {
		if t == core.EndSentinel {
			continue
		}
		node, ok := graph.Nodes[t]
		if ok && node.Kind == core.NodeKindJoin && isWaitForMember(graph, t, fromNode) {
			joinTargets = append(joinTargets, t)
			continue
		}
		passTargets = append(passTargets, t)
	}
	return joinTargets, passTargets
}

func isWaitForMember(graph *core.CompiledGraph, joinID, nodeID string) bool {
	for _, p := range graph.JoinWaitFor[joinID] {
		if p == nodeID {
			return true
		}
	}
	return false
}
