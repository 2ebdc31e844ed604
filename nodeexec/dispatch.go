package nodeexec

import (
	"fmt"

	"github.com/flowstack/orchestrator/core"
)

// Executor is the §4.2 function shape every node kind implements:
// (state, node_config, context) -> NodeOutcome.
type Executor func(state core.State, node core.NodeDescription, execCtx *Context) Outcome

// Dispatch selects the executor for node.Kind. Node kinds are a closed set
// dispatched by a switch, never an open interface hierarchy (Design Note
// "Dynamic-dispatch node kinds"); new capability comes from new tools, not
// new cases here.
func Dispatch(node core.NodeDescription) (Executor, error) {
	switch node.Kind {
	case core.NodeKindAgent:
		return Agent, nil
	case core.NodeKindRouter:
		return Router, nil
	case core.NodeKindParallel:
		return Parallel, nil
	case core.NodeKindJoin:
		return Join, nil
	case core.NodeKindSubgraph:
		return Subgraph, nil
	default:
		return nil, fmt.Errorf("nodeexec: unknown node kind %q", node.Kind)
	}
}
