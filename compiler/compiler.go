// Package compiler implements §4.1: turning a declarative GraphDescription
// into an immutable CompiledGraph, performing every validation stage the
// spec assigns to compile time so that runtime failures are purely data-
// or side-effect-dependent. The structural/cycle-detection idiom (sorted
// adjacency, 3-color DFS with path reconstruction) is grounded on
// script-weaver's internal/graph/validate.go; node-kind dispatch and
// conditional-edge grouping by source follow original_source's
// workflows/compiler.py.
package compiler

import (
	"fmt"
	"sort"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/predicate"
)

// Warnings carries non-fatal compile-time diagnostics (currently just
// unreachable-node notices) alongside a successful CompiledGraph.
type Warnings []string

// DefaultMaxSubgraphDepth bounds SUBGRAPH nesting when a caller doesn't
// supply its own limit, matching the scheduler's runtime default (§5
// reentrancy rule) so a depth violation is never a runtime surprise on a
// graph that compiled cleanly.
const DefaultMaxSubgraphDepth = 4

// Compile validates description and resolves it against resolver, producing
// an immutable CompiledGraph, using DefaultMaxSubgraphDepth to bound nested
// SUBGRAPH compilation.
func Compile(description core.GraphDescription, resolver core.DefinitionResolver) (*core.CompiledGraph, Warnings, error) {
	return CompileWithMaxDepth(description, resolver, DefaultMaxSubgraphDepth)
}

// CompileWithMaxDepth is Compile with an explicit SUBGRAPH nesting bound.
func CompileWithMaxDepth(description core.GraphDescription, resolver core.DefinitionResolver, maxDepth int) (*core.CompiledGraph, Warnings, error) {
	return compile(description, resolver, maxDepth, 0, nil)
}

// compile is Compile's recursive core. depth counts SUBGRAPH nesting from
// the root graph (0); chain lists the workflow ids on the current
// compilation path, letting a nested SUBGRAPH detect a cycle back to an
// ancestor before recursing into it.
func compile(description core.GraphDescription, resolver core.DefinitionResolver, maxDepth, depth int, chain []string) (*core.CompiledGraph, Warnings, error) {
	if err := validateStructure(description); err != nil {
		return nil, nil, err
	}

	outgoing, incoming, err := buildAdjacency(description)
	if err != nil {
		return nil, nil, err
	}

	warnings := checkReachability(description, outgoing)

	if err := checkCyclePolicy(description, outgoing); err != nil {
		return nil, nil, err
	}

	joinWaitFor, err := resolveJoinWaitFor(description, incoming)
	if err != nil {
		return nil, nil, err
	}

	nodeByID := make(map[string]core.NodeDescription, len(description.Nodes))
	for _, n := range description.Nodes {
		nodeByID[n.NodeID] = n
	}

	regions, err := resolveParallelRegions(description, outgoing, nodeByID)
	if err != nil {
		return nil, nil, err
	}

	compiledOutgoing, err := compileRoutes(description, outgoing)
	if err != nil {
		return nil, nil, err
	}

	if err := checkParallelRouterIsolation(description, regions, outgoing, compiledOutgoing, nodeByID); err != nil {
		return nil, nil, err
	}

	resolvedAgents, resolvedTools, subgraphs, err := resolveDefinitions(description, resolver, maxDepth, depth, chain)
	if err != nil {
		return nil, nil, err
	}

	cg := &core.CompiledGraph{
		EntryPoint:      description.EntryPoint,
		Nodes:           nodeByID,
		Outgoing:        compiledOutgoing,
		Incoming:        incoming,
		JoinWaitFor:     joinWaitFor,
		ParallelRegions: regions,
		StateSchema:     description.StateSchema,
		ResolvedAgents:  resolvedAgents,
		ResolvedTools:   resolvedTools,
		Subgraphs:       subgraphs,
	}
	return cg, warnings, nil
}

// validateStructure implements §4.1 step 1: ids unique, endpoints resolve,
// and per-kind shape rules (router >=1 out, parallel >=2 out, join >=2 in).
func validateStructure(d core.GraphDescription) error {
	ids := make(map[string]core.NodeDescription, len(d.Nodes))
	sorted := make([]core.NodeDescription, len(d.Nodes))
	copy(sorted, d.Nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NodeID < sorted[j].NodeID })

	for _, n := range sorted {
		if n.NodeID == core.StartSentinel || n.NodeID == core.EndSentinel {
			return &StructuralError{Kind: "reserved_id", Msg: fmt.Sprintf("node id %q is a reserved sentinel", n.NodeID)}
		}
		if _, dup := ids[n.NodeID]; dup {
			return &StructuralError{Kind: "duplicate_id", Msg: fmt.Sprintf("duplicate node id: %q", n.NodeID)}
		}
		ids[n.NodeID] = n
	}

	if d.EntryPoint == "" {
		return &StructuralError{Kind: "missing_entry_point", Msg: "entry_point is required"}
	}
	if _, ok := ids[d.EntryPoint]; !ok {
		return &StructuralError{Kind: "dangling_entry_point", Msg: fmt.Sprintf("entry_point %q does not exist", d.EntryPoint)}
	}

	outCount := make(map[string]int, len(d.Nodes))
	inCount := make(map[string]int, len(d.Nodes))

	sortedEdges := sortedEdgeCopy(d.Edges)
	for _, e := range sortedEdges {
		if e.SourceID != core.StartSentinel {
			if _, ok := ids[e.SourceID]; !ok {
				return &StructuralError{Kind: "dangling_edge", Msg: fmt.Sprintf("edge source %q does not exist", e.SourceID)}
			}
		}
		if e.TargetID != core.EndSentinel {
			if _, ok := ids[e.TargetID]; !ok {
				return &StructuralError{Kind: "dangling_edge", Msg: fmt.Sprintf("edge target %q does not exist", e.TargetID)}
			}
		}
		outCount[e.SourceID]++
		inCount[e.TargetID]++
	}
	// An implicit __start__ -> EntryPoint edge is synthesized at adjacency
	// build time if the author didn't declare one; account for it here so
	// shape checks below aren't fooled by its absence.
	if outCount[core.StartSentinel] == 0 {
		inCount[d.EntryPoint]++
	}

	for _, n := range sorted {
		switch n.Kind {
		case core.NodeKindRouter:
			if outCount[n.NodeID] < 1 {
				return &StructuralError{Kind: "router_no_edges", Msg: fmt.Sprintf("router %q has no outgoing edges", n.NodeID)}
			}
			if n.Router == nil {
				return &StructuralError{Kind: "router_no_config", Msg: fmt.Sprintf("router %q missing config", n.NodeID)}
			}
		case core.NodeKindParallel:
			if outCount[n.NodeID] < 2 {
				return &StructuralError{Kind: "parallel_insufficient_edges", Msg: fmt.Sprintf("parallel %q needs >=2 outgoing edges, has %d", n.NodeID, outCount[n.NodeID])}
			}
		case core.NodeKindJoin:
			if inCount[n.NodeID] < 2 {
				return &StructuralError{Kind: "join_insufficient_edges", Msg: fmt.Sprintf("join %q needs >=2 incoming edges, has %d", n.NodeID, inCount[n.NodeID])}
			}
			if n.Join == nil || len(n.Join.WaitFor) < 2 {
				return &StructuralError{Kind: "join_bad_wait_for", Msg: fmt.Sprintf("join %q must declare >=2 wait_for predecessors", n.NodeID)}
			}
		case core.NodeKindAgent:
			if n.Agent == nil {
				return &StructuralError{Kind: "agent_no_config", Msg: fmt.Sprintf("agent %q missing config", n.NodeID)}
			}
		case core.NodeKindSubgraph:
			if n.Subgraph == nil {
				return &StructuralError{Kind: "subgraph_no_config", Msg: fmt.Sprintf("subgraph %q missing config", n.NodeID)}
			}
		}
	}
	return nil
}

func sortedEdgeCopy(edges []core.EdgeDescription) []core.EdgeDescription {
	out := make([]core.EdgeDescription, len(edges))
	copy(out, edges)
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

// buildAdjacency constructs raw outgoing/incoming maps, synthesizing the
// __start__ -> EntryPoint edge when the description didn't declare one.
func buildAdjacency(d core.GraphDescription) (outgoing map[string][]core.EdgeDescription, incoming map[string][]string, err error) {
	outgoing = make(map[string][]core.EdgeDescription)
	incoming = make(map[string][]string)

	haveStartEdge := false
	for _, e := range d.Edges {
		if e.SourceID == core.StartSentinel {
			haveStartEdge = true
		}
		outgoing[e.SourceID] = append(outgoing[e.SourceID], e)
		incoming[e.TargetID] = append(incoming[e.TargetID], e.SourceID)
	}
	if !haveStartEdge {
		e := core.EdgeDescription{SourceID: core.StartSentinel, TargetID: d.EntryPoint}
		outgoing[core.StartSentinel] = append(outgoing[core.StartSentinel], e)
		incoming[d.EntryPoint] = append(incoming[d.EntryPoint], core.StartSentinel)
	}
	return outgoing, incoming, nil
}

// checkReachability implements §4.1 step 2: every non-start node reachable
// from __start__ is required; unreachable nodes warn rather than fail.
// An unreachable __end__ is likewise only reported as a warning; it does
// not fail compilation.
func checkReachability(d core.GraphDescription, outgoing map[string][]core.EdgeDescription) Warnings {
	visited := map[string]bool{core.StartSentinel: true}
	queue := []string{core.StartSentinel}
	reachedEnd := false
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		targets := outgoing[cur]
		sort.Slice(targets, func(i, j int) bool { return targets[i].TargetID < targets[j].TargetID })
		for _, e := range targets {
			if e.TargetID == core.EndSentinel {
				reachedEnd = true
				continue
			}
			if !visited[e.TargetID] {
				visited[e.TargetID] = true
				queue = append(queue, e.TargetID)
			}
		}
	}

	var warnings Warnings
	if !reachedEnd {
		warnings = append(warnings, "__end__ is not reachable from __start__ on any path")
	}
	sorted := make([]core.NodeDescription, len(d.Nodes))
	copy(sorted, d.Nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NodeID < sorted[j].NodeID })
	for _, n := range sorted {
		if !visited[n.NodeID] {
			warnings = append(warnings, fmt.Sprintf("node %q is unreachable from __start__", n.NodeID))
		}
	}
	return warnings
}

// checkCyclePolicy implements §4.1 step 3 with 3-color DFS: a cycle fails
// compilation only when every edge composing it is unconditional (no
// router condition anywhere in the loop).
func checkCyclePolicy(d core.GraphDescription, outgoing map[string][]core.EdgeDescription) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	var path []string
	var pathConditional []bool

	allNodes := make([]string, 0, len(d.Nodes)+2)
	allNodes = append(allNodes, core.StartSentinel)
	for _, n := range d.Nodes {
		allNodes = append(allNodes, n.NodeID)
	}
	sort.Strings(allNodes)

	var dfs func(node string) error
	dfs = func(node string) error {
		color[node] = gray
		path = append(path, node)

		edges := make([]core.EdgeDescription, len(outgoing[node]))
		copy(edges, outgoing[node])
		sort.Slice(edges, func(i, j int) bool { return edges[i].TargetID < edges[j].TargetID })

		for _, e := range edges {
			if e.TargetID == core.EndSentinel {
				continue
			}
			conditional := e.Condition != "" && e.Condition != "default"
			if color[e.TargetID] == gray {
				cycleStart := -1
				for i, n := range path {
					if n == e.TargetID {
						cycleStart = i
						break
					}
				}
				cyclePath := append(append([]string{}, path[cycleStart:]...), e.TargetID)
				anyConditional := conditional
				for i := cycleStart; i < len(pathConditional); i++ {
					if pathConditional[i] {
						anyConditional = true
					}
				}
				if !anyConditional {
					return &CycleError{Path: cyclePath}
				}
				continue
			}
			if color[e.TargetID] == white {
				pathConditional = append(pathConditional, conditional)
				if err := dfs(e.TargetID); err != nil {
					return err
				}
				pathConditional = pathConditional[:len(pathConditional)-1]
			}
		}

		path = path[:len(path)-1]
		color[node] = black
		return nil
	}

	for _, id := range allNodes {
		if color[id] == white {
			if err := dfs(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveJoinWaitFor validates each join's declared wait_for set against
// its actual incoming predecessors (excluding sibling branches that reach
// __end__ directly rather than through the join, which is legal per the
// spec's own resolution of that ambiguity).
func resolveJoinWaitFor(d core.GraphDescription, incoming map[string][]string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, n := range d.Nodes {
		if n.Kind != core.NodeKindJoin {
			continue
		}
		preds := append([]string{}, incoming[n.NodeID]...)
		sort.Strings(preds)

		declared := append([]string{}, n.Join.WaitFor...)
		sort.Strings(declared)

		if !stringSetEqual(preds, declared) {
			return nil, &StructuralError{
				Kind: "join_wait_for_mismatch",
				Msg: fmt.Sprintf("join %q declared wait_for %v does not match incoming predecessors %v",
					n.NodeID, declared, preds),
			}
		}
		out[n.NodeID] = declared
	}
	return out, nil
}

func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// resolveParallelRegions implements §4.1 step 4: for each PARALLEL node,
// walk forward from every branch target until a JOIN node or __end__ is
// hit, and require the branches to agree on a single post-dominator join.
// A branch that reaches __end__ directly contributes no join; that's legal
// (resolveJoinWaitFor already treats it as simply not a predecessor of any
// join), but two branches converging on two different joins is not, since
// nothing in the scheduler can then say the parallel region "completed".
func resolveParallelRegions(d core.GraphDescription, outgoing map[string][]core.EdgeDescription, nodeByID map[string]core.NodeDescription) (map[string]core.ParallelRegion, error) {
	regions := make(map[string]core.ParallelRegion)

	sorted := make([]core.NodeDescription, len(d.Nodes))
	copy(sorted, d.Nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NodeID < sorted[j].NodeID })

	for _, n := range sorted {
		if n.Kind != core.NodeKindParallel {
			continue
		}

		edges := append([]core.EdgeDescription{}, outgoing[n.NodeID]...)
		sort.Slice(edges, func(i, j int) bool { return edges[i].TargetID < edges[j].TargetID })

		branchTargets := make([]string, 0, len(edges))
		joinSet := make(map[string]bool)
		for _, e := range edges {
			branchTargets = append(branchTargets, e.TargetID)
			for j := range joinsReachable(e.TargetID, outgoing, nodeByID) {
				joinSet[j] = true
			}
		}

		if len(joinSet) > 1 {
			joins := make([]string, 0, len(joinSet))
			for j := range joinSet {
				joins = append(joins, j)
			}
			sort.Strings(joins)
			return nil, &StructuralError{
				Kind: "parallel_join_ambiguous",
				Msg:  fmt.Sprintf("parallel %q branches converge on multiple joins %v, expected a single post-dominator join", n.NodeID, joins),
			}
		}

		joinID := ""
		for j := range joinSet {
			joinID = j
		}
		regions[n.NodeID] = core.ParallelRegion{ParallelNodeID: n.NodeID, BranchTargets: branchTargets, JoinNodeID: joinID}
	}
	return regions, nil
}

// joinsReachable returns the set of JOIN node ids reached by a forward walk
// from start, not traversing past a JOIN (it's a convergence point, not a
// pass-through) or past __end__.
func joinsReachable(start string, outgoing map[string][]core.EdgeDescription, nodeByID map[string]core.NodeDescription) map[string]bool {
	found := make(map[string]bool)
	visited := make(map[string]bool)
	var dfs func(id string)
	dfs = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		if id == core.EndSentinel {
			return
		}
		if n, ok := nodeByID[id]; ok && n.Kind == core.NodeKindJoin {
			found[id] = true
			return
		}
		for _, e := range outgoing[id] {
			dfs(e.TargetID)
		}
	}
	dfs(start)
	return found
}

// nodesInBranch returns every node id reachable by a forward walk from
// start, stopping at (not through) a JOIN node or __end__: the set of
// nodes that belong to one parallel branch before it rejoins.
func nodesInBranch(start string, outgoing map[string][]core.EdgeDescription, nodeByID map[string]core.NodeDescription) map[string]bool {
	visited := make(map[string]bool)
	var dfs func(id string)
	dfs = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		if id == core.EndSentinel {
			return
		}
		if n, ok := nodeByID[id]; ok && n.Kind == core.NodeKindJoin {
			return
		}
		for _, e := range outgoing[id] {
			dfs(e.TargetID)
		}
	}
	dfs(start)
	return visited
}

// checkParallelRouterIsolation implements the ambiguity resolution for a
// ROUTER nested inside a parallel branch that reads a state property only
// a sibling branch writes: since siblings run concurrently and haven't
// passed through the join, that read would observe whatever the scheduler
// happened to have merged so far, not a value the graph's author can
// reason about. Rejecting it at compile time turns a race into a
// diagnostic.
func checkParallelRouterIsolation(
	d core.GraphDescription,
	regions map[string]core.ParallelRegion,
	outgoing map[string][]core.EdgeDescription,
	compiledOutgoing map[string][]core.CompiledEdge,
	nodeByID map[string]core.NodeDescription,
) error {
	writerOf := make(map[string][]string)
	for _, n := range d.Nodes {
		var key string
		switch n.Kind {
		case core.NodeKindAgent:
			key = n.Agent.OutputKey
			if key == "" {
				key = n.NodeID
			}
		case core.NodeKindSubgraph:
			key = n.Subgraph.OutputKey
			if key == "" {
				key = n.NodeID
			}
		case core.NodeKindJoin:
			key = n.Join.OutputKey
		default:
			continue
		}
		if key == "" {
			continue
		}
		writerOf[key] = append(writerOf[key], n.NodeID)
	}

	regionIDs := make([]string, 0, len(regions))
	for id := range regions {
		regionIDs = append(regionIDs, id)
	}
	sort.Strings(regionIDs)

	for _, parallelID := range regionIDs {
		region := regions[parallelID]
		branches := make([]map[string]bool, len(region.BranchTargets))
		for i, t := range region.BranchTargets {
			branches[i] = nodesInBranch(t, outgoing, nodeByID)
		}

		for i, branch := range branches {
			members := make([]string, 0, len(branch))
			for id := range branch {
				members = append(members, id)
			}
			sort.Strings(members)

			for _, nodeID := range members {
				if nodeByID[nodeID].Kind != core.NodeKindRouter {
					continue
				}
				for _, edge := range compiledOutgoing[nodeID] {
					if edge.Predicate == nil {
						continue
					}
					for _, key := range edge.Predicate.ReferencedStateKeys() {
						writers, ok := writerOf[key]
						if !ok {
							continue
						}
						if allWritersAreSiblingsOnly(writers, branches, i) {
							return &StructuralError{
								Kind: "parallel_router_sibling_dependency",
								Msg: fmt.Sprintf("router %q in parallel %q reads state key %q, written only by a sibling branch not yet joined",
									nodeID, parallelID, key),
							}
						}
					}
				}
			}
		}
	}
	return nil
}

// allWritersAreSiblingsOnly reports whether every writer of a state key
// lies in a different branch than selfBranch, and at least one such
// sibling writer exists. A key also written in selfBranch, or written
// entirely outside the parallel region, is not a sibling-only dependency.
func allWritersAreSiblingsOnly(writers []string, branches []map[string]bool, selfBranch int) bool {
	sawSiblingWriter := false
	for _, w := range writers {
		if branches[selfBranch][w] {
			return false
		}
		inSibling := false
		for j, b := range branches {
			if j == selfBranch {
				continue
			}
			if b[w] {
				inSibling = true
				break
			}
		}
		if !inSibling {
			return false
		}
		sawSiblingWriter = true
	}
	return sawSiblingWriter
}

// compileRoutes implements §4.1 step 5: parses every router's conditions
// in declared order, synthesizing a trailing default route if the author
// didn't supply one, and compiles every other node's (unconditional)
// outgoing edges unchanged.
func compileRoutes(d core.GraphDescription, outgoing map[string][]core.EdgeDescription) (map[string][]core.CompiledEdge, error) {
	nodeByID := make(map[string]core.NodeDescription, len(d.Nodes))
	for _, n := range d.Nodes {
		nodeByID[n.NodeID] = n
	}

	out := make(map[string][]core.CompiledEdge, len(outgoing))
	for source, edges := range outgoing {
		node, isRouter := nodeByID[source]
		if !isRouter || node.Kind != core.NodeKindRouter {
			for _, e := range edges {
				out[source] = append(out[source], core.CompiledEdge{TargetID: e.TargetID})
			}
			continue
		}

		compiled := make([]core.CompiledEdge, 0, len(edges)+1)
		haveDefault := false
		for _, e := range edges {
			pred, err := predicate.Parse(e.Condition)
			if err != nil {
				return nil, &StructuralError{Kind: "bad_condition", Msg: fmt.Sprintf("router %q edge to %q: %v", source, e.TargetID, err)}
			}
			if pred.IsDefault() {
				haveDefault = true
			}
			compiled = append(compiled, core.CompiledEdge{TargetID: e.TargetID, Predicate: pred})
		}
		if !haveDefault {
			target := node.Router.DefaultTarget
			if target == "" {
				target = core.EndSentinel
			}
			compiled = append(compiled, core.CompiledEdge{TargetID: target, Predicate: predicate.MustParse("default")})
		}
		out[source] = compiled
	}
	return out, nil
}

// resolveDefinitions resolves every AGENT node's agent id and every agent's
// tool ids through resolver, deduplicating tools across the whole graph,
// and recursively compiles SUBGRAPH node targets. depth and chain (the
// workflow ids already on this compilation path) enforce SPEC_FULL §4.1's
// compile-time recursion-depth check: a mutually recursive workflow
// registry (A -> B -> A) must fail compilation, not overflow the stack.
func resolveDefinitions(d core.GraphDescription, resolver core.DefinitionResolver, maxDepth, depth int, chain []string) (
	map[string]core.AgentDefinition, map[string]core.ToolDefinition, map[string]*core.CompiledGraph, error,
) {
	agents := make(map[string]core.AgentDefinition)
	tools := make(map[string]core.ToolDefinition)
	subgraphs := make(map[string]*core.CompiledGraph)

	sorted := make([]core.NodeDescription, len(d.Nodes))
	copy(sorted, d.Nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NodeID < sorted[j].NodeID })

	for _, n := range sorted {
		switch n.Kind {
		case core.NodeKindAgent:
			def, err := resolver.ResolveAgent(n.Agent.AgentID)
			if err != nil {
				return nil, nil, nil, &StructuralError{Kind: "unresolved_agent", Msg: fmt.Sprintf("agent %q on node %q: %v", n.Agent.AgentID, n.NodeID, err)}
			}
			agents[n.NodeID] = def
			for _, tid := range def.ToolIDs {
				if _, ok := tools[tid]; ok {
					continue
				}
				td, err := resolver.ResolveTool(tid)
				if err != nil {
					return nil, nil, nil, &StructuralError{Kind: "unresolved_tool", Msg: fmt.Sprintf("tool %q referenced by agent %q: %v", tid, def.ID, err)}
				}
				tools[tid] = td
			}
		case core.NodeKindSubgraph:
			wf, ok := subgraphResolver(resolver)
			if !ok {
				return nil, nil, nil, &StructuralError{Kind: "no_workflow_resolver", Msg: fmt.Sprintf("subgraph node %q requires a WorkflowResolver", n.NodeID)}
			}
			childDesc, err := wf.ResolveWorkflow(n.Subgraph.WorkflowID)
			if err != nil {
				return nil, nil, nil, &StructuralError{Kind: "unresolved_subgraph", Msg: fmt.Sprintf("subgraph %q on node %q: %v", n.Subgraph.WorkflowID, n.NodeID, err)}
			}

			wfID := n.Subgraph.WorkflowID
			for _, seen := range chain {
				if seen == wfID {
					return nil, nil, nil, &StructuralError{
						Kind: "subgraph_cycle",
						Msg:  fmt.Sprintf("subgraph %q on node %q recurses back into its own ancestor chain %v", wfID, n.NodeID, append(chain, wfID)),
					}
				}
			}
			if depth+1 > maxDepth {
				return nil, nil, nil, &StructuralError{
					Kind: "subgraph_depth_exceeded",
					Msg:  fmt.Sprintf("subgraph %q on node %q exceeds max recursion depth %d", wfID, n.NodeID, maxDepth),
				}
			}
			childChain := append(append([]string{}, chain...), wfID)

			child, _, err := compile(childDesc, resolver, maxDepth, depth+1, childChain)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("compiling subgraph %q: %w", wfID, err)
			}
			child.WorkflowID = wfID
			subgraphs[n.NodeID] = child
		}
	}
	return agents, tools, subgraphs, nil
}

// WorkflowResolver extends DefinitionResolver for resolvers that can also
// look up a nested workflow's GraphDescription by id, needed only when the
// graph contains SUBGRAPH nodes.
type WorkflowResolver interface {
	ResolveWorkflow(id string) (core.GraphDescription, error)
}

func subgraphResolver(r core.DefinitionResolver) (WorkflowResolver, bool) {
	wf, ok := r.(WorkflowResolver)
	return wf, ok
}
