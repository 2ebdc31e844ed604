package testutil

import "github.com/flowstack/orchestrator/core"

// GraphBuilder fluently assembles a core.GraphDescription, generalized from
// event_builder.go's chainable-method idiom so test fixtures read as a
// small DSL instead of a literal struct with repeated field names.
type GraphBuilder struct {
	desc core.GraphDescription
}

// NewGraphBuilder returns an empty builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{desc: core.GraphDescription{StateSchema: core.StateSchema{}}}
}

// EntryPoint sets the graph's entry node id.
func (b *GraphBuilder) EntryPoint(nodeID string) *GraphBuilder {
	b.desc.EntryPoint = nodeID
	return b
}

// Agent appends an AGENT node.
func (b *GraphBuilder) Agent(nodeID, agentID string, inputMapping map[string]string, outputKey string) *GraphBuilder {
	b.desc.Nodes = append(b.desc.Nodes, core.NodeDescription{
		NodeID: nodeID,
		Kind:   core.NodeKindAgent,
		Agent: &core.AgentNodeConfig{
			AgentID:      agentID,
			InputMapping: inputMapping,
			OutputKey:    outputKey,
		},
	})
	return b
}

// Router appends a ROUTER node.
func (b *GraphBuilder) Router(nodeID, defaultTarget string) *GraphBuilder {
	b.desc.Nodes = append(b.desc.Nodes, core.NodeDescription{
		NodeID: nodeID,
		Kind:   core.NodeKindRouter,
		Router: &core.RouterNodeConfig{DefaultTarget: defaultTarget},
	})
	return b
}

// Parallel appends a PARALLEL node; its fan-out is entirely a function of
// its outgoing edges, so this takes no extra config.
func (b *GraphBuilder) Parallel(nodeID string) *GraphBuilder {
	b.desc.Nodes = append(b.desc.Nodes, core.NodeDescription{NodeID: nodeID, Kind: core.NodeKindParallel})
	return b
}

// Join appends a JOIN node.
func (b *GraphBuilder) Join(nodeID string, waitFor []string, strategy core.MergeRule, policy core.FailurePolicy, outputKey string) *GraphBuilder {
	b.desc.Nodes = append(b.desc.Nodes, core.NodeDescription{
		NodeID: nodeID,
		Kind:   core.NodeKindJoin,
		Join: &core.JoinNodeConfig{
			WaitFor:             waitFor,
			AggregationStrategy: strategy,
			FailurePolicy:       policy,
			OutputKey:           outputKey,
		},
	})
	return b
}

// Subgraph appends a SUBGRAPH node.
func (b *GraphBuilder) Subgraph(nodeID, workflowID string, inputMapping map[string]string, outputKey string) *GraphBuilder {
	b.desc.Nodes = append(b.desc.Nodes, core.NodeDescription{
		NodeID: nodeID,
		Kind:   core.NodeKindSubgraph,
		Subgraph: &core.SubgraphNodeConfig{
			WorkflowID:   workflowID,
			InputMapping: inputMapping,
			OutputKey:    outputKey,
		},
	})
	return b
}

// Edge appends an unconditional edge.
func (b *GraphBuilder) Edge(source, target string) *GraphBuilder {
	b.desc.Edges = append(b.desc.Edges, core.EdgeDescription{SourceID: source, TargetID: target})
	return b
}

// ConditionalEdge appends a predicate-guarded edge, typically out of a
// ROUTER node.
func (b *GraphBuilder) ConditionalEdge(source, target, condition string) *GraphBuilder {
	b.desc.Edges = append(b.desc.Edges, core.EdgeDescription{SourceID: source, TargetID: target, Condition: condition})
	return b
}

// StateProperty declares a state_schema property's merge rule.
func (b *GraphBuilder) StateProperty(name string, rule core.MergeRule) *GraphBuilder {
	b.desc.StateSchema[name] = core.SchemaProperty{MergeRule: rule}
	return b
}

// Build returns the assembled GraphDescription.
func (b *GraphBuilder) Build() core.GraphDescription {
	return b.desc
}
