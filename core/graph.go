package core

// NodeKind is the closed set of executable node kinds. Dispatch on Kind is a
// switch, never an interface hierarchy: the five kinds are a fixed contract.
type NodeKind string

const (
	NodeKindAgent    NodeKind = "AGENT"
	NodeKindRouter   NodeKind = "ROUTER"
	NodeKindParallel NodeKind = "PARALLEL"
	NodeKindJoin     NodeKind = "JOIN"
	NodeKindSubgraph NodeKind = "SUBGRAPH"
)

// StartSentinel and EndSentinel are the reserved node ids marking a graph's
// entry and exit. They never appear in Nodes; only as edge endpoints.
const (
	StartSentinel = "__start__"
	EndSentinel   = "__end__"
)

// FailurePolicy governs how a JOIN node reacts to failed predecessors.
type FailurePolicy string

const (
	FailurePolicyAny         FailurePolicy = "any"
	FailurePolicyMajority    FailurePolicy = "majority"
	FailurePolicyAllRequired FailurePolicy = "all_required"
)

// AgentNodeConfig configures an AGENT node.
type AgentNodeConfig struct {
	AgentID      string
	InputMapping map[string]string // argument name -> JSONPath-like selector
	OutputKey    string
}

// RouterNodeConfig configures a ROUTER node. Routes are evaluated in
// declared order; if no default route is declared, one is synthesized at
// compile time to DefaultTarget (or __end__ when DefaultTarget is empty).
type RouterNodeConfig struct {
	DefaultTarget string
}

// JoinNodeConfig configures a JOIN node.
type JoinNodeConfig struct {
	WaitFor             []string
	AggregationStrategy MergeRule
	FailurePolicy       FailurePolicy
	OutputKey           string
}

// SubgraphNodeConfig configures a SUBGRAPH node.
type SubgraphNodeConfig struct {
	WorkflowID   string
	InputMapping map[string]string
	OutputKey    string
}

// NodeDescription is one node in a GraphDescription, as supplied by the
// caller before compilation.
type NodeDescription struct {
	NodeID string
	Kind   NodeKind

	Agent    *AgentNodeConfig
	Router   *RouterNodeConfig
	Join     *JoinNodeConfig
	Subgraph *SubgraphNodeConfig
	// Parallel nodes carry no extra config: their behavior is entirely
	// determined by their outgoing edges.
}

// EdgeDescription is one edge in a GraphDescription. Condition is a raw
// predicate expression string; empty means unconditional. SourceID/TargetID
// may be StartSentinel/EndSentinel.
type EdgeDescription struct {
	SourceID  string
	TargetID  string
	Condition string
}

// GraphDescription is the compiler's input value object: the declarative
// shape of a workflow before validation and resolution.
type GraphDescription struct {
	Nodes       []NodeDescription
	Edges       []EdgeDescription
	EntryPoint  string
	StateSchema StateSchema
}

// CompiledEdge pairs a target node id with its compiled predicate (nil for
// an unconditional edge).
type CompiledEdge struct {
	TargetID  string
	Predicate Predicate
}

// Predicate is a compiled, side-effect-free router condition. Implementations
// live in the predicate package; core only depends on the interface to avoid
// a package cycle.
type Predicate interface {
	Evaluate(state State) (bool, error)
	// IsDefault reports whether this predicate is the synthesized
	// always-match fallback route.
	IsDefault() bool
	// ReferencedStateKeys returns the top-level state properties this
	// condition reads, letting the compiler check a router inside a
	// parallel region against its sibling branches' writes.
	ReferencedStateKeys() []string
}

// ParallelRegion records one PARALLEL node's branch targets and the single
// join node, if any, that a post-dominator analysis found all of them
// converge on. JoinNodeID is empty when every branch terminates at
// __end__ directly rather than through a join (legal; see
// resolveJoinWaitFor's ambiguity note).
type ParallelRegion struct {
	ParallelNodeID string
	BranchTargets  []string
	JoinNodeID     string
}

// CompiledGraph is the immutable, validated output of compilation. It is
// shared across every execution of one workflow version.
type CompiledGraph struct {
	WorkflowID string
	EntryPoint string
	Nodes      map[string]NodeDescription
	Outgoing   map[string][]CompiledEdge
	Incoming   map[string][]string

	// JoinWaitFor is the resolved, validated wait-for predecessor set for
	// every JOIN node, keyed by node id.
	JoinWaitFor map[string][]string

	// ParallelRegions annotates every PARALLEL node with its branch targets
	// and resolved post-dominator join (§4.1 step 4), keyed by the
	// PARALLEL node's id.
	ParallelRegions map[string]ParallelRegion

	StateSchema StateSchema

	// ResolvedAgents maps AGENT node id to its resolved definition.
	ResolvedAgents map[string]AgentDefinition
	// ResolvedTools maps tool id to its resolved definition, deduplicated
	// across every AGENT node's ToolIDs.
	ResolvedTools map[string]ToolDefinition
	// Subgraphs maps SUBGRAPH node id to its compiled child graph.
	Subgraphs map[string]*CompiledGraph
}
