package core

// ModelConfig names the provider and tunables an AGENT node's tool loop uses
// when calling a model.
type ModelConfig struct {
	Provider    string
	ModelName   string
	MaxTokens   int
	Temperature float64
}

// AgentDefinition is the resolved, identifier-addressable shape of an agent:
// its instructions, bound model, the tools it may call, and an optional
// structured-output schema.
type AgentDefinition struct {
	ID           string
	Name         string
	Instructions string
	Model        ModelConfig
	ToolIDs      []string
	OutputSchema map[string]any
}

// ToolDefinition is the resolved, identifier-addressable shape of a tool
// binding. SideEffectFree mirrors tool.Tool.SideEffectFree and gates
// concurrent execution within one tool-loop iteration.
type ToolDefinition struct {
	ID             string
	Name           string
	Description    string
	Parameters     map[string]any
	SideEffectFree bool
}

// WorkflowDefinition names and versions a compiled workflow's source graph
// description for registry lookup by identifier.
type WorkflowDefinition struct {
	ID    string
	Name  string
	Graph GraphDescription
}

// DefinitionResolver is the compiler's sole external dependency for turning
// agent and tool identifiers into bound definitions.
type DefinitionResolver interface {
	ResolveAgent(id string) (AgentDefinition, error)
	ResolveTool(id string) (ToolDefinition, error)
}
