package testutil

import "github.com/flowstack/orchestrator/core"

// StubResolver is a core.DefinitionResolver backed by plain maps, letting
// compiler/scheduler tests register exactly the agent/tool definitions a
// fixture graph needs without standing up a real definitions store.
type StubResolver struct {
	agents    map[string]core.AgentDefinition
	tools     map[string]core.ToolDefinition
	workflows map[string]core.GraphDescription
}

// NewStubResolver returns an empty StubResolver.
func NewStubResolver() *StubResolver {
	return &StubResolver{
		agents:    make(map[string]core.AgentDefinition),
		tools:     make(map[string]core.ToolDefinition),
		workflows: make(map[string]core.GraphDescription),
	}
}

// WithWorkflow registers a nested graph description under id, satisfying
// compiler.WorkflowResolver so SUBGRAPH nodes can resolve it.
func (r *StubResolver) WithWorkflow(id string, desc core.GraphDescription) *StubResolver {
	r.workflows[id] = desc
	return r
}

// ResolveWorkflow implements compiler.WorkflowResolver.
func (r *StubResolver) ResolveWorkflow(id string) (core.GraphDescription, error) {
	desc, ok := r.workflows[id]
	if !ok {
		return core.GraphDescription{}, core.NewError(core.ErrorKindCompilation, "testutil: unknown workflow id "+id, nil)
	}
	return desc, nil
}

// WithAgent registers def under def.ID and returns the receiver for chaining.
func (r *StubResolver) WithAgent(def core.AgentDefinition) *StubResolver {
	r.agents[def.ID] = def
	return r
}

// WithTool registers def under def.ID and returns the receiver for chaining.
func (r *StubResolver) WithTool(def core.ToolDefinition) *StubResolver {
	r.tools[def.ID] = def
	return r
}

// ResolveAgent implements core.DefinitionResolver.
func (r *StubResolver) ResolveAgent(id string) (core.AgentDefinition, error) {
	def, ok := r.agents[id]
	if !ok {
		return core.AgentDefinition{}, core.NewError(core.ErrorKindCompilation, "testutil: unknown agent id "+id, nil)
	}
	return def, nil
}

// ResolveTool implements core.DefinitionResolver.
func (r *StubResolver) ResolveTool(id string) (core.ToolDefinition, error) {
	def, ok := r.tools[id]
	if !ok {
		return core.ToolDefinition{}, core.NewError(core.ErrorKindCompilation, "testutil: unknown tool id "+id, nil)
	}
	return def, nil
}
