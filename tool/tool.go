// Package tool implements the function-calling subsystem: structured
// capabilities an AGENT node's tool loop can invoke, with schema-validated
// arguments and a process-wide registry resolved once at startup.
package tool

import (
	"fmt"
	"sync"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/internal/util"
)

// Tool is the interface every tool implementation satisfies. Tools are
// stateless after construction and safe for concurrent Call invocations.
type Tool interface {
	// Name is the unique identifier used in model tool-call requests and
	// registry lookups (snake_case recommended).
	Name() string

	// Description is shown to the model to help it decide when to call
	// this tool.
	Description() string

	// Parameters is the JSON schema used both for model function-calling
	// declarations and for argument validation before Call runs.
	Parameters() map[string]interface{}

	// SideEffectFree reports whether this tool may be run concurrently with
	// other side-effect-free tools requested in the same model turn.
	SideEffectFree() bool

	// Call executes the tool against already-schema-validated arguments.
	Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error)
}

// ValidationError represents a parameter validation failure.
type ValidationError = util.ValidationError

// ToolError represents a failure during tool execution, carrying a stable
// code so callers can branch without string matching.
type ToolError struct {
	Tool    string      `json:"tool"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Registry is a process-wide tool lookup populated once at startup. It is
// intentionally append-only at runtime: AGENT nodes resolve their ToolIDs
// against a shared Registry rather than each carrying its own tool set, so
// workflow definitions reference tools by stable name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	sealed bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under its Name. Register panics on a duplicate name
// or after Seal has been called, since both indicate a startup-time wiring
// bug rather than a recoverable runtime condition.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic("tool: Register called on a sealed Registry")
	}
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tool: duplicate registration for %q", name))
	}
	r.tools[name] = t
}

// Seal prevents further registration. Call once after startup wiring
// completes, before the registry is shared across goroutines.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Lookup returns the tool registered under name, or false if absent.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Resolve looks up every id in ids, returning an error naming the first
// missing tool id.
func (r *Registry) Resolve(ids []string) ([]Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(ids))
	for _, id := range ids {
		t, ok := r.tools[id]
		if !ok {
			return nil, fmt.Errorf("tool: unknown tool id %q", id)
		}
		tools = append(tools, t)
	}
	return tools, nil
}
