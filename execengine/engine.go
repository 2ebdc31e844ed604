// Package execengine is the top-level façade: register compiled workflows
// by id, then Execute them by id and thread, resuming a paused thread
// transparently. Grounded on engine/engine.go's functional-options
// constructor and name-keyed registry, generalized from a single agent
// registry to a compiled-workflow registry sitting on top of the
// scheduler's super-step runtime.
package execengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowstack/orchestrator/checkpoint"
	"github.com/flowstack/orchestrator/compiler"
	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/eventbus"
	"github.com/flowstack/orchestrator/logging"
	"github.com/flowstack/orchestrator/nodeexec"
	"github.com/flowstack/orchestrator/scheduler"
	"github.com/flowstack/orchestrator/tool"
)

// Options configures a new Engine. Only Checkpointer is commonly worth
// overriding for production use; the rest have in-memory/unbounded
// defaults suited to development and tests, matching the teacher's
// "every service has a sane default" constructor ergonomics.
type Options struct {
	Checkpointer          checkpoint.Checkpointer
	Tools                 *tool.Registry
	Models                nodeexec.ModelProvider
	Logger                logging.Logger
	Reducers              map[string]nodeexec.Reducer
	NodeTimeout           time.Duration
	ExecutionTimeout      time.Duration
	ToolCallDeadline      time.Duration
	MaxToolLoopIterations int
	MaxSubgraphDepth      int
	EventBufferSize       int
}

// Engine is the application-facing entry point: a registry of compiled
// workflows plus the scheduler that runs them.
type Engine struct {
	mu        sync.RWMutex
	workflows map[string]*core.CompiledGraph

	sched            *scheduler.Scheduler
	maxSubgraphDepth int
}

// New constructs an Engine. opts.Checkpointer defaults to an in-memory
// Checkpointer if nil, matching the teacher's "in-memory default for every
// service" ergonomics for development and tests.
func New(opts Options) *Engine {
	if opts.Checkpointer == nil {
		opts.Checkpointer = checkpoint.NewInMemory()
	}
	sched := scheduler.New(scheduler.Options{
		Checkpointer:          opts.Checkpointer,
		Tools:                 opts.Tools,
		Models:                opts.Models,
		Logger:                opts.Logger,
		Reducers:              opts.Reducers,
		NodeTimeout:           opts.NodeTimeout,
		ExecutionTimeout:      opts.ExecutionTimeout,
		ToolCallDeadline:      opts.ToolCallDeadline,
		MaxToolLoopIterations: opts.MaxToolLoopIterations,
		MaxSubgraphDepth:      opts.MaxSubgraphDepth,
		EventBufferSize:       opts.EventBufferSize,
	})
	maxDepth := opts.MaxSubgraphDepth
	if maxDepth <= 0 {
		maxDepth = compiler.DefaultMaxSubgraphDepth
	}
	return &Engine{workflows: make(map[string]*core.CompiledGraph), sched: sched, maxSubgraphDepth: maxDepth}
}

// Register makes a compiled workflow available for Execute by its
// WorkflowID, replacing any prior registration under the same id.
func (e *Engine) Register(graph *core.CompiledGraph) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[graph.WorkflowID] = graph
}

// Compile compiles description against resolver, stamps the result with
// workflowID, registers it, and returns the compiler's warnings. A
// compilation error leaves the registry unchanged. SUBGRAPH nesting is
// bounded by the same MaxSubgraphDepth the scheduler enforces at runtime,
// so a depth violation is caught here rather than mid-execution.
func (e *Engine) Compile(workflowID string, description core.GraphDescription, resolver core.DefinitionResolver) (compiler.Warnings, error) {
	graph, warnings, err := compiler.CompileWithMaxDepth(description, resolver, e.maxSubgraphDepth)
	if err != nil {
		return nil, err
	}
	graph.WorkflowID = workflowID
	e.Register(graph)
	return warnings, nil
}

// Lookup returns the compiled workflow registered under id, if any.
func (e *Engine) Lookup(id string) (*core.CompiledGraph, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.workflows[id]
	return g, ok
}

// Execute starts (or resumes, if threadID names a paused thread) a run of
// the workflow registered under workflowID, blocking until the run reaches
// a terminal or awaiting-input state and returning the resulting Execution
// record. Use Subscribe concurrently (from another goroutine, before or
// immediately after calling Execute) to observe its live event stream.
func (e *Engine) Execute(ctx context.Context, workflowID, threadID string, input core.State) (*core.Execution, error) {
	graph, ok := e.Lookup(workflowID)
	if !ok {
		return nil, fmt.Errorf("execengine: unknown workflow %q", workflowID)
	}
	return e.sched.Execute(ctx, scheduler.ExecuteRequest{Graph: graph, ThreadID: threadID, Input: input})
}

// Subscribe attaches a live SSE-style listener to a running execution. The
// boolean return reports whether executionID is currently tracked.
func (e *Engine) Subscribe(executionID, subscriberID string) (<-chan eventbus.Event, func(), bool) {
	return e.sched.Subscribe(executionID, subscriberID)
}

// Cancel requests cancellation of a running execution.
func (e *Engine) Cancel(executionID string) bool {
	return e.sched.Cancel(executionID)
}
