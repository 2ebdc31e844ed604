package nodeexec

import (
	"context"
	"time"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/logging"
	"github.com/flowstack/orchestrator/model"
	"github.com/flowstack/orchestrator/tool"
	"github.com/flowstack/orchestrator/toolloop"
)

// ModelProvider resolves a ModelConfig to a live model.Model, letting the
// scheduler own provider wiring/pooling (§5: "LLM client connections are
// pooled per provider") without nodeexec depending on concrete provider
// packages.
type ModelProvider func(cfg core.ModelConfig) (model.Model, error)

// SubgraphRunner executes a nested compiled graph to completion and
// returns its final state. Injected by the scheduler so nodeexec never
// imports the scheduler package (which would cycle back to nodeexec).
type SubgraphRunner func(ctx context.Context, child *core.CompiledGraph, threadID string, initial core.State) (core.State, *core.ErrorDetail)

// Context is passed to every executor: the per-node dependencies and
// timeouts, scoped to a single super-step's execution of one node.
type Context struct {
	Ctx context.Context

	ExecutionID string
	NodeID      string
	Graph       *core.CompiledGraph

	Tools    *tool.Registry
	Models   ModelProvider
	Logger   logging.Logger
	RunChild SubgraphRunner

	// Events, when set, receives tool_call/tool_result notifications from
	// an AGENT node's tool loop (the scheduler wires its eventbus.Bus in
	// via a thin adapter so nodeexec never imports eventbus directly).
	Events toolloop.EventSink

	// ToolCallDeadline bounds each individual tool invocation inside an
	// AGENT node's tool loop (§5's innermost timeout layer).
	ToolCallDeadline time.Duration
	// MaxToolLoopIterations overrides toolloop.DefaultMaxIterations when
	// nonzero.
	MaxToolLoopIterations int

	// JoinLedger exposes the scheduler's join-ledger entry for this node,
	// populated only when NodeID names a JOIN node whose predecessors have
	// all settled. nodeexec never mutates the ledger; it only reads the
	// entry the scheduler already decided is ready.
	JoinLedger *core.JoinRecord

	// Reducers resolves a JOIN's AggregationStrategy to a user-named
	// reducer when it isn't one of the built-in merge rules, per §4.2's
	// "or a user-named reducer resolved at compile time".
	Reducers map[string]Reducer
}

// Reducer synthesizes a JOIN node's final delta from the completed
// predecessor deltas (failed predecessors already excluded by the caller).
type Reducer func(deltas []core.Delta) (core.Delta, error)

