// Package nodeexec implements the §4.2 node executors: a closed set of five
// functions dispatched on core.NodeKind rather than an open inheritance
// hierarchy, per Design Note "Dynamic-dispatch node kinds". AGENT is
// grounded on flow/base.go's runOnce combined with the toolloop package;
// ROUTER follows original_source's router_node.py route-ordering/default
// shape; PARALLEL/JOIN follow parallel_node.py's dispatch/aggregate split
// and the teacher's agent/parallel.go goroutine-per-branch fan-out idiom;
// SUBGRAPH follows original_source's compiler.py _create_subgraph_node.
package nodeexec

import (
	"github.com/flowstack/orchestrator/core"
)

// Outcome is the sum type a node executor returns, corresponding to
// §4.2's NodeOutcome: exactly one of the three constructors below produced
// it, discriminated by Kind.
type Outcome struct {
	Kind OutcomeKind

	// StateUpdate fields.
	Delta         core.Delta
	NextFrontier  []string

	// Suspend fields.
	SuspendReason string

	// Fail fields.
	Err       *core.ErrorDetail
	Retryable bool
}

// OutcomeKind discriminates Outcome's three variants.
type OutcomeKind int

const (
	OutcomeStateUpdate OutcomeKind = iota
	OutcomeSuspend
	OutcomeFail
)

// StateUpdate constructs the normal-completion outcome: delta merges into
// state, targets join the next frontier.
func StateUpdate(delta core.Delta, next []string) Outcome {
	return Outcome{Kind: OutcomeStateUpdate, Delta: delta, NextFrontier: next}
}

// Suspend constructs a pause outcome: the scheduler checkpoints and may
// return AWAITING_INPUT if no further work is ready.
func Suspend(reason string) Outcome {
	return Outcome{Kind: OutcomeSuspend, SuspendReason: reason}
}

// Fail constructs a failure outcome carrying a stable error kind.
func Fail(err *core.ErrorDetail) Outcome {
	return Outcome{Kind: OutcomeFail, Err: err, Retryable: err != nil && err.Retryable}
}
