// Package checkpoint implements §4.6: durable per-thread state snapshots
// that let an execution pause and resume across process boundaries, plus
// the durable step-record history consulted for audit/replay. The
// in-memory implementation's per-key-mutex-map idiom is grounded on
// session/in_memory.go (teacher); the durable implementation's
// transaction/prefix-scan/options-tuning idiom is grounded on
// eleven-am-graft's raft/storage.go and adapters/queue/cleaner.go.
package checkpoint

import (
	"context"

	"github.com/flowstack/orchestrator/core"
)

// Checkpointer is the engine's sole durability boundary. Every method is
// safe for concurrent use across threads; per-thread writes are serialized
// internally (§5: "saves for a given thread_id are serialized, saves for
// different threads are concurrent").
type Checkpointer interface {
	// Save atomically persists the state after one completed super-step.
	// StepIndex must be strictly increasing per thread id (invariant
	// enforced by implementations, not callers).
	Save(ctx context.Context, cp core.Checkpoint) error

	// Load returns the newest checkpoint for threadID by StepIndex, or
	// (Checkpoint{}, false, nil) if none exists yet.
	Load(ctx context.Context, threadID string) (core.Checkpoint, bool, error)

	// AppendStep durably records one node-completion step, independent of
	// checkpoint retention (steps are never overwritten).
	AppendStep(ctx context.Context, step core.Step) error

	// Steps returns every recorded step for executionID in step_index
	// order, for audit/replay or SSE history backfill.
	Steps(ctx context.Context, executionID string) ([]core.Step, error)

	// DeleteThread removes every checkpoint and step for threadID,
	// implementing the "deleted when the parent execution is deleted"
	// lifetime rule. executionIDs is the set of execution ids that ran on
	// this thread, since steps are indexed by execution id, not thread id.
	DeleteThread(ctx context.Context, threadID string, executionIDs []string) error
}
