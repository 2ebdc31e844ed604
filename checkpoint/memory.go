package checkpoint

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/flowstack/orchestrator/core"
)

// InMemory is a volatile Checkpointer backed by process-local maps, safe
// for concurrent access via a per-thread mutex map (grounded on
// session/in_memory.go's per-session-map-plus-RWMutex idiom, split one
// level further into a lock per thread so saves for one thread are
// serialized; every call still takes the shared map lock briefly). Suited for tests and single-process demo deployments; state
// is lost on process restart.
type InMemory struct {
	mu    sync.RWMutex
	locks map[string]*sync.Mutex

	checkpoints map[string][]core.Checkpoint // threadID -> history, newest last
	steps       map[string][]core.Step       // executionID -> steps, index order
}

// NewInMemory constructs an empty in-memory Checkpointer.
func NewInMemory() *InMemory {
	return &InMemory{
		locks:       make(map[string]*sync.Mutex),
		checkpoints: make(map[string][]core.Checkpoint),
		steps:       make(map[string][]core.Step),
	}
}

func (m *InMemory) threadLock(threadID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[threadID] = l
	}
	return l
}

// Save appends cp to threadID's history under that thread's lock, enforcing
// strictly increasing StepIndex.
func (m *InMemory) Save(_ context.Context, cp core.Checkpoint) error {
	lock := m.threadLock(cp.ThreadID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	hist := m.checkpoints[cp.ThreadID]
	if len(hist) > 0 && cp.StepIndex <= hist[len(hist)-1].StepIndex {
		return fmt.Errorf("checkpoint: non-increasing step_index %d for thread %q (last was %d)", cp.StepIndex, cp.ThreadID, hist[len(hist)-1].StepIndex)
	}
	m.checkpoints[cp.ThreadID] = append(hist, cloneCheckpoint(cp))
	return nil
}

// Load returns the newest checkpoint for threadID.
func (m *InMemory) Load(_ context.Context, threadID string) (core.Checkpoint, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hist := m.checkpoints[threadID]
	if len(hist) == 0 {
		return core.Checkpoint{}, false, nil
	}
	return cloneCheckpoint(hist[len(hist)-1]), true, nil
}

// AppendStep records one step, sorted into place by StepIndex (steps are
// expected to append in order, but sorting keeps Steps() correct even
// under out-of-order calls from concurrent branches within a super-step).
func (m *InMemory) AppendStep(_ context.Context, step core.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	steps := append(m.steps[step.ExecutionID], step)
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepIndex < steps[j].StepIndex })
	m.steps[step.ExecutionID] = steps
	return nil
}

// Steps returns every recorded step for executionID.
func (m *InMemory) Steps(_ context.Context, executionID string) ([]core.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.Step, len(m.steps[executionID]))
	copy(out, m.steps[executionID])
	return out, nil
}

// DeleteThread removes the thread's checkpoint history and every step
// recorded under the given execution ids.
func (m *InMemory) DeleteThread(_ context.Context, threadID string, executionIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.checkpoints, threadID)
	delete(m.locks, threadID)
	for _, execID := range executionIDs {
		delete(m.steps, execID)
	}
	return nil
}

func cloneCheckpoint(cp core.Checkpoint) core.Checkpoint {
	out := cp
	out.State = cp.State.Clone()
	out.Frontier = append([]string{}, cp.Frontier...)
	if cp.PendingJoins != nil {
		out.PendingJoins = make(map[string]*core.JoinRecord, len(cp.PendingJoins))
		for k, v := range cp.PendingJoins {
			rec := &core.JoinRecord{
				WaitFor:   append([]string{}, v.WaitFor...),
				Completed: make(map[string]core.Delta, len(v.Completed)),
				Failed:    make(map[string]bool, len(v.Failed)),
			}
			for pk, pv := range v.Completed {
				rec.Completed[pk] = pv
			}
			for pk, pv := range v.Failed {
				rec.Failed[pk] = pv
			}
			out.PendingJoins[k] = rec
		}
	}
	return out
}
