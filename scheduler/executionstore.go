package scheduler

import (
	"sync"

	"github.com/flowstack/orchestrator/core"
)

// ExecutionStore tracks the latest Execution record per thread id, letting
// the scheduler answer "is this thread awaiting input?" on resume without
// re-deriving it from the checkpoint (whose Checkpoint value carries no
// status field). This is the minimal in-process stand-in the scheduler
// needs to implement the §4.6 resume contract; a full execution/workflow
// ORM layer is out of scope here.
type ExecutionStore interface {
	Save(exec core.Execution) error
	LoadByThread(threadID string) (core.Execution, bool)
	Load(executionID string) (core.Execution, bool)
}

// InMemoryExecutionStore is the default ExecutionStore: a process-local
// map safe for concurrent use, sufficient for a single-process deployment
// per the spec's concurrency model (§5: "the engine targets a single
// process, optionally replicated behind a sticky-session gateway").
type InMemoryExecutionStore struct {
	mu        sync.RWMutex
	byThread  map[string]core.Execution
	byExecID  map[string]core.Execution
}

// NewInMemoryExecutionStore constructs an empty store.
func NewInMemoryExecutionStore() *InMemoryExecutionStore {
	return &InMemoryExecutionStore{
		byThread: make(map[string]core.Execution),
		byExecID: make(map[string]core.Execution),
	}
}

func (s *InMemoryExecutionStore) Save(exec core.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exec.ThreadID != "" {
		s.byThread[exec.ThreadID] = exec
	}
	s.byExecID[exec.ExecutionID] = exec
	return nil
}

func (s *InMemoryExecutionStore) LoadByThread(threadID string) (core.Execution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byThread[threadID]
	return e, ok
}

func (s *InMemoryExecutionStore) Load(executionID string) (core.Execution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byExecID[executionID]
	return e, ok
}
