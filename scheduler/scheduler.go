// Package scheduler implements §4.3: the super-step runtime that drives a
// CompiledGraph to completion (or to AWAITING_INPUT) one synchronized round
// at a time, merging concurrent node outputs deterministically, maintaining
// the join ledger, checkpointing after every round, and emitting the §4.7
// lifecycle events. Grounded on runner/runner.go's event-loop shape and
// engine/engine.go's per-execution bookkeeping, generalized from the
// teacher's single-agent-turn loop to frontier-based concurrent dispatch
// with join synchronization.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowstack/orchestrator/checkpoint"
	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/eventbus"
	"github.com/flowstack/orchestrator/logging"
	"github.com/flowstack/orchestrator/merge"
	"github.com/flowstack/orchestrator/nodeexec"
	"github.com/flowstack/orchestrator/tool"
)

// DefaultMaxSubgraphDepth bounds SUBGRAPH recursion (§5's reentrancy rule)
// so a cyclic workflow registry can't recurse indefinitely.
const DefaultMaxSubgraphDepth = 4

// inputPseudoNode is the synthetic node id under which resume input is
// merged into the resumed checkpoint's state, so it goes through the same
// per-property merge rules as any other delta instead of a raw overwrite.
const inputPseudoNode = "\x00resume_input"

// Options configures a Scheduler. Only Checkpointer is required; the rest
// default to single-process, in-memory, unbounded behavior suited to tests
// and small deployments.
type Options struct {
	Checkpointer checkpoint.Checkpointer
	Executions   ExecutionStore
	Tools        *tool.Registry
	Models       nodeexec.ModelProvider
	Logger       logging.Logger
	Reducers     map[string]nodeexec.Reducer

	// NodeTimeout bounds one node's execution (the per-node layer of §5's
	// nested timeout stack). Zero means unbounded.
	NodeTimeout time.Duration
	// ExecutionTimeout bounds an entire Execute call, outermost in the
	// nested timeout stack. Zero means unbounded (caller's ctx still
	// applies).
	ExecutionTimeout time.Duration
	// ToolCallDeadline and MaxToolLoopIterations are forwarded to every
	// AGENT node's tool loop.
	ToolCallDeadline      time.Duration
	MaxToolLoopIterations int
	MaxSubgraphDepth      int
	EventBufferSize       int
}

func (o *Options) setDefaults() {
	if o.Executions == nil {
		o.Executions = NewInMemoryExecutionStore()
	}
	if o.Tools == nil {
		o.Tools = tool.NewRegistry()
	}
	if o.Logger == nil {
		o.Logger = logging.NoOpLogger{}
	}
	if o.MaxSubgraphDepth <= 0 {
		o.MaxSubgraphDepth = DefaultMaxSubgraphDepth
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = 64
	}
}

// Scheduler drives compiled graphs through the super-step loop. One
// Scheduler serves any number of concurrent executions across any number
// of compiled workflows; per-execution state lives in the bus/cancel maps
// below, never on the Scheduler's own fields.
type Scheduler struct {
	opts Options

	mu      sync.Mutex
	buses   map[string]*eventbus.Bus
	cancels map[string]context.CancelFunc
}

// New constructs a Scheduler. opts.Checkpointer must be non-nil.
func New(opts Options) *Scheduler {
	opts.setDefaults()
	return &Scheduler{
		opts:    opts,
		buses:   make(map[string]*eventbus.Bus),
		cancels: make(map[string]context.CancelFunc),
	}
}

// ExecuteRequest is the input to Execute: a compiled graph, an optional
// thread id (empty starts a fresh thread; a thread id with an
// AWAITING_INPUT execution on record resumes it), and the input state to
// seed a fresh run or overlay onto a resumed one.
type ExecuteRequest struct {
	Graph    *core.CompiledGraph
	ThreadID string
	Input    core.State
}

// Subscribe returns the live event channel for executionID, if the
// execution is still tracked (i.e. Execute for it hasn't returned and been
// garbage-collected from the Scheduler's bus table). Mirrors
// eventbus.Bus.Subscribe's single-live-listener contract.
func (s *Scheduler) Subscribe(executionID, subscriberID string) (<-chan eventbus.Event, func(), bool) {
	s.mu.Lock()
	bus, ok := s.buses[executionID]
	s.mu.Unlock()
	if !ok {
		return nil, nil, false
	}
	ch, unsub := bus.Subscribe(subscriberID)
	return ch, unsub, true
}

// Cancel requests cancellation of a running execution. Returns false if no
// such execution is currently tracked (already finished, or unknown id).
func (s *Scheduler) Cancel(executionID string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[executionID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Execute runs req.Graph to completion, to AWAITING_INPUT, or to failure,
// returning the resulting Execution record. Node and tool failures are
// reported on the returned Execution, not as a Go error; Execute itself
// only errors on a request-level problem (a missing graph, an unreadable
// checkpoint, resume input that cannot be merged, a subgraph nested past
// the depth limit). A checkpoint save failure is reported as a FAILED
// Execution.
func (s *Scheduler) Execute(ctx context.Context, req ExecuteRequest) (*core.Execution, error) {
	if req.Graph == nil {
		return nil, fmt.Errorf("scheduler: Execute requires a compiled graph")
	}
	return s.run(ctx, req.Graph, req.ThreadID, req.Input, 0)
}

func (s *Scheduler) run(ctx context.Context, graph *core.CompiledGraph, threadID string, input core.State, depth int) (*core.Execution, error) {
	if depth > s.opts.MaxSubgraphDepth {
		return nil, fmt.Errorf("scheduler: subgraph recursion exceeded max depth %d", s.opts.MaxSubgraphDepth)
	}

	exec, state, frontier, ledger, stepIndex, resuming, err := s.loadOrInit(ctx, graph, threadID, input)
	if err != nil {
		return nil, err
	}
	threadID = exec.ThreadID

	bus := eventbus.New(exec.ExecutionID, s.opts.EventBufferSize)
	s.registerBus(exec.ExecutionID, bus)
	defer s.unregisterBus(exec.ExecutionID)

	var runCtx context.Context
	var cancel context.CancelFunc
	if s.opts.ExecutionTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.opts.ExecutionTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	s.registerCancel(exec.ExecutionID, cancel)
	defer func() {
		cancel()
		s.unregisterCancel(exec.ExecutionID)
	}()

	if !resuming {
		bus.Publish(eventbus.ExecutionStartEvent(exec.ExecutionID, threadID))
	}

	predToJoins := buildPredToJoins(graph)

	status := core.StatusRunning
	var finalErr *core.ErrorDetail

steps:
	for len(frontier) > 0 {
		select {
		case <-runCtx.Done():
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				status = core.StatusFailed
				finalErr = core.NewError(core.ErrorKindExecutionTimeout, "execution exceeded its timeout", runCtx.Err())
			} else {
				status = core.StatusCancelled
				finalErr = core.NewError(core.ErrorKindCancelled, "execution cancelled", runCtx.Err())
			}
			break steps
		default:
		}

		stepIndex++
		ready := dedupe(frontier)
		results := s.runRound(runCtx, graph, exec.ExecutionID, threadID, ready, state, ledger, bus, depth, stepIndex)

		var globalDeltas []merge.NodeDelta
		nextSet := make(map[string]bool)
		suspended := false
		suspendReason := ""
		failed := false
		var failErr *core.ErrorDetail

		for _, nodeID := range ready {
			r, ok := results[nodeID]
			if !ok {
				continue
			}
			oc := r.outcome
			switch oc.Kind {
			case nodeexec.OutcomeStateUpdate:
				joinTargets, passTargets := classifyTargets(graph, nodeID, oc.NextFrontier)
				if len(joinTargets) > 0 {
					for _, j := range joinTargets {
						ledger[j].Completed[nodeID] = oc.Delta
					}
				} else if oc.Delta != nil {
					globalDeltas = append(globalDeltas, merge.NodeDelta{NodeID: nodeID, Delta: oc.Delta})
				}
				for _, t := range passTargets {
					nextSet[t] = true
				}
				for _, j := range joinTargets {
					if ledger[j].Ready() {
						nextSet[j] = true
					}
				}
			case nodeexec.OutcomeSuspend:
				suspended = true
				suspendReason = oc.SuspendReason
				nextSet[nodeID] = true
			case nodeexec.OutcomeFail:
				joins := predToJoins[nodeID]
				if len(joins) == 0 {
					if !failed {
						failed = true
						failErr = oc.Err
					}
				} else {
					for _, j := range joins {
						ledger[j].Failed[nodeID] = true
						if ledger[j].Ready() {
							nextSet[j] = true
						}
					}
				}
			}

			if err := s.opts.Checkpointer.AppendStep(runCtx, r.step); err != nil {
				s.opts.Logger.Error("scheduler.append_step_failed", "node_id", nodeID, "error", err)
			}
		}

		merged, mergeErr := merge.Apply(state, globalDeltas, graph.StateSchema)
		if mergeErr != nil {
			status = core.StatusFailed
			finalErr = core.NewError(core.ErrorKindSchemaValidation, "state merge failed", mergeErr)
			break steps
		}
		state = merged

		nextFrontier := make([]string, 0, len(nextSet))
		for id := range nextSet {
			nextFrontier = append(nextFrontier, id)
		}
		sort.Strings(nextFrontier)

		cp := core.Checkpoint{ThreadID: threadID, StepIndex: stepIndex, State: state, Frontier: nextFrontier, PendingJoins: ledger}
		if err := s.opts.Checkpointer.Save(runCtx, cp); err != nil {
			status = core.StatusFailed
			finalErr = core.NewError(core.ErrorKindCheckpoint, "checkpoint save failed", err)
			break steps
		}

		if suspended {
			status = core.StatusAwaitingInput
			finalErr = nil
			_ = suspendReason
			frontier = nextFrontier
			break steps
		}
		if failed {
			status = core.StatusFailed
			finalErr = failErr
			break steps
		}

		frontier = nextFrontier
	}

	if status == core.StatusRunning {
		status = core.StatusCompleted
	}

	exec.Status = status
	exec.Output = state
	exec.Err = finalErr
	if status == core.StatusAwaitingInput {
		exec.CurrentNode = joinNodeIDs(frontier)
	} else {
		exec.CurrentNode = ""
	}
	if err := s.opts.Executions.Save(*exec); err != nil {
		s.opts.Logger.Error("scheduler.save_execution_failed", "execution_id", exec.ExecutionID, "error", err)
	}

	if status == core.StatusCancelled {
		bus.Publish(eventbus.ExecutionCancelledEvent(exec.ExecutionID))
	} else {
		bus.Publish(eventbus.ExecutionCompleteEvent(exec.ExecutionID, string(status), map[string]any(state)))
	}

	return exec, nil
}

// loadOrInit resolves whether req describes a fresh run or a resume,
// returning the starting Execution record, state, frontier, ledger, and
// step index for the main loop.
func (s *Scheduler) loadOrInit(ctx context.Context, graph *core.CompiledGraph, threadID string, input core.State) (*core.Execution, core.State, []string, map[string]*core.JoinRecord, int, bool, error) {
	if threadID != "" {
		if prev, ok := s.opts.Executions.LoadByThread(threadID); ok && prev.Status == core.StatusAwaitingInput {
			cp, found, err := s.opts.Checkpointer.Load(ctx, threadID)
			if err != nil {
				return nil, nil, nil, nil, 0, false, fmt.Errorf("scheduler: load checkpoint for thread %q: %w", threadID, err)
			}
			if found {
				state := cp.State.Clone()
				if len(input) > 0 {
					merged, err := merge.Apply(state, []merge.NodeDelta{{NodeID: inputPseudoNode, Delta: core.Delta(input)}}, graph.StateSchema)
					if err != nil {
						return nil, nil, nil, nil, 0, false, fmt.Errorf("scheduler: merge resume input: %w", err)
					}
					state = merged
				}
				exec := prev
				exec.Status = core.StatusRunning
				return &exec, state, append([]string{}, cp.Frontier...), cloneLedger(cp.PendingJoins), cp.StepIndex, true, nil
			}
		}
	}

	if threadID == "" {
		threadID = core.NewID()
	}
	exec := &core.Execution{
		ExecutionID: core.NewID(),
		WorkflowID:  graph.WorkflowID,
		ThreadID:    threadID,
		Status:      core.StatusRunning,
	}
	return exec, input.Clone(), []string{graph.EntryPoint}, freshLedger(graph), 0, false, nil
}

// makeRunChild binds a nodeexec.SubgraphRunner to this scheduler at the
// given recursion depth, letting SUBGRAPH nodes recurse through the same
// super-step loop without nodeexec importing scheduler.
func (s *Scheduler) makeRunChild(depth int) nodeexec.SubgraphRunner {
	return func(ctx context.Context, child *core.CompiledGraph, childThreadID string, initial core.State) (core.State, *core.ErrorDetail) {
		exec, err := s.run(ctx, child, childThreadID, initial, depth)
		if err != nil {
			return nil, core.NewError(core.ErrorKindCompilation, "subgraph execution failed", err)
		}
		if exec.Status == core.StatusAwaitingInput {
			return nil, core.NewError(core.ErrorKindCompilation, "subgraph nodes do not support suspending: the child workflow requested input mid-run", nil)
		}
		if exec.Status != core.StatusCompleted {
			if exec.Err != nil {
				return nil, exec.Err
			}
			return nil, core.NewError(core.ErrorKindCancelled, fmt.Sprintf("subgraph ended in status %s", exec.Status), nil)
		}
		return exec.Output, nil
	}
}

func (s *Scheduler) registerBus(executionID string, bus *eventbus.Bus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buses[executionID] = bus
}

func (s *Scheduler) unregisterBus(executionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buses, executionID)
}

func (s *Scheduler) registerCancel(executionID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[executionID] = cancel
}

func (s *Scheduler) unregisterCancel(executionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, executionID)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func joinNodeIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
