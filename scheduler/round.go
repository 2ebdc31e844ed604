package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/eventbus"
	"github.com/flowstack/orchestrator/internal/util"
	"github.com/flowstack/orchestrator/nodeexec"
)

// roundResult is one ready node's outcome plus the Step record built from
// running it, returned from runRound for the caller to merge/ledger/
// checkpoint.
type roundResult struct {
	nodeID  string
	outcome nodeexec.Outcome
	step    core.Step
}

// runRound executes every node in ready concurrently (§4.3 step b: "execute
// every node in the frontier concurrently"; PARALLEL's fan-out and any
// other simultaneously-ready nodes are indistinguishable to the scheduler:
// both are just entries in the same frontier), each under its own
// per-node timeout and a join-ledger view scoped to that node if it's a
// JOIN.
func (s *Scheduler) runRound(
	ctx context.Context,
	graph *core.CompiledGraph,
	executionID, threadID string,
	ready []string,
	state core.State,
	ledger map[string]*core.JoinRecord,
	bus *eventbus.Bus,
	depth, stepIndex int,
) map[string]roundResult {
	out := make(chan roundResult, len(ready))
	var wg sync.WaitGroup

	inputDigest := util.Digest(state)

	for _, nodeID := range ready {
		wg.Add(1)
		go func(nodeID string) {
			defer wg.Done()
			out <- s.runNode(ctx, graph, executionID, threadID, nodeID, state, ledger, bus, depth, stepIndex, inputDigest)
		}(nodeID)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make(map[string]roundResult, len(ready))
	for r := range out {
		results[r.nodeID] = r
	}
	return results
}

func (s *Scheduler) runNode(
	ctx context.Context,
	graph *core.CompiledGraph,
	executionID, threadID, nodeID string,
	state core.State,
	ledger map[string]*core.JoinRecord,
	bus *eventbus.Bus,
	depth, stepIndex int,
	inputDigest string,
) roundResult {
	started := time.Now()
	bus.Publish(eventbus.NodeStartEvent(executionID, nodeID, stepIndex, inputDigest))

	node, ok := graph.Nodes[nodeID]
	if !ok {
		err := core.NewError(core.ErrorKindCompilation, "frontier references unknown node "+nodeID, nil)
		return roundResult{nodeID: nodeID, outcome: nodeexec.Fail(err), step: s.errStep(executionID, nodeID, stepIndex, started, state, err)}
	}

	exec, err := nodeexec.Dispatch(node)
	if err != nil {
		ed := core.NewError(core.ErrorKindCompilation, err.Error(), err)
		return roundResult{nodeID: nodeID, outcome: nodeexec.Fail(ed), step: s.errStep(executionID, nodeID, stepIndex, started, state, ed)}
	}

	nodeCtx := ctx
	var cancel context.CancelFunc
	if s.opts.NodeTimeout > 0 {
		nodeCtx, cancel = context.WithTimeout(ctx, s.opts.NodeTimeout)
	} else {
		nodeCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	rec := eventbus.NewRecorder()
	execCtx := &nodeexec.Context{
		Ctx:                   nodeCtx,
		ExecutionID:           executionID,
		NodeID:                nodeID,
		Graph:                 graph,
		Tools:                 s.opts.Tools,
		Models:                s.opts.Models,
		Logger:                s.opts.Logger,
		RunChild:              s.makeRunChild(depth + 1),
		ToolCallDeadline:      s.opts.ToolCallDeadline,
		MaxToolLoopIterations: s.opts.MaxToolLoopIterations,
		Reducers:              s.opts.Reducers,
		Events:                busEventSink{bus: bus, rec: rec, executionID: executionID},
	}
	if node.Kind == core.NodeKindJoin {
		execCtx.JoinLedger = ledger[nodeID]
	}

	outcome := exec(state, node, execCtx)

	finished := time.Now()
	step := core.Step{
		ExecutionID:        executionID,
		StepIndex:          stepIndex,
		NodeID:             nodeID,
		StartedAt:          started,
		FinishedAt:         finished,
		InputStateSnapshot: state,
		Events:             rec.Drain(),
	}

	switch outcome.Kind {
	case nodeexec.OutcomeStateUpdate:
		step.OutputStateDelta = outcome.Delta
		bus.Publish(eventbus.NodeCompleteEvent(executionID, nodeID, stepIndex, util.Digest(outcome.Delta)))
	case nodeexec.OutcomeSuspend:
		bus.Publish(eventbus.NodeCompleteEvent(executionID, nodeID, stepIndex, "suspended"))
	case nodeexec.OutcomeFail:
		step.Err = outcome.Err
		bus.Publish(eventbus.NodeErrorEvent(executionID, nodeID, stepIndex, string(outcome.Err.Kind), outcome.Err.Detail))
	}

	return roundResult{nodeID: nodeID, outcome: outcome, step: step}
}

func (s *Scheduler) errStep(executionID, nodeID string, stepIndex int, started time.Time, state core.State, err *core.ErrorDetail) core.Step {
	return core.Step{
		ExecutionID:        executionID,
		StepIndex:          stepIndex,
		NodeID:             nodeID,
		StartedAt:          started,
		FinishedAt:         time.Now(),
		InputStateSnapshot: state,
		Err:                err,
	}
}
