package scheduler

import (
	"time"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/eventbus"
	"github.com/flowstack/orchestrator/internal/util"
)

// busEventSink adapts a per-execution eventbus.Bus (plus the Recorder
// accumulating the step currently in flight) to toolloop.EventSink: live
// subscribers see only an arguments digest (§4.7's redaction rule), while
// the durable step record gets the full arguments and result for replay.
type busEventSink struct {
	bus         *eventbus.Bus
	rec         *eventbus.Recorder
	executionID string
}

func (b busEventSink) ToolCall(nodeID, toolID string, args map[string]any) {
	b.bus.Publish(eventbus.ToolCallEvent(b.executionID, nodeID, toolID, util.Digest(args)))
	b.rec.Record(core.StepEvent{Kind: "tool_call", ToolID: toolID, Arguments: args, At: time.Now()})
}

func (b busEventSink) ToolResult(nodeID, toolID string, result any, failed bool) {
	b.bus.Publish(eventbus.ToolResultEvent(b.executionID, nodeID, toolID, !failed))
	b.rec.Record(core.StepEvent{Kind: "tool_result", ToolID: toolID, Result: result, At: time.Now()})
}
