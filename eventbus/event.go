// Package eventbus implements §4.7: ordered per-execution lifecycle
// events fanned out to at most one live SSE subscriber (bounded, drop-on-
// disconnect) and durably appended to the step record regardless of
// whether anyone is subscribed. The buffered-channel-plus-non-blocking-
// drop idiom is grounded on runner/runner.go's processEvents; defensive
// cloning on publish follows Gurpartap-agentframe's eventing/inmem/sink.go.
package eventbus

import (
	"time"
)

// Name enumerates the event names exactly as named in §4.7, used both as
// the SSE "event:" line and as the Kind recorded in a Step's events list.
type Name string

const (
	ExecutionStart     Name = "execution_start"
	NodeStart          Name = "node_start"
	ToolCall           Name = "tool_call"
	ToolResult         Name = "tool_result"
	NodeComplete       Name = "node_complete"
	NodeError          Name = "node_error"
	ExecutionComplete  Name = "execution_complete"
	ExecutionCancelled Name = "execution_cancelled"
)

// Event is one emitted lifecycle event, carrying a JSON-serializable
// payload whose shape depends on Name (see the *Event constructors).
type Event struct {
	Name        Name
	ExecutionID string
	At          time.Time
	Data        map[string]any
}

func newEvent(name Name, executionID string, data map[string]any) Event {
	return Event{Name: name, ExecutionID: executionID, At: time.Now(), Data: data}
}

// ExecutionStartEvent constructs the execution_start payload.
func ExecutionStartEvent(executionID, threadID string) Event {
	return newEvent(ExecutionStart, executionID, map[string]any{
		"execution_id": executionID,
		"thread_id":    threadID,
	})
}

// NodeStartEvent constructs the node_start payload.
func NodeStartEvent(executionID, nodeID string, stepIndex int, inputSnapshotRef string) Event {
	return newEvent(NodeStart, executionID, map[string]any{
		"node_id":             nodeID,
		"step_index":          stepIndex,
		"input_snapshot_ref":  inputSnapshotRef,
	})
}

// ToolCallEvent constructs the tool_call payload. argumentsDigest should be
// a short stable hash, not the raw arguments, so subscribers don't leak
// full tool-call payloads through the live event stream.
func ToolCallEvent(executionID, nodeID, toolID, argumentsDigest string) Event {
	return newEvent(ToolCall, executionID, map[string]any{
		"node_id":          nodeID,
		"tool_id":          toolID,
		"arguments_digest": argumentsDigest,
	})
}

// ToolResultEvent constructs the tool_result payload.
func ToolResultEvent(executionID, nodeID, toolID string, ok bool) Event {
	return newEvent(ToolResult, executionID, map[string]any{
		"node_id": nodeID,
		"tool_id": toolID,
		"ok":      ok,
	})
}

// NodeCompleteEvent constructs the node_complete payload.
func NodeCompleteEvent(executionID, nodeID string, stepIndex int, deltaDigest string) Event {
	return newEvent(NodeComplete, executionID, map[string]any{
		"node_id":      nodeID,
		"step_index":   stepIndex,
		"delta_digest": deltaDigest,
	})
}

// NodeErrorEvent constructs the node_error payload.
func NodeErrorEvent(executionID, nodeID string, stepIndex int, errKind, detail string) Event {
	return newEvent(NodeError, executionID, map[string]any{
		"node_id":    nodeID,
		"step_index": stepIndex,
		"error_kind": errKind,
		"detail":     detail,
	})
}

// ExecutionCompleteEvent constructs the execution_complete payload.
func ExecutionCompleteEvent(executionID, status string, output map[string]any) Event {
	return newEvent(ExecutionComplete, executionID, map[string]any{
		"status": status,
		"output": output,
	})
}

// ExecutionCancelledEvent constructs the execution_cancelled payload.
func ExecutionCancelledEvent(executionID string) Event {
	return newEvent(ExecutionCancelled, executionID, map[string]any{})
}

func cloneEvent(e Event) Event {
	out := e
	if e.Data != nil {
		out.Data = make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			out.Data[k] = v
		}
	}
	return out
}
