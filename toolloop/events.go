package toolloop

// EventSink receives tool-call lifecycle notifications as the loop drives
// them, so a caller can fan them out (e.g. to a live SSE subscriber)
// without the loop itself depending on any particular transport. Nil-safe:
// a Loop with no Events configured simply doesn't notify anyone.
type EventSink interface {
	ToolCall(nodeID, toolID string, args map[string]any)
	ToolResult(nodeID, toolID string, result any, failed bool)
}
