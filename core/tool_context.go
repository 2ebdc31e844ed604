package core

import (
	"context"

	"github.com/flowstack/orchestrator/logging"
)

// ToolContext is passed to every Tool.Call, scoping the invocation to a
// single tool call within a running execution. It intentionally carries
// far less than the session/artifact/memory laden context the teacher's
// per-agent runtime used: persistence, memory and artifacts are out of
// scope for this engine's tool bodies per the specification.
type ToolContext struct {
	// Context carries the per-call deadline (§5's innermost timeout layer)
	// and the cooperative cancellation signal propagated from the
	// top-level execution.
	Context context.Context

	ExecutionID string
	NodeID      string
	ToolCallID  string

	logger logging.Logger
}

// NewToolContext constructs a ToolContext. A nil logger is replaced with
// logging.NoOpLogger{}.
func NewToolContext(ctx context.Context, executionID, nodeID, toolCallID string, logger logging.Logger) *ToolContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		Context:     ctx,
		ExecutionID: executionID,
		NodeID:      nodeID,
		ToolCallID:  toolCallID,
		logger:      logger,
	}
}

// Logger returns the contextual logger for this call.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }
