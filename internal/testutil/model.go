package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/model"
)

// Turn is one scripted model.Generate response.
type Turn struct {
	Content      core.Content
	FinishReason string
}

// TextTurn builds a Turn carrying a plain assistant text reply.
func TextTurn(text string) Turn {
	return Turn{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	}
}

// ToolCallTurn builds a Turn requesting one or more tool calls in a single
// model turn.
func ToolCallTurn(calls ...core.FunctionCall) Turn {
	parts := make([]core.Part, len(calls))
	for i, c := range calls {
		parts[i] = core.FunctionCallPart{FunctionCall: c}
	}
	return Turn{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: "tool_calls",
	}
}

// ScriptedModel is a model.Model that replays a fixed sequence of Turns in
// order, one per Generate call, so toolloop tests can drive a deterministic
// multi-iteration conversation (tool-call retries, structured-output
// validation failures, exhaustion) without a live provider. Grounded on
// model.MockModel, generalized from a single canned-response map to an
// ordered script.
type ScriptedModel struct {
	mu    sync.Mutex
	info  model.Info
	turns []Turn
	next  int
}

// NewScriptedModel returns a ScriptedModel that replays turns in order.
func NewScriptedModel(name string, turns ...Turn) *ScriptedModel {
	return &ScriptedModel{
		info:  model.Info{Name: name, Provider: "scripted", SupportsTools: true},
		turns: turns,
	}
}

// Generate implements model.Model, ignoring req and returning the next
// scripted Turn. Calling past the end of the script is a test-authoring
// bug, surfaced as an error rather than a panic.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	idx := m.next
	m.next++
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		default:
		}
		if idx >= len(m.turns) {
			errCh <- fmt.Errorf("testutil: scripted model exhausted after %d turns", len(m.turns))
			return
		}
		turn := m.turns[idx]
		respCh <- model.Response{Content: turn.Content, FinishReason: turn.FinishReason}
	}()
	return respCh, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info { return m.info }
