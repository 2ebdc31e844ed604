package core_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowstack/orchestrator/core"
)

func TestState_CloneIsIndependentOfOriginal(t *testing.T) {
	s := core.State{"x": 1}
	clone := s.Clone()
	clone["x"] = 2
	clone["y"] = 3

	assert.Equal(t, 1, s["x"])
	_, ok := s["y"]
	assert.False(t, ok)
}

func TestState_StepDefaultsToZeroWhenAbsentOrWrongType(t *testing.T) {
	assert.Equal(t, 0, core.State{}.Step())
	assert.Equal(t, 0, core.State{core.StateKeyStep: "not a number"}.Step())
}

func TestState_StepReadsIntInt64OrFloat64(t *testing.T) {
	assert.Equal(t, 5, core.State{core.StateKeyStep: 5}.Step())
	assert.Equal(t, 6, core.State{core.StateKeyStep: int64(6)}.Step())
	assert.Equal(t, 7, core.State{core.StateKeyStep: float64(7)}.Step())
}

func TestStateSchema_RuleForDefaultsToReplace(t *testing.T) {
	var nilSchema core.StateSchema
	assert.Equal(t, core.MergeReplace, nilSchema.RuleFor("anything"))

	schema := core.StateSchema{
		"items": {Type: "array", MergeRule: core.MergeAppendList},
		"bare":  {Type: "string"},
	}
	assert.Equal(t, core.MergeAppendList, schema.RuleFor("items"))
	assert.Equal(t, core.MergeReplace, schema.RuleFor("bare"))
	assert.Equal(t, core.MergeReplace, schema.RuleFor("undeclared"))
}

func TestStatus_TerminalClassifiesEachValue(t *testing.T) {
	terminal := []core.Status{core.StatusCompleted, core.StatusFailed, core.StatusCancelled}
	for _, s := range terminal {
		assert.Truef(t, s.Terminal(), "expected %s to be terminal", s)
	}

	nonTerminal := []core.Status{core.StatusPending, core.StatusRunning, core.StatusAwaitingInput}
	for _, s := range nonTerminal {
		assert.Falsef(t, s.Terminal(), "expected %s to not be terminal", s)
	}
}

func TestErrorDetail_ErrorIncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("root cause")
	withCause := core.NewError(core.ErrorKindProvider, "upstream failed", cause)
	assert.Contains(t, withCause.Error(), "root cause")
	assert.Contains(t, withCause.Error(), "upstream failed")

	withoutCause := core.NewError(core.ErrorKindCompilation, "bad graph", nil)
	assert.NotContains(t, withoutCause.Error(), "<nil>")
}

func TestErrorDetail_UnwrapExposesCauseForErrorsIs(t *testing.T) {
	cause := errors.New("root cause")
	detail := core.NewError(core.ErrorKindTool, "tool failed", cause)

	assert.ErrorIs(t, detail, cause)
}

func TestNewRetryableError_SetsRetryableTrue(t *testing.T) {
	detail := core.NewRetryableError(core.ErrorKindProvider, "rate limited", nil)
	assert.True(t, detail.Retryable)

	plain := core.NewError(core.ErrorKindProvider, "bad request", nil)
	assert.False(t, plain.Retryable)
}
