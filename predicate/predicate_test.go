package predicate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/predicate"
)

func eval(t *testing.T, condition string, state core.State) bool {
	t.Helper()
	pred, err := predicate.Parse(condition)
	require.NoError(t, err)
	ok, err := pred.Evaluate(state)
	require.NoError(t, err)
	return ok
}

func TestParse_EmptyAndDefaultAreAlwaysMatch(t *testing.T) {
	for _, cond := range []string{"", "default"} {
		pred, err := predicate.Parse(cond)
		require.NoError(t, err)
		assert.True(t, pred.IsDefault())
		ok, err := pred.Evaluate(core.State{})
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestEvaluate_AttributeComparison(t *testing.T) {
	assert.True(t, eval(t, `state.status == "done"`, core.State{"status": "done"}))
	assert.False(t, eval(t, `state.status == "done"`, core.State{"status": "pending"}))
}

func TestEvaluate_NumericComparisons(t *testing.T) {
	state := core.State{"retries": 3}
	assert.True(t, eval(t, "state.retries >= 3", state))
	assert.True(t, eval(t, "state.retries < 5", state))
	assert.False(t, eval(t, "state.retries > 3", state))
}

func TestEvaluate_GetWithDefault(t *testing.T) {
	assert.False(t, eval(t, `state.get("plan_confirmed", false)`, core.State{}))
	assert.True(t, eval(t, `state.get("plan_confirmed", false)`, core.State{"plan_confirmed": true}))
}

func TestEvaluate_AndOrNot(t *testing.T) {
	state := core.State{"a": true, "b": false}
	assert.True(t, eval(t, "state.a and not state.b", state))
	assert.True(t, eval(t, "state.a or state.b", state))
	assert.False(t, eval(t, "not state.a", state))
}

func TestEvaluate_Membership(t *testing.T) {
	state := core.State{"tags": []any{"urgent", "billing"}}
	assert.True(t, eval(t, `"urgent" in state.tags`, state))
	assert.False(t, eval(t, `"spam" in state.tags`, state))
}

func TestEvaluate_NestedAttributeAccess(t *testing.T) {
	state := core.State{"profile": map[string]any{"name": "alice"}}
	assert.True(t, eval(t, `state.profile.name == "alice"`, state))
}

func TestEvaluate_MissingAttributeIsNullNotError(t *testing.T) {
	pred, err := predicate.Parse(`state.get("missing", "fallback") == "fallback"`)
	require.NoError(t, err)
	ok, err := pred.Evaluate(core.State{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParse_RejectsBareIdentifierOutsideState(t *testing.T) {
	_, err := predicate.Parse("status == 1")
	require.Error(t, err)
}

func TestParse_RejectsTrailingTokens(t *testing.T) {
	_, err := predicate.Parse(`state.a == true true`)
	require.Error(t, err)
}

func TestParse_RejectsFunctionCallOtherThanGet(t *testing.T) {
	_, err := predicate.Parse(`state.delete("x")`)
	require.Error(t, err)
}

func TestEvaluate_NonBooleanResultIsError(t *testing.T) {
	pred, err := predicate.Parse("state.retries")
	require.NoError(t, err)
	_, err = pred.Evaluate(core.State{"retries": 3})
	require.Error(t, err)
}

func TestEvaluate_ParenthesizedPrecedence(t *testing.T) {
	state := core.State{"a": false, "b": true, "c": true}
	assert.True(t, eval(t, "state.a or (state.b and state.c)", state))
}
