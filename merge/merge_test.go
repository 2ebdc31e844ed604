package merge_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/merge"
)

func TestApply_ReplaceLastWriterByNodeID(t *testing.T) {
	schema := core.StateSchema{"x": {MergeRule: core.MergeReplace}}
	deltas := []merge.NodeDelta{
		{NodeID: "b", Delta: core.Delta{"x": "from-b"}},
		{NodeID: "a", Delta: core.Delta{"x": "from-a"}},
	}

	out, err := merge.Apply(core.State{}, deltas, schema)
	require.NoError(t, err)
	assert.Equal(t, "from-b", out["x"])
}

func TestApply_AppendList(t *testing.T) {
	schema := core.StateSchema{"items": {MergeRule: core.MergeAppendList}}
	base := core.State{"items": []any{"seed"}}
	deltas := []merge.NodeDelta{
		{NodeID: "n1", Delta: core.Delta{"items": []any{"a", "b"}}},
		{NodeID: "n2", Delta: core.Delta{"items": []any{"c"}}},
	}

	out, err := merge.Apply(base, deltas, schema)
	require.NoError(t, err)
	assert.Equal(t, []any{"seed", "a", "b", "c"}, out["items"])
}

func TestApply_MergeObjectKeyWiseOverride(t *testing.T) {
	schema := core.StateSchema{"profile": {MergeRule: core.MergeObject}}
	base := core.State{"profile": map[string]any{"name": "alice", "age": 30}}
	deltas := []merge.NodeDelta{
		{NodeID: "n1", Delta: core.Delta{"profile": map[string]any{"age": 31}}},
	}

	out, err := merge.Apply(base, deltas, schema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "alice", "age": 31}, out["profile"])
}

func TestApply_UnknownPropertyDefaultsToReplace(t *testing.T) {
	out, err := merge.Apply(core.State{}, []merge.NodeDelta{
		{NodeID: "n1", Delta: core.Delta{"anything": 1}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, out["anything"])
}

// TestApply_DeterministicRegardlessOfSliceOrder is the merge package's
// core correctness property: applying the same delta set in any slice
// order produces byte-identical state, since Apply always processes in
// lexicographic NodeID order internally.
func TestApply_DeterministicRegardlessOfSliceOrder(t *testing.T) {
	schema := core.StateSchema{
		"x":     {MergeRule: core.MergeReplace},
		"items": {MergeRule: core.MergeAppendList},
	}
	deltas := []merge.NodeDelta{
		{NodeID: "alpha", Delta: core.Delta{"x": 1, "items": []any{"a"}}},
		{NodeID: "beta", Delta: core.Delta{"x": 2, "items": []any{"b"}}},
		{NodeID: "gamma", Delta: core.Delta{"x": 3, "items": []any{"c"}}},
		{NodeID: "delta", Delta: core.Delta{"x": 4, "items": []any{"d"}}},
	}

	want, err := merge.Apply(core.State{}, deltas, schema)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		shuffled := append([]merge.NodeDelta(nil), deltas...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got, err := merge.Apply(core.State{}, shuffled, schema)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestApply_BaseNotMutated(t *testing.T) {
	base := core.State{"x": "original"}
	_, err := merge.Apply(base, []merge.NodeDelta{{NodeID: "n1", Delta: core.Delta{"x": "changed"}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "original", base["x"])
}
