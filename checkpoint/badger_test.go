package checkpoint_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowstack/orchestrator/checkpoint"
	"github.com/flowstack/orchestrator/core"
)

func openBadger(t *testing.T) *checkpoint.Badger {
	t.Helper()
	db, err := checkpoint.OpenBadger(checkpoint.BadgerOptions{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBadger_OpenRejectsEmptyDir(t *testing.T) {
	_, err := checkpoint.OpenBadger(checkpoint.BadgerOptions{})
	assert.Error(t, err)
}

func TestBadger_SaveThenLoadReturnsNewest(t *testing.T) {
	db := openBadger(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, core.Checkpoint{ThreadID: "t1", StepIndex: 0, State: core.State{"x": 1}, Frontier: []string{"a"}}))
	require.NoError(t, db.Save(ctx, core.Checkpoint{ThreadID: "t1", StepIndex: 1, State: core.State{"x": 2}, Frontier: []string{"b"}}))

	got, ok, err := db.Load(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, got.StepIndex)
	assert.EqualValues(t, 2, got.State["x"])
}

func TestBadger_LoadMissingThreadReturnsFalse(t *testing.T) {
	db := openBadger(t)
	_, ok, err := db.Load(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBadger_SaveRejectsNonIncreasingStepIndex(t *testing.T) {
	db := openBadger(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, core.Checkpoint{ThreadID: "t1", StepIndex: 2, State: core.State{}}))
	err := db.Save(ctx, core.Checkpoint{ThreadID: "t1", StepIndex: 2, State: core.State{}})
	assert.Error(t, err)
	err = db.Save(ctx, core.Checkpoint{ThreadID: "t1", StepIndex: 1, State: core.State{}})
	assert.Error(t, err)
}

func TestBadger_AppendStepThenStepsOrderedByIndex(t *testing.T) {
	db := openBadger(t)
	ctx := context.Background()

	require.NoError(t, db.AppendStep(ctx, core.Step{ExecutionID: "e1", StepIndex: 2, NodeID: "n2"}))
	require.NoError(t, db.AppendStep(ctx, core.Step{ExecutionID: "e1", StepIndex: 0, NodeID: "n0"}))
	require.NoError(t, db.AppendStep(ctx, core.Step{ExecutionID: "e1", StepIndex: 1, NodeID: "n1"}))

	steps, err := db.Steps(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, []string{"n0", "n1", "n2"}, []string{steps[0].NodeID, steps[1].NodeID, steps[2].NodeID})
}

func TestBadger_DeleteThreadRemovesCheckpointsAndSteps(t *testing.T) {
	db := openBadger(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, core.Checkpoint{ThreadID: "t1", StepIndex: 0, State: core.State{}}))
	require.NoError(t, db.AppendStep(ctx, core.Step{ExecutionID: "e1", StepIndex: 0, NodeID: "n0"}))

	require.NoError(t, db.DeleteThread(ctx, "t1", []string{"e1"}))

	_, ok, err := db.Load(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)

	steps, err := db.Steps(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestBadger_DistinctThreadsDoNotShareCheckpointHistory(t *testing.T) {
	db := openBadger(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, core.Checkpoint{ThreadID: "t1", StepIndex: 0, State: core.State{"who": "t1"}}))
	require.NoError(t, db.Save(ctx, core.Checkpoint{ThreadID: "t2", StepIndex: 0, State: core.State{"who": "t2"}}))
	require.NoError(t, db.Save(ctx, core.Checkpoint{ThreadID: "t1", StepIndex: 1, State: core.State{"who": "t1-again"}}))

	got1, _, err := db.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1-again", got1.State["who"])

	got2, _, err := db.Load(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, "t2", got2.State["who"])
}
