package nodeexec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowstack/orchestrator/compiler"
	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/internal/testutil"
	"github.com/flowstack/orchestrator/nodeexec"
)

func TestDispatch_UnknownKindErrors(t *testing.T) {
	_, err := nodeexec.Dispatch(core.NodeDescription{NodeID: "x", Kind: core.NodeKind("BOGUS")})
	assert.Error(t, err)
}

func TestDispatch_ReturnsExecutorPerKind(t *testing.T) {
	for _, kind := range []core.NodeKind{
		core.NodeKindAgent, core.NodeKindRouter, core.NodeKindParallel,
		core.NodeKindJoin, core.NodeKindSubgraph,
	} {
		exec, err := nodeexec.Dispatch(core.NodeDescription{NodeID: "x", Kind: kind})
		require.NoError(t, err)
		assert.NotNil(t, exec)
	}
}

func TestRouter_FirstMatchingConditionWinsInDeclaredOrder(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("route").
		Router("route", core.EndSentinel).
		ConditionalEdge("route", "a", `state.x == 1`).
		ConditionalEdge("route", "b", `state.x == 1`).
		ConditionalEdge("route", "fallback", "default").
		Agent("a", "writer", nil, "hit").
		Agent("b", "writer", nil, "hit").
		Agent("fallback", "writer", nil, "hit").
		Edge("a", core.EndSentinel).
		Edge("b", core.EndSentinel).
		Edge("fallback", core.EndSentinel).
		Build()
	resolver := testutil.NewStubResolver().WithAgent(core.AgentDefinition{ID: "writer"})
	graph, _, err := compiler.Compile(desc, resolver)
	require.NoError(t, err)

	outcome := nodeexec.Router(core.State{"x": 1}, graph.Nodes["route"], &nodeexec.Context{Ctx: context.Background(), Graph: graph})
	require.Equal(t, nodeexec.OutcomeStateUpdate, outcome.Kind)
	assert.Equal(t, []string{"a"}, outcome.NextFrontier)
}

func TestRouter_FallsThroughToDefaultWhenNothingMatches(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("route").
		Router("route", core.EndSentinel).
		ConditionalEdge("route", "a", `state.x == 99`).
		ConditionalEdge("route", "fallback", "default").
		Agent("a", "writer", nil, "hit").
		Agent("fallback", "writer", nil, "hit").
		Edge("a", core.EndSentinel).
		Edge("fallback", core.EndSentinel).
		Build()
	resolver := testutil.NewStubResolver().WithAgent(core.AgentDefinition{ID: "writer"})
	graph, _, err := compiler.Compile(desc, resolver)
	require.NoError(t, err)

	outcome := nodeexec.Router(core.State{}, graph.Nodes["route"], &nodeexec.Context{Ctx: context.Background(), Graph: graph})
	require.Equal(t, nodeexec.OutcomeStateUpdate, outcome.Kind)
	assert.Equal(t, []string{"fallback"}, outcome.NextFrontier)
}

func TestParallel_EmitsOneFrontierEntryPerOutgoingEdgeNoStateDelta(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("fanout").
		Parallel("fanout").
		Agent("left", "writer", nil, "l").
		Agent("right", "writer", nil, "r").
		Join("join", []string{"left", "right"}, core.MergeObject, core.FailurePolicyAny, "").
		Edge("fanout", "left").
		Edge("fanout", "right").
		Edge("left", "join").
		Edge("right", "join").
		Edge("join", core.EndSentinel).
		Build()
	resolver := testutil.NewStubResolver().WithAgent(core.AgentDefinition{ID: "writer"})
	graph, _, err := compiler.Compile(desc, resolver)
	require.NoError(t, err)

	outcome := nodeexec.Parallel(core.State{}, graph.Nodes["fanout"], &nodeexec.Context{Ctx: context.Background(), Graph: graph})
	require.Equal(t, nodeexec.OutcomeStateUpdate, outcome.Kind)
	assert.Nil(t, outcome.Delta)
	assert.ElementsMatch(t, []string{"left", "right"}, outcome.NextFrontier)
}

func TestJoin_RefusesToFireBeforeLedgerIsReady(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("fanout").
		Parallel("fanout").
		Agent("left", "writer", nil, "l").
		Agent("right", "writer", nil, "r").
		Join("join", []string{"left", "right"}, core.MergeAppendList, core.FailurePolicyAny, "items").
		Edge("fanout", "left").
		Edge("fanout", "right").
		Edge("left", "join").
		Edge("right", "join").
		Edge("join", core.EndSentinel).
		Build()
	resolver := testutil.NewStubResolver().WithAgent(core.AgentDefinition{ID: "writer"})
	graph, _, err := compiler.Compile(desc, resolver)
	require.NoError(t, err)

	rec := &core.JoinRecord{WaitFor: []string{"left", "right"}, Completed: map[string]core.Delta{}, Failed: map[string]bool{}}
	outcome := nodeexec.Join(core.State{}, graph.Nodes["join"], &nodeexec.Context{
		Ctx: context.Background(), Graph: graph, JoinLedger: rec,
	})
	require.Equal(t, nodeexec.OutcomeFail, outcome.Kind)
}

func TestJoin_AppendListAggregatesAllPredecessorsOnceReady(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("fanout").
		Parallel("fanout").
		Agent("left", "writer", nil, "l").
		Agent("right", "writer", nil, "r").
		Join("join", []string{"left", "right"}, core.MergeAppendList, core.FailurePolicyAny, "").
		Edge("fanout", "left").
		Edge("fanout", "right").
		Edge("left", "join").
		Edge("right", "join").
		Edge("join", core.EndSentinel).
		Build()
	resolver := testutil.NewStubResolver().WithAgent(core.AgentDefinition{ID: "writer"})
	graph, _, err := compiler.Compile(desc, resolver)
	require.NoError(t, err)

	rec := &core.JoinRecord{WaitFor: []string{"left", "right"}, Completed: map[string]core.Delta{}, Failed: map[string]bool{}}
	rec.Completed["left"] = core.Delta{"items": []any{1}}
	rec.Completed["right"] = core.Delta{"items": []any{2}}

	outcome := nodeexec.Join(core.State{}, graph.Nodes["join"], &nodeexec.Context{
		Ctx: context.Background(), Graph: graph, JoinLedger: rec,
	})
	require.Equal(t, nodeexec.OutcomeStateUpdate, outcome.Kind)
	wrapped, ok := outcome.Delta["items"].([]any)
	if !ok {
		t.Fatalf("expected outcome.Delta[\"items\"] to be []any, got %T", outcome.Delta["items"])
	}
	assert.ElementsMatch(t, []any{1, 2}, wrapped)
}

func TestJoin_MajorityFailurePolicyTripsOverHalfFailures(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("fanout").
		Parallel("fanout").
		Agent("a", "writer", nil, "a").
		Agent("b", "writer", nil, "b").
		Agent("c", "writer", nil, "c").
		Join("join", []string{"a", "b", "c"}, core.MergeObject, core.FailurePolicyMajority, "").
		Edge("fanout", "a").
		Edge("fanout", "b").
		Edge("fanout", "c").
		Edge("a", "join").
		Edge("b", "join").
		Edge("c", "join").
		Edge("join", core.EndSentinel).
		Build()
	resolver := testutil.NewStubResolver().WithAgent(core.AgentDefinition{ID: "writer"})
	graph, _, err := compiler.Compile(desc, resolver)
	require.NoError(t, err)

	rec := &core.JoinRecord{WaitFor: []string{"a", "b", "c"}, Completed: map[string]core.Delta{}, Failed: map[string]bool{}}
	rec.Completed["a"] = core.Delta{}
	rec.Failed["b"] = true
	rec.Failed["c"] = true

	outcome := nodeexec.Join(core.State{}, graph.Nodes["join"], &nodeexec.Context{
		Ctx: context.Background(), Graph: graph, JoinLedger: rec,
	})
	require.Equal(t, nodeexec.OutcomeFail, outcome.Kind)
}
