package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowstack/orchestrator/compiler"
	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/internal/testutil"
)

func agentResolver() *testutil.StubResolver {
	return testutil.NewStubResolver().
		WithAgent(core.AgentDefinition{ID: "writer", Name: "writer"}).
		WithAgent(core.AgentDefinition{ID: "reviewer", Name: "reviewer"})
}

func TestCompile_LinearGraphSucceeds(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("draft").
		Agent("draft", "writer", nil, "draft_text").
		Edge("draft", core.EndSentinel).
		Build()

	graph, warnings, err := compiler.Compile(desc, agentResolver())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "draft", graph.EntryPoint)
	assert.Contains(t, graph.Outgoing, core.StartSentinel)
}

func TestCompile_DuplicateNodeIDFails(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("a").
		Agent("a", "writer", nil, "").
		Agent("a", "reviewer", nil, "").
		Edge("a", core.EndSentinel).
		Build()

	_, _, err := compiler.Compile(desc, agentResolver())
	var se *compiler.StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "duplicate_id", se.Kind)
}

func TestCompile_ReservedNodeIDFails(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint(core.StartSentinel).
		Build()

	_, _, err := compiler.Compile(desc, agentResolver())
	var se *compiler.StructuralError
	require.ErrorAs(t, err, &se)
}

func TestCompile_DanglingEdgeFails(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("a").
		Agent("a", "writer", nil, "").
		Edge("a", "ghost").
		Build()

	_, _, err := compiler.Compile(desc, agentResolver())
	var se *compiler.StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "dangling_edge", se.Kind)
}

func TestCompile_UnreachableNodeWarnsNotFails(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("a").
		Agent("a", "writer", nil, "").
		Agent("orphan", "writer", nil, "").
		Edge("a", core.EndSentinel).
		Build()

	_, warnings, err := compiler.Compile(desc, agentResolver())
	require.NoError(t, err)
	found := false
	for _, w := range warnings {
		if w == `node "orphan" is unreachable from __start__` {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompile_UnconditionalCycleFails(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("a").
		Agent("a", "writer", nil, "").
		Agent("b", "reviewer", nil, "").
		Edge("a", "b").
		Edge("b", "a").
		Build()

	_, _, err := compiler.Compile(desc, agentResolver())
	var ce *compiler.CycleError
	require.ErrorAs(t, err, &ce)
}

func TestCompile_ConditionalCycleSucceeds(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("a").
		Agent("a", "writer", nil, "").
		Router("b", core.EndSentinel).
		Edge("a", "b").
		ConditionalEdge("b", "a", `state.get("retry", false) == true`).
		ConditionalEdge("b", core.EndSentinel, "default").
		Build()

	_, _, err := compiler.Compile(desc, agentResolver())
	require.NoError(t, err)
}

func TestCompile_RouterSynthesizesDefaultRoute(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("r").
		Router("r", core.EndSentinel).
		ConditionalEdge("r", "a", `state.status == "go"`).
		Agent("a", "writer", nil, "").
		Edge("a", core.EndSentinel).
		Build()

	graph, _, err := compiler.Compile(desc, agentResolver())
	require.NoError(t, err)

	edges := graph.Outgoing["r"]
	require.Len(t, edges, 2)
	assert.True(t, edges[1].Predicate.IsDefault())
}

func TestCompile_ParallelNeedsAtLeastTwoOutgoingEdges(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("p").
		Parallel("p").
		Agent("a", "writer", nil, "").
		Edge("p", "a").
		Edge("a", core.EndSentinel).
		Build()

	_, _, err := compiler.Compile(desc, agentResolver())
	var se *compiler.StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "parallel_insufficient_edges", se.Kind)
}

func TestCompile_JoinWaitForMustMatchIncomingPredecessors(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("p").
		Parallel("p").
		Agent("a", "writer", nil, "").
		Agent("b", "reviewer", nil, "").
		Join("j", []string{"a", "c-does-not-exist"}, core.MergeObject, core.FailurePolicyAny, "").
		Edge("p", "a").
		Edge("p", "b").
		Edge("a", "j").
		Edge("b", "j").
		Edge("j", core.EndSentinel).
		Build()

	_, _, err := compiler.Compile(desc, agentResolver())
	var se *compiler.StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "join_wait_for_mismatch", se.Kind)
}

func TestCompile_ValidParallelJoinPair(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("p").
		Parallel("p").
		Agent("a", "writer", nil, "a_out").
		Agent("b", "reviewer", nil, "b_out").
		Join("j", []string{"a", "b"}, core.MergeObject, core.FailurePolicyAny, "joined").
		Edge("p", "a").
		Edge("p", "b").
		Edge("a", "j").
		Edge("b", "j").
		Edge("j", core.EndSentinel).
		Build()

	graph, _, err := compiler.Compile(desc, agentResolver())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, graph.JoinWaitFor["j"])
}

func TestCompile_UnresolvedAgentFails(t *testing.T) {
	desc := testutil.NewGraphBuilder().
		EntryPoint("a").
		Agent("a", "does-not-exist", nil, "").
		Edge("a", core.EndSentinel).
		Build()

	_, _, err := compiler.Compile(desc, agentResolver())
	var se *compiler.StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "unresolved_agent", se.Kind)
}

func TestCompile_DeduplicatesSharedToolsAcrossAgents(t *testing.T) {
	resolver := testutil.NewStubResolver().
		WithAgent(core.AgentDefinition{ID: "writer", ToolIDs: []string{"search"}}).
		WithAgent(core.AgentDefinition{ID: "reviewer", ToolIDs: []string{"search"}}).
		WithTool(core.ToolDefinition{ID: "search", Name: "search"})

	desc := testutil.NewGraphBuilder().
		EntryPoint("p").
		Parallel("p").
		Agent("a", "writer", nil, "").
		Agent("b", "reviewer", nil, "").
		Join("j", []string{"a", "b"}, core.MergeObject, core.FailurePolicyAny, "").
		Edge("p", "a").
		Edge("p", "b").
		Edge("a", "j").
		Edge("b", "j").
		Edge("j", core.EndSentinel).
		Build()

	graph, _, err := compiler.Compile(desc, resolver)
	require.NoError(t, err)
	assert.Len(t, graph.ResolvedTools, 1)
}
