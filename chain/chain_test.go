//
// GPTGram is pleased to support the open source community by making chaincore available.
//
// Copyright (C) 2026 GPTGram.  All rights reserved.
//
// chaincore is licensed under the Apache License Version 2.0.
//
//

package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNodeValidation(t *testing.T) {
	c := NewChain("c1")

	require.NoError(t, c.AddNode(&Node{NodeID: "a", Kind: NodeKindInput}))
	assert.Error(t, c.AddNode(&Node{NodeID: "a", Kind: NodeKindInput}), "duplicate node ID")
	assert.Error(t, c.AddNode(&Node{Kind: NodeKindInput}), "missing node ID")
}

func TestAddNodeDefaults(t *testing.T) {
	c := NewChain("c1")
	require.NoError(t, c.AddNode(&Node{NodeID: "a", Kind: NodeKindAgent, AgentID: "x"}))

	node, ok := c.Node("a")
	require.True(t, ok)
	assert.NotEmpty(t, node.MergePolicy)
	assert.Equal(t, FailureAbort, node.FailurePolicy)
}

func TestAddEdgeUnknownNodes(t *testing.T) {
	c := NewChain("c1")
	require.NoError(t, c.AddNode(&Node{NodeID: "a", Kind: NodeKindInput}))

	assert.Error(t, c.AddEdge("a", "missing"))
	assert.Error(t, c.AddEdge("missing", "a"))
}

func TestTopologicalOrder(t *testing.T) {
	c := NewChain("c1")
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, c.AddNode(&Node{NodeID: id, Kind: NodeKindTransformer}))
	}
	require.NoError(t, c.AddEdge("a", "b"))
	require.NoError(t, c.AddEdge("a", "c"))
	require.NoError(t, c.AddEdge("b", "d"))
	require.NoError(t, c.AddEdge("c", "d"))

	order, err := c.TopologicalOrder()
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["a"], pos["c"])
	assert.Less(t, pos["b"], pos["d"])
	assert.Less(t, pos["c"], pos["d"])
}

func TestTopologicalOrderCycle(t *testing.T) {
	c := NewChain("c1")
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.AddNode(&Node{NodeID: id, Kind: NodeKindTransformer}))
	}
	require.NoError(t, c.AddEdge("a", "b"))
	require.NoError(t, c.AddEdge("b", "c"))
	require.NoError(t, c.AddEdge("c", "a"))

	_, err := c.TopologicalOrder()
	assert.ErrorIs(t, err, ErrCyclicDependency)
}

func TestUpstreamEdgesDeclarationOrder(t *testing.T) {
	c := NewChain("c1")
	for _, id := range []string{"x", "y", "z"} {
		require.NoError(t, c.AddNode(&Node{NodeID: id, Kind: NodeKindTransformer}))
	}
	require.NoError(t, c.AddEdge("y", "z"))
	require.NoError(t, c.AddEdge("x", "z"))

	edges := c.UpstreamEdges("z")
	require.Len(t, edges, 2)
	assert.Equal(t, "y", edges[0].From, "declaration order preserved")
	assert.Equal(t, "x", edges[1].From)
}

func TestTerminalNodes(t *testing.T) {
	c := NewChain("c1")
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.AddNode(&Node{NodeID: id, Kind: NodeKindTransformer}))
	}
	require.NoError(t, c.AddEdge("a", "b"))

	assert.Equal(t, []string{"b", "c"}, c.TerminalNodes())
}

func TestRunTerminalInvariants(t *testing.T) {
	run := NewRun("c1", []string{"a"})
	assert.Equal(t, RunStatusPending, run.Status)
	assert.True(t, run.CompletedAt.IsZero())

	run.start()
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.True(t, run.CompletedAt.IsZero(), "CompletedAt only set on terminal status")

	run.finish(RunStatusCompleted)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.False(t, run.CompletedAt.IsZero())
	assert.False(t, run.CompletedAt.Before(run.StartedAt))
}

func TestRunSnapshotIsolated(t *testing.T) {
	run := NewRun("c1", []string{"a"})
	run.setNodeOutput("a", map[string]any{"x": 1})

	snap := run.Snapshot()
	run.setNodeState("a", NodeStateCompleted)
	run.addCost(5)

	assert.NotEqual(t, run.NodeStates["a"], snap.NodeStates["a"])
	assert.Zero(t, snap.TotalCostUnits)
}
