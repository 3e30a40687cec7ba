package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowGraph_IsSaved(t *testing.T) {
	assert.False(t, (&WorkflowGraph{}).IsSaved())
	assert.True(t, (&WorkflowGraph{ID: 1}).IsSaved())
}

func TestWorkflowGraph_NodeIndex(t *testing.T) {
	graph := &WorkflowGraph{
		Nodes: []*WorkflowNode{
			{ID: "a", Type: NodeTypeStart},
			{ID: "b", Type: NodeTypeEmail},
		},
	}

	index := graph.NodeIndex()
	require.Len(t, index, 2)
	assert.Equal(t, NodeTypeStart, index["a"].Type)
	assert.Equal(t, NodeTypeEmail, index["b"].Type)
}

func TestWorkflowGraph_JSONShape(t *testing.T) {
	payload := []byte(`{
		"name": "editor graph",
		"nodes": [
			{"id": "n1", "type": "webhook", "data": {"path": "/in"}, "position": {"x": 120.5, "y": 80}}
		],
		"edges": [
			{"id": "e1", "source": "n1", "target": "n1", "sourceHandle": "out", "targetHandle": "in"}
		],
		"metadata": {"folder": "demos"}
	}`)

	var graph WorkflowGraph
	require.NoError(t, json.Unmarshal(payload, &graph))

	assert.Equal(t, "editor graph", graph.Name)
	assert.Zero(t, graph.ID)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, 120.5, graph.Nodes[0].Position.X)
	assert.Equal(t, "/in", graph.Nodes[0].Data["path"])
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "out", graph.Edges[0].SourceHandle)
	assert.Equal(t, "in", graph.Edges[0].TargetHandle)

	// unsaved graphs omit identity fields on the way back out
	out, err := json.Marshal(&graph)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"id":0`)
	assert.NotContains(t, string(out), `"version"`)
}
