package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
)

func linearGraph() *core.Graph {
	return &core.Graph{
		Nodes: []core.Node{
			{ID: "start", Type: core.NodeTypeStart, Data: core.NodeConfig{Prompt: "hello"}},
			{ID: "a", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Writer"}},
			{ID: "b", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Editor"}},
			{ID: "end", Type: core.NodeTypeEnd},
		},
		Edges: []core.Edge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "b"},
			{Source: "b", Target: "end"},
		},
	}
}

func TestParse(t *testing.T) {
	data := []byte(`{
		"nodes": [
			{"id": "start", "type": "StartNode", "data": {"prompt": "hi"}},
			{"id": "a", "type": "AssistantAgent", "data": {"name": "Writer"}},
			{"id": "end", "type": "EndNode", "data": {}}
		],
		"edges": [
			{"source": "start", "target": "a"},
			{"source": "a", "target": "end"}
		]
	}`)

	g, err := Parse(data)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Edges, 2)

	n, ok := g.NodeByID("a")
	require.True(t, ok)
	assert.Equal(t, "Writer", n.Name())
}

func TestParseRejectsUnknownNodeType(t *testing.T) {
	data := []byte(`{"nodes": [{"id": "x", "type": "Mystery"}], "edges": []}`)

	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid workflow graph")
}

func TestParseRejectsDanglingEdge(t *testing.T) {
	data := []byte(`{
		"nodes": [{"id": "start", "type": "StartNode"}],
		"edges": [{"source": "start", "target": "ghost"}]
	}`)

	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target")
}

func TestParseLenientDropsDanglingEdges(t *testing.T) {
	data := []byte(`{
		"nodes": [{"id": "start", "type": "StartNode"}],
		"edges": [{"source": "start", "target": "ghost"}]
	}`)

	g, err := ParseLenient(data)
	require.NoError(t, err)
	assert.Empty(t, g.Edges)
}

func TestValidateRejectsCycle(t *testing.T) {
	g := &core.Graph{
		Nodes: []core.Node{
			{ID: "a", Type: core.NodeTypeAssistant},
			{ID: "b", Type: core.NodeTypeAssistant},
		},
		Edges: []core.Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
	}

	err := Validate(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidateAllowsSelfReflection(t *testing.T) {
	g := &core.Graph{
		Nodes: []core.Node{
			{ID: "a", Type: core.NodeTypeAssistant},
		},
		Edges: []core.Edge{
			{Source: "a", Target: "a", Type: core.EdgeTypeReflection},
		},
	}

	assert.NoError(t, Validate(g))
}

func TestExecutionOrderLinear(t *testing.T) {
	order := ExecutionOrder(linearGraph())
	assert.Equal(t, []string{"start", "a", "b", "end"}, order)
}

func TestExecutionOrderDeterministicTieBreak(t *testing.T) {
	g := &core.Graph{
		Nodes: []core.Node{
			{ID: "start", Type: core.NodeTypeStart},
			{ID: "beta", Type: core.NodeTypeAssistant},
			{ID: "alpha", Type: core.NodeTypeAssistant},
		},
		Edges: []core.Edge{
			{Source: "start", Target: "beta"},
			{Source: "start", Target: "alpha"},
		},
	}

	for i := 0; i < 20; i++ {
		order := ExecutionOrder(g)
		assert.Equal(t, []string{"start", "alpha", "beta"}, order)
	}
}

func TestExecutionOrderDefersEndNode(t *testing.T) {
	g := &core.Graph{
		Nodes: []core.Node{
			{ID: "end", Type: core.NodeTypeEnd},
			{ID: "start", Type: core.NodeTypeStart},
			{ID: "a", Type: core.NodeTypeAssistant},
		},
		Edges: []core.Edge{
			{Source: "start", Target: "end"},
			{Source: "start", Target: "a"},
		},
	}

	order := ExecutionOrder(g)
	assert.Equal(t, "end", order[len(order)-1])
}

func TestExecutionOrderExcludesReflectionOnlyTargets(t *testing.T) {
	g := &core.Graph{
		Nodes: []core.Node{
			{ID: "start", Type: core.NodeTypeStart},
			{ID: "a", Type: core.NodeTypeAssistant},
			{ID: "critic", Type: core.NodeTypeAssistant},
		},
		Edges: []core.Edge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "critic", Type: core.EdgeTypeReflection},
		},
	}

	order := ExecutionOrder(g)
	assert.Equal(t, []string{"start", "a"}, order)
	assert.NotContains(t, order, "critic")
}

func TestExecutionOrderExcludesReflectionTargetWithOutgoingDefault(t *testing.T) {
	// The critic only receives reflection edges; a default edge leaving it
	// must not pull it back into the schedule.
	g := &core.Graph{
		Nodes: []core.Node{
			{ID: "start", Type: core.NodeTypeStart},
			{ID: "a", Type: core.NodeTypeAssistant},
			{ID: "critic", Type: core.NodeTypeAssistant},
			{ID: "sink", Type: core.NodeTypeAssistant},
		},
		Edges: []core.Edge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "critic", Type: core.EdgeTypeReflection},
			{Source: "critic", Target: "sink"},
		},
	}

	order := ExecutionOrder(g)
	assert.NotContains(t, order, "critic")
	assert.Contains(t, order, "sink")
}

func TestExecutionOrderCycleFallback(t *testing.T) {
	g := &core.Graph{
		Nodes: []core.Node{
			{ID: "start", Type: core.NodeTypeStart},
			{ID: "a", Type: core.NodeTypeAssistant},
			{ID: "b", Type: core.NodeTypeAssistant},
		},
		Edges: []core.Edge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
	}

	order := ExecutionOrder(g)
	assert.Len(t, order, 3)
	assert.Equal(t, "start", order[0])
	assert.ElementsMatch(t, []string{"a", "b"}, order[1:])
}

func TestExecutionOrderSeedsFromStartWhenFullyCyclic(t *testing.T) {
	g := &core.Graph{
		Nodes: []core.Node{
			{ID: "a", Type: core.NodeTypeAssistant},
			{ID: "start", Type: core.NodeTypeStart},
		},
		Edges: []core.Edge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "start"},
		},
	}

	order := ExecutionOrder(g)
	assert.Equal(t, []string{"start", "a"}, order)
}

func TestInputsTo(t *testing.T) {
	g := linearGraph()
	assert.Equal(t, []string{"a"}, InputsTo(g, "b"))
	assert.Empty(t, InputsTo(g, "start"))
}

func TestInputsToIncludesReflectionEdges(t *testing.T) {
	g := &core.Graph{
		Nodes: []core.Node{
			{ID: "a", Type: core.NodeTypeAssistant},
			{ID: "b", Type: core.NodeTypeAssistant},
			{ID: "c", Type: core.NodeTypeAssistant},
		},
		Edges: []core.Edge{
			{Source: "a", Target: "c"},
			{Source: "b", Target: "c", Type: core.EdgeTypeReflection},
		},
	}

	assert.Equal(t, []string{"a", "b"}, InputsTo(g, "c"))
}

func TestDelegatesOf(t *testing.T) {
	g := &core.Graph{
		Nodes: []core.Node{
			{ID: "mgr", Type: core.NodeTypeGroupChatManager, Data: core.NodeConfig{Name: "Manager"}},
			{ID: "d1", Type: core.NodeTypeDelegate, Data: core.NodeConfig{Name: "Researcher"}},
			{ID: "d2", Type: core.NodeTypeDelegate, Data: core.NodeConfig{Name: "Critic"}},
			{ID: "other", Type: core.NodeTypeAssistant},
		},
		Edges: []core.Edge{
			{Source: "mgr", Target: "d1"},
			{Source: "d2", Target: "mgr"},
			{Source: "mgr", Target: "other"},
		},
	}

	delegates, err := DelegatesOf(g, "mgr")
	require.NoError(t, err)
	require.Len(t, delegates, 2)
	assert.Equal(t, "d1", delegates[0].ID)
	assert.Equal(t, "d2", delegates[1].ID)
}

func TestDelegatesOfNoneFails(t *testing.T) {
	g := &core.Graph{
		Nodes: []core.Node{
			{ID: "mgr", Type: core.NodeTypeGroupChatManager},
		},
	}

	_, err := DelegatesOf(g, "mgr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no delegate agents")
}
