package testutil

import (
	"github.com/hupe1980/agentgraph/core"
)

// GraphBuilder helps construct workflow graphs with fluent chaining for tests.
// Example:
//
//	g := NewGraphBuilder().
//		Start("start", "the prompt").
//		Assistant("writer", "Writer").
//		End("end").
//		Chain("start", "writer", "end").
//		Build()
type GraphBuilder struct {
	nodes []core.Node
	edges []core.Edge
}

// NewGraphBuilder creates an empty builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{}
}

// Node appends an arbitrary node (chainable).
func (b *GraphBuilder) Node(n core.Node) *GraphBuilder {
	b.nodes = append(b.nodes, n)
	return b
}

// Start appends a start node with the given prompt (chainable).
func (b *GraphBuilder) Start(id, prompt string) *GraphBuilder {
	return b.Node(core.Node{ID: id, Type: core.NodeTypeStart, Data: core.NodeConfig{Name: "Start", Prompt: prompt}})
}

// Assistant appends an assistant agent node (chainable).
func (b *GraphBuilder) Assistant(id, name string) *GraphBuilder {
	return b.Node(core.Node{ID: id, Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: name}})
}

// UserProxy appends a human seat node (chainable).
func (b *GraphBuilder) UserProxy(id, name string) *GraphBuilder {
	return b.Node(core.Node{ID: id, Type: core.NodeTypeUserProxy, Data: core.NodeConfig{Name: name}})
}

// Manager appends a group chat manager node (chainable).
func (b *GraphBuilder) Manager(id, name string) *GraphBuilder {
	return b.Node(core.Node{ID: id, Type: core.NodeTypeGroupChatManager, Data: core.NodeConfig{Name: name}})
}

// Delegate appends a delegate agent node (chainable).
func (b *GraphBuilder) Delegate(id, name, termination string) *GraphBuilder {
	return b.Node(core.Node{ID: id, Type: core.NodeTypeDelegate, Data: core.NodeConfig{Name: name, TerminationCondition: termination}})
}

// End appends an end node (chainable).
func (b *GraphBuilder) End(id string) *GraphBuilder {
	return b.Node(core.Node{ID: id, Type: core.NodeTypeEnd, Data: core.NodeConfig{Name: "End"}})
}

// Edge appends a default edge (chainable).
func (b *GraphBuilder) Edge(source, target string) *GraphBuilder {
	b.edges = append(b.edges, core.Edge{Source: source, Target: target})
	return b
}

// Reflection appends a reflection edge (chainable).
func (b *GraphBuilder) Reflection(source, target string, maxIterations int) *GraphBuilder {
	b.edges = append(b.edges, core.Edge{
		Source: source, Target: target, Type: core.EdgeTypeReflection,
		Data: core.EdgeConfig{MaxIterations: maxIterations},
	})
	return b
}

// Chain appends default edges linking the ids in order (chainable).
func (b *GraphBuilder) Chain(ids ...string) *GraphBuilder {
	for i := 0; i+1 < len(ids); i++ {
		b.Edge(ids[i], ids[i+1])
	}
	return b
}

// Build returns the assembled graph.
func (b *GraphBuilder) Build() *core.Graph {
	return &core.Graph{Nodes: b.nodes, Edges: b.edges}
}
