// Package graph parses and validates workflow graphs and computes the
// deterministic execution order for a run.
package graph

import (
	"fmt"
	"sort"

	"github.com/hupe1980/agentgraph/core"
)

// Parse decodes and validates a workflow graph from its JSON form. It
// applies both schema validation and semantic checks; use ParseLenient to
// skip the semantic layer.
func Parse(data []byte) (*core.Graph, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	g, err := core.UnmarshalGraph(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

// ParseLenient decodes a graph without semantic validation. Dangling edges
// are dropped rather than rejected, matching the permissive behavior of the
// visual designer's autosave format.
func ParseLenient(data []byte) (*core.Graph, error) {
	g, err := core.UnmarshalGraph(data)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		known[n.ID] = true
	}
	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if known[e.Source] && known[e.Target] {
			kept = append(kept, e)
		}
	}
	g.Edges = kept
	return g, nil
}

// InputsTo returns the ids of all nodes feeding the given node, reflection
// edges included, in edge declaration order. The input count decides the
// single- vs multi-input aggregation path, so both edge kinds contribute.
func InputsTo(g *core.Graph, nodeID string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.Target == nodeID {
			out = append(out, e.Source)
		}
	}
	return out
}

// OutputsFrom returns the ids of nodes the given node feeds through default
// edges, in edge declaration order.
func OutputsFrom(g *core.Graph, nodeID string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.Source == nodeID && !e.IsReflection() {
			out = append(out, e.Target)
		}
	}
	return out
}

// ReflectionEdges returns all reflection edges in declaration order.
func ReflectionEdges(g *core.Graph) []core.Edge {
	var out []core.Edge
	for _, e := range g.Edges {
		if e.IsReflection() {
			out = append(out, e)
		}
	}
	return out
}

// ExecutionOrder computes the order nodes run in. It is a topological sort
// with deterministic tie-breaks: whenever several nodes are ready, the one
// with the lexicographically smallest id runs first. End nodes are deferred
// to the tail regardless of dependencies, and nodes that only appear as
// reflection targets (no default edges touching them) are excluded from the
// main flow. When no node has zero in-degree at all, the sort is seeded
// from the start node (or the first declared node) so cyclic graphs still
// make progress; nodes a cycle leaves unreachable are force-appended in
// declaration order so a malformed graph still terminates.
func ExecutionOrder(g *core.Graph) []string {
	reflectionOnly := reflectionOnlyTargets(g)

	indegree := map[string]int{}
	successors := map[string][]string{}
	for _, n := range g.Nodes {
		if reflectionOnly[n.ID] {
			continue
		}
		indegree[n.ID] = 0
	}
	for _, e := range g.Edges {
		if e.IsReflection() {
			continue
		}
		if _, ok := indegree[e.Source]; !ok {
			continue
		}
		if _, ok := indegree[e.Target]; !ok {
			continue
		}
		successors[e.Source] = append(successors[e.Source], e.Target)
		indegree[e.Target]++
	}

	endNodes := map[string]bool{}
	for _, n := range g.Nodes {
		if n.Type == core.NodeTypeEnd {
			endNodes[n.ID] = true
		}
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 && !endNodes[id] {
			ready = append(ready, id)
		}
	}
	if len(ready) == 0 {
		if seed, ok := seedNode(g, indegree, endNodes); ok {
			ready = append(ready, seed)
		}
	}

	var order []string
	visited := map[string]bool{}
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		order = append(order, id)
		for _, succ := range successors[id] {
			indegree[succ]--
			if indegree[succ] == 0 && !endNodes[succ] && !visited[succ] {
				ready = append(ready, succ)
			}
		}
	}

	// Cycle fallback: append whatever remains (save end nodes) in
	// declaration order.
	for _, n := range g.Nodes {
		if _, ok := indegree[n.ID]; ok && !visited[n.ID] && !endNodes[n.ID] {
			order = append(order, n.ID)
		}
	}

	var tail []string
	for id := range endNodes {
		if _, ok := indegree[id]; ok {
			tail = append(tail, id)
		}
	}
	sort.Strings(tail)
	order = append(order, tail...)

	return order
}

// seedNode picks the entry point for a graph whose default edges leave no
// node with zero in-degree: the start node when present, otherwise the
// first declared schedulable node.
func seedNode(g *core.Graph, indegree map[string]int, endNodes map[string]bool) (string, bool) {
	for _, n := range g.Nodes {
		if _, ok := indegree[n.ID]; ok && n.Type == core.NodeTypeStart {
			return n.ID, true
		}
	}
	for _, n := range g.Nodes {
		if _, ok := indegree[n.ID]; ok && !endNodes[n.ID] {
			return n.ID, true
		}
	}
	return "", false
}

// reflectionOnlyTargets returns the set of node ids whose incoming edges
// are all reflection edges. Such nodes run as part of a reflection
// exchange, not as scheduled steps, no matter what they feed downstream.
func reflectionOnlyTargets(g *core.Graph) map[string]bool {
	defaultIncoming := map[string]bool{}
	reflectionIncoming := map[string]bool{}
	for _, e := range g.Edges {
		if e.IsReflection() {
			reflectionIncoming[e.Target] = true
		} else {
			defaultIncoming[e.Target] = true
		}
	}
	out := map[string]bool{}
	for _, n := range g.Nodes {
		if reflectionIncoming[n.ID] && !defaultIncoming[n.ID] {
			out[n.ID] = true
		}
	}
	return out
}

// DelegatesOf resolves the delegate agents attached to a group chat
// manager. Delegates connect via default edges in either direction.
func DelegatesOf(g *core.Graph, managerID string) ([]core.Node, error) {
	seen := map[string]bool{}
	var out []core.Node
	add := func(id string) {
		if seen[id] {
			return
		}
		n, ok := g.NodeByID(id)
		if ok && n.Type == core.NodeTypeDelegate {
			seen[id] = true
			out = append(out, n)
		}
	}
	for _, e := range g.Edges {
		if e.IsReflection() {
			continue
		}
		if e.Source == managerID {
			add(e.Target)
		}
		if e.Target == managerID {
			add(e.Source)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("group chat manager %s has no delegate agents connected", managerID)
	}
	return out, nil
}
