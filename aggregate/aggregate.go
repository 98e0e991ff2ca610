// Package aggregate combines the outputs of a node's upstream dependencies
// into a single prompt-ready input, ranking sources so the workflow's
// originating prompt always wins the primary slot.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
)

// summaryLimit bounds per-source previews recorded alongside the input.
const summaryLimit = 100

// sourcePriority ranks upstream node types. Lower runs first: the start
// node's prompt outranks agent replies, which outrank everything else.
func sourcePriority(t core.NodeType) int {
	switch t {
	case core.NodeTypeStart:
		return 0
	case core.NodeTypeAssistant, core.NodeTypeUserProxy:
		return 1
	default:
		return 2
	}
}

// Collect gathers the outputs feeding the given node and ranks them. A
// source that has not produced output yet contributes a placeholder so the
// input count still reflects the graph shape.
func Collect(g *core.Graph, exec *core.Execution, nodeID string) core.AggregatedInput {
	sourceIDs := graph.InputsTo(g, nodeID)

	type ranked struct {
		name     string
		nodeType core.NodeType
		output   string
		priority int
		index    int
	}
	entries := make([]ranked, 0, len(sourceIDs))
	for i, id := range sourceIDs {
		n, ok := g.NodeByID(id)
		if !ok {
			continue
		}
		output, produced := exec.NodeOutputs[id]
		if !produced || output == "" {
			output = fmt.Sprintf("[No output from %s]", n.Name())
		}
		entries = append(entries, ranked{
			name:     n.Name(),
			nodeType: n.Type,
			output:   output,
			priority: sourcePriority(n.Type),
			index:    i,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].index < entries[j].index
	})

	in := core.AggregatedInput{
		Count:     len(entries),
		Summaries: map[string]string{},
	}
	for _, e := range entries {
		in.Sources = append(in.Sources, e.name)
		in.Inputs = append(in.Inputs, core.SourceInput{
			Name:     e.name,
			Type:     e.nodeType,
			Output:   e.output,
			Priority: e.priority,
		})
		in.Summaries[e.name] = Truncate(e.output, summaryLimit)
	}
	if len(entries) > 0 {
		in.Primary = entries[0].output
	}
	return in
}

// FormatForPrompt renders the aggregated input for inclusion in a prompt.
// A single-source input passes through untouched; multiple sources render
// as a primary block followed by per-source sections.
func FormatForPrompt(in core.AggregatedInput) string {
	if in.Count <= 1 {
		return in.Primary
	}
	var b strings.Builder
	b.WriteString("PRIMARY INPUT:\n")
	b.WriteString(in.Primary)
	b.WriteString("\n\nADDITIONAL INPUTS:\n")
	for _, src := range in.Inputs[1:] {
		fmt.Fprintf(&b, "\n--- From %s ---\n%s\n", src.Name, src.Output)
	}
	return b.String()
}

// Truncate shortens s to at most limit runes, appending an ellipsis when
// anything was cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
