package engine

import (
	"strings"

	"github.com/hupe1980/agentgraph/aggregate"
	"github.com/hupe1980/agentgraph/core"
)

// defaultStartPrompt replaces placeholder prompts left in by workflow
// templates so agents never chew on test fixtures.
const defaultStartPrompt = "Please provide information about the requested topic."

// placeholderPrompts are template leftovers the start node sanitizes away.
var placeholderPrompts = map[string]bool{
	"test query":                     true,
	"test query for document search": true,
	"sample query":                   true,
	"example query":                  true,
}

// sanitizeStartPrompt returns the prompt to seed the run with and whether a
// placeholder was replaced.
func sanitizeStartPrompt(prompt string) (string, bool) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return defaultStartPrompt, true
	}
	if placeholderPrompts[strings.ToLower(trimmed)] {
		return defaultStartPrompt, true
	}
	return trimmed, false
}

// craftAgentPrompt assembles the prompt one agent node sends to its model:
// optional instructions, the aggregated upstream input, and optional
// document context.
func craftAgentPrompt(node core.Node, input core.AggregatedInput, docContext string) string {
	var b strings.Builder
	if node.Data.Instructions != "" {
		b.WriteString(node.Data.Instructions)
		b.WriteString("\n\n")
	}
	b.WriteString("INPUT:\n")
	b.WriteString(aggregate.FormatForPrompt(input))
	if docContext != "" {
		b.WriteString("\n\n")
		b.WriteString(docContext)
	}
	return b.String()
}

// docQueryTail bounds how much recent conversation feeds a retrieval query.
const docQueryTail = 5

// retrievalQuery derives the search query for a doc-aware node. Nodes fed
// by several sources search over the combined input; single-source nodes
// search over the recent conversation so follow-up turns stay on topic.
func retrievalQuery(exec *core.Execution, input core.AggregatedInput) string {
	if input.Count > 1 {
		var parts []string
		for _, src := range input.Inputs {
			parts = append(parts, src.Output)
		}
		return strings.Join(parts, "\n")
	}

	start := len(exec.Messages) - docQueryTail
	if start < 0 {
		start = 0
	}
	var parts []string
	for _, m := range exec.Messages[start:] {
		parts = append(parts, m.Content)
	}
	if len(parts) == 0 {
		return input.Primary
	}
	return strings.Join(parts, "\n")
}
