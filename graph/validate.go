package graph

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/hupe1980/agentgraph/core"
)

// graphSchema is the JSON Schema for the designer wire format. It guards
// structure only; semantic rules live in Validate.
const graphSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {
            "type": "string",
            "enum": ["StartNode", "AssistantAgent", "UserProxyAgent", "GroupChatManager", "DelegateAgent", "EndNode"]
          },
          "data": {"type": "object"}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1},
          "type": {"type": "string", "enum": ["default", "reflection", ""]},
          "data": {"type": "object"}
        }
      }
    }
  }
}`

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateSchema checks the raw JSON against the graph schema before any
// decoding happens.
func ValidateSchema(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(graphSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return fmt.Errorf("invalid workflow graph: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Validate applies the semantic rules a runnable graph must satisfy:
// struct-level field constraints, unique node ids, edges referencing known
// nodes, reflection edges originating from agent nodes, and acyclic default
// edges.
func Validate(g *core.Graph) error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("invalid workflow graph: %w", err)
	}

	ids := make(map[string]core.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		ids[n.ID] = n
	}

	for _, e := range g.Edges {
		if _, ok := ids[e.Source]; !ok {
			return fmt.Errorf("edge references unknown source node %q", e.Source)
		}
		if _, ok := ids[e.Target]; !ok {
			return fmt.Errorf("edge references unknown target node %q", e.Target)
		}
		if e.IsReflection() {
			src := ids[e.Source]
			if !src.Type.IsAgent() {
				return fmt.Errorf("reflection edge source %q must be an agent node, got %s", e.Source, src.Type)
			}
		}
	}

	if cycle := findCycle(g); cycle != nil {
		return fmt.Errorf("workflow graph contains a dependency cycle: %s", strings.Join(cycle, " -> "))
	}

	return nil
}

// findCycle returns one cycle over default edges, or nil. Self-loop
// reflection edges never participate.
func findCycle(g *core.Graph) []string {
	adj := map[string][]string{}
	for _, e := range g.Edges {
		if e.IsReflection() {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var stack []string

	var dfs func(id string) []string
	dfs = func(id string) []string {
		color[id] = gray
		stack = append(stack, id)
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				for i, v := range stack {
					if v == next {
						return append(append([]string(nil), stack[i:]...), next)
					}
				}
			case white:
				if c := dfs(next); c != nil {
					return c
				}
			}
		}
		color[id] = black
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, n := range g.Nodes {
		if color[n.ID] == white {
			if c := dfs(n.ID); c != nil {
				return c
			}
		}
	}
	return nil
}
