package core

import (
	"encoding/json"
	"fmt"
)

// NodeType categorizes a workflow node. The values match the wire format
// produced by the visual workflow designer.
type NodeType string

const (
	// NodeTypeStart seeds the conversation with the initial prompt.
	NodeTypeStart NodeType = "StartNode"
	// NodeTypeAssistant is a plain LLM-backed agent.
	NodeTypeAssistant NodeType = "AssistantAgent"
	// NodeTypeUserProxy represents a human seat; it may pause the run for input.
	NodeTypeUserProxy NodeType = "UserProxyAgent"
	// NodeTypeGroupChatManager coordinates rounds of delegate agents.
	NodeTypeGroupChatManager NodeType = "GroupChatManager"
	// NodeTypeDelegate only executes under a GroupChatManager.
	NodeTypeDelegate NodeType = "DelegateAgent"
	// NodeTypeEnd closes the conversation; always scheduled last.
	NodeTypeEnd NodeType = "EndNode"
)

// IsAgent reports whether the node type is executed through a model call
// (directly or via delegate coordination).
func (t NodeType) IsAgent() bool {
	switch t {
	case NodeTypeAssistant, NodeTypeUserProxy, NodeTypeGroupChatManager, NodeTypeDelegate:
		return true
	default:
		return false
	}
}

// EdgeType distinguishes dependency edges from reflection links.
type EdgeType string

const (
	// EdgeTypeDefault is a scheduling dependency: source runs before target.
	EdgeTypeDefault EdgeType = "default"
	// EdgeTypeReflection routes an agent's output to a reviewer outside the
	// main topological flow.
	EdgeTypeReflection EdgeType = "reflection"
)

// NodeConfig carries the per-node agent configuration from the graph JSON.
// All fields are optional in the wire format; zero values select defaults.
type NodeConfig struct {
	Name          string `json:"name,omitempty"`
	Prompt        string `json:"prompt,omitempty"`  // StartNode initial prompt
	Message       string `json:"message,omitempty"` // EndNode closing message
	SystemMessage string `json:"system_message,omitempty"`
	Instructions  string `json:"instructions,omitempty"`

	Provider    string   `json:"llm_provider,omitempty"`
	Model       string   `json:"llm_model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`

	// UserProxyAgent: absent means true, matching the designer default.
	RequireHumanInput *bool `json:"require_human_input,omitempty"`

	// GroupChatManager configuration.
	MaxRounds           int    `json:"max_rounds,omitempty" validate:"omitempty,gte=0"`
	TerminationStrategy string `json:"termination_strategy,omitempty" validate:"omitempty,oneof=all_delegates_complete any_delegate_complete max_iterations_reached"`

	// DelegateAgent configuration. TerminationCondition has no default: an
	// empty value disables phrase-based termination entirely.
	NumberOfIterations   int    `json:"number_of_iterations,omitempty" validate:"omitempty,gt=0"`
	TerminationCondition string `json:"termination_condition,omitempty"`

	// Document retrieval enrichment.
	DocAware     bool   `json:"doc_aware,omitempty"`
	SearchMethod string `json:"search_method,omitempty"`
}

// HumanInputRequired resolves the designer default: a UserProxyAgent pauses
// for human input unless the flag is explicitly false.
func (c NodeConfig) HumanInputRequired() bool {
	return c.RequireHumanInput == nil || *c.RequireHumanInput
}

// TemperatureOr returns the configured temperature or the given default.
func (c NodeConfig) TemperatureOr(def float64) float64 {
	if c.Temperature != nil {
		return *c.Temperature
	}
	return def
}

// Node is one unit of work in the workflow graph.
type Node struct {
	ID   string     `json:"id" validate:"required"`
	Type NodeType   `json:"type" validate:"required"`
	Data NodeConfig `json:"data"`
}

// Name returns the display name, falling back to a derived identifier so log
// lines and transcripts never show an empty author.
func (n Node) Name() string {
	if n.Data.Name != "" {
		return n.Data.Name
	}
	return fmt.Sprintf("Node_%s", n.ID)
}

// EdgeConfig carries optional per-edge settings, used by reflection edges.
type EdgeConfig struct {
	// MaxIterations bounds a reflection loop. Zero selects the per-kind
	// default (2 for self-reflection, 1 for cross-agent reflection).
	MaxIterations    int    `json:"max_iterations,omitempty" validate:"omitempty,gt=0"`
	ReflectionPrompt string `json:"reflection_prompt,omitempty"`
}

// Edge is a directed dependency or reflection link between two nodes.
type Edge struct {
	Source string     `json:"source" validate:"required"`
	Target string     `json:"target" validate:"required"`
	Type   EdgeType   `json:"type,omitempty"`
	Data   EdgeConfig `json:"data,omitempty"`
}

// IsReflection reports whether the edge is a reflection link.
func (e Edge) IsReflection() bool { return e.Type == EdgeTypeReflection }

// Graph is the immutable declarative input to one workflow run.
type Graph struct {
	Nodes []Node `json:"nodes" validate:"required,min=1,dive"`
	Edges []Edge `json:"edges" validate:"dive"`
}

// NodeByID returns the node with the given id, if present.
func (g *Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodesOfType returns all nodes with the given type in declaration order.
func (g *Graph) NodesOfType(t NodeType) []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// UnmarshalGraph decodes the designer JSON format into a Graph.
func UnmarshalGraph(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode workflow graph: %w", err)
	}
	return &g, nil
}
