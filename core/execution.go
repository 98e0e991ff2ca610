package core

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a workflow execution.
type Status string

const (
	StatusRunning             Status = "running"
	StatusAwaitingHumanInput  Status = "awaiting_human_input"
	StatusPausedForReflection Status = "paused_for_reflection_input"
	StatusStopped             Status = "stopped"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
)

// Terminal reports whether the status admits no further progress.
func (s Status) Terminal() bool {
	switch s {
	case StatusStopped, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Paused reports whether the execution is waiting on human input.
func (s Status) Paused() bool {
	return s == StatusAwaitingHumanInput || s == StatusPausedForReflection
}

// SourceInput is one upstream contribution to a node's input.
type SourceInput struct {
	Name     string   `json:"name"`
	Type     NodeType `json:"type,omitempty"`
	Output   string   `json:"output"`
	Priority int      `json:"priority"`
}

// AggregatedInput is the combined upstream output fed to a node, with
// contributions ordered by source priority.
type AggregatedInput struct {
	// Primary is the highest-priority upstream output, raw.
	Primary string `json:"primary"`
	// Inputs lists all contributions in priority order.
	Inputs []SourceInput `json:"inputs,omitempty"`
	// Sources names the upstream agents that contributed, in priority order.
	Sources []string `json:"sources"`
	// Count is the number of contributing inputs.
	Count int `json:"count"`
	// Summaries holds per-source truncated previews keyed by agent name.
	Summaries map[string]string `json:"summaries,omitempty"`
}

// HumanInputContext describes what a paused execution is waiting for.
type HumanInputContext struct {
	NodeID       string    `json:"node_id"`
	AgentName    string    `json:"agent_name"`
	InputSources []string  `json:"input_sources"`
	InputCount   int       `json:"input_count"`
	PrimaryInput string    `json:"primary_input"`
	Reflection   bool      `json:"reflection,omitempty"`
	EdgeSource   string    `json:"edge_source,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
}

// Interaction is one audited human touch on a paused execution: which node
// asked, what the sources were, and when the answer arrived.
type Interaction struct {
	NodeID       string    `json:"node_id"`
	AgentName    string    `json:"agent_name"`
	InputSources []string  `json:"input_sources,omitempty"`
	Input        string    `json:"input"`
	RequestedAt  time.Time `json:"requested_at"`
	ReceivedAt   time.Time `json:"received_at"`
}

// DelegateStatus tracks one delegate agent inside a group chat.
type DelegateStatus struct {
	Name                 string `json:"name"`
	Iterations           int    `json:"iterations"`
	MaxIterations        int    `json:"max_iterations"`
	TerminationCondition string `json:"termination_condition,omitempty"`
	Completed            bool   `json:"completed"`
}

// Done reports whether the delegate has finished at least one turn and
// reached its completion condition.
func (d DelegateStatus) Done() bool {
	return d.Completed && d.Iterations > 0
}

// Metrics summarizes resource use of one execution.
type Metrics struct {
	DurationMS        int64    `json:"duration_ms"`
	TotalMessages     int      `json:"total_messages"`
	TotalAgents       int      `json:"total_agents"`
	ModelCalls        int      `json:"model_calls"`
	TotalTokens       int      `json:"total_tokens"`
	AvgResponseTimeMS int64    `json:"avg_response_time_ms"`
	ProvidersUsed     []string `json:"providers_used,omitempty"`
}

// Execution is the persistent record of one workflow run.
type Execution struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	Status     Status `json:"status"`

	Messages []Message `json:"messages"`

	// ConversationHistory is a rendered transcript of Messages, kept in
	// sync on every save.
	ConversationHistory string `json:"conversation_history,omitempty"`

	// ExecutedNodes lists node ids that have completed, in run order.
	ExecutedNodes []string `json:"executed_nodes"`

	// NodeOutputs maps node id to its produced output text.
	NodeOutputs map[string]string `json:"node_outputs"`

	// PendingNodes lists node ids not yet executed, preserving schedule order.
	PendingNodes []string `json:"pending_nodes,omitempty"`

	HumanInput   *HumanInputContext `json:"human_input,omitempty"`
	Interactions []Interaction      `json:"interactions,omitempty"`

	StopRequested bool `json:"stop_requested"`

	Metrics Metrics `json:"metrics"`

	Error string `json:"error,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewExecution returns a running execution record for the given workflow.
func NewExecution(id, workflowID string) *Execution {
	now := time.Now().UTC()
	return &Execution{
		ID:          id,
		WorkflowID:  workflowID,
		Status:      StatusRunning,
		NodeOutputs: map[string]string{},
		StartedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy of the execution record.
func (e *Execution) Clone() *Execution {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Messages = append([]Message(nil), e.Messages...)
	for i, m := range cp.Messages {
		if m.Metadata != nil {
			md := make(map[string]any, len(m.Metadata))
			for k, v := range m.Metadata {
				md[k] = v
			}
			cp.Messages[i].Metadata = md
		}
	}
	cp.ExecutedNodes = append([]string(nil), e.ExecutedNodes...)
	cp.PendingNodes = append([]string(nil), e.PendingNodes...)
	cp.Interactions = append([]Interaction(nil), e.Interactions...)
	for i := range cp.Interactions {
		cp.Interactions[i].InputSources = append([]string(nil), e.Interactions[i].InputSources...)
	}
	cp.NodeOutputs = make(map[string]string, len(e.NodeOutputs))
	for k, v := range e.NodeOutputs {
		cp.NodeOutputs[k] = v
	}
	if e.HumanInput != nil {
		hi := *e.HumanInput
		hi.InputSources = append([]string(nil), e.HumanInput.InputSources...)
		cp.HumanInput = &hi
	}
	cp.Metrics.ProvidersUsed = append([]string(nil), e.Metrics.ProvidersUsed...)
	return &cp
}

// HasExecuted reports whether the node already completed in this run.
func (e *Execution) HasExecuted(nodeID string) bool {
	for _, id := range e.ExecutedNodes {
		if id == nodeID {
			return true
		}
	}
	return false
}

// MarkExecuted records the node as completed with its output.
func (e *Execution) MarkExecuted(nodeID, output string) {
	if !e.HasExecuted(nodeID) {
		e.ExecutedNodes = append(e.ExecutedNodes, nodeID)
	}
	if e.NodeOutputs == nil {
		e.NodeOutputs = map[string]string{}
	}
	e.NodeOutputs[nodeID] = output
	e.UpdatedAt = time.Now().UTC()
}

// Finish stamps a terminal status and the finish time.
func (e *Execution) Finish(s Status) {
	now := time.Now().UTC()
	e.Status = s
	e.UpdatedAt = now
	e.FinishedAt = &now
}

// Result is the caller-facing outcome of Run or Resume.
type Result struct {
	ExecutionID string    `json:"execution_id"`
	WorkflowID  string    `json:"workflow_id"`
	Status      Status    `json:"status"`
	Messages    []Message `json:"messages"`
	Metrics     Metrics   `json:"metrics"`
	// ResultSummary is the content of the last substantive agent message.
	ResultSummary string `json:"result_summary,omitempty"`
	// HumanInput is set when the run paused waiting for input.
	HumanInput *HumanInputContext `json:"human_input,omitempty"`
	Error      string             `json:"error,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

// RenderHistory formats msgs as a plain "Name: content" transcript.
func RenderHistory(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.AgentName)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
