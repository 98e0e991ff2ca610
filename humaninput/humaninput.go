// Package humaninput manages the pause/resume contract around human seats
// in a workflow: building the context a paused execution exposes to callers
// and recording the audited input that resumes it.
package humaninput

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentgraph/core"
)

// PauseContext describes what a paused execution is waiting for, derived
// from the human node and the input that reached it.
func PauseContext(node core.Node, input core.AggregatedInput) core.HumanInputContext {
	return core.HumanInputContext{
		NodeID:       node.ID,
		AgentName:    node.Name(),
		InputSources: append([]string(nil), input.Sources...),
		InputCount:   input.Count,
		PrimaryInput: input.Primary,
		RequestedAt:  time.Now().UTC(),
	}
}

// Pause transitions a running execution into the waiting state and attaches
// the context callers poll for.
func Pause(exec *core.Execution, hctx core.HumanInputContext) {
	status := core.StatusAwaitingHumanInput
	if hctx.Reflection {
		status = core.StatusPausedForReflection
	}
	exec.Status = status
	exec.HumanInput = &hctx
	exec.UpdatedAt = time.Now().UTC()
}

// ApplyResume validates that the execution is paused, records the audited
// interaction, and appends the human's words to the transcript. It returns
// the pause context the input answers.
func ApplyResume(exec *core.Execution, input string, seq *core.Sequencer) (core.HumanInputContext, error) {
	if !exec.Status.Paused() {
		return core.HumanInputContext{}, fmt.Errorf("execution %s is not awaiting human input (status %s)", exec.ID, exec.Status)
	}
	if exec.HumanInput == nil {
		return core.HumanInputContext{}, fmt.Errorf("execution %s has no pending human input context", exec.ID)
	}

	hctx := *exec.HumanInput

	exec.Interactions = append(exec.Interactions, core.Interaction{
		NodeID:       hctx.NodeID,
		AgentName:    hctx.AgentName,
		InputSources: append([]string(nil), hctx.InputSources...),
		Input:        input,
		RequestedAt:  hctx.RequestedAt,
		ReceivedAt:   time.Now().UTC(),
	})

	msg := core.NewMessage(seq.Next(), hctx.AgentName, input, core.MessageTypeHumanInput)
	msg.AgentType = string(core.NodeTypeUserProxy)
	if hctx.Reflection {
		msg.Metadata = map[string]any{"reflection_source": hctx.EdgeSource, "human_feedback": true}
	}
	exec.Messages = append(exec.Messages, msg)

	exec.HumanInput = nil
	exec.Status = core.StatusRunning
	exec.UpdatedAt = time.Now().UTC()

	return hctx, nil
}
