// Package reflection implements post-execution review loops. An agent can
// refine its own output (self-reflection) or route it to another agent for
// feedback before revising (cross-agent reflection). When the reviewer is a
// human seat, the loop pauses the execution instead of calling a model.
package reflection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
)

const (
	// DefaultSelfIterations gives one revision pass by default.
	DefaultSelfIterations = 2
	// DefaultCrossIterations gives one feedback/revision exchange by default.
	DefaultCrossIterations = 1
	// reviewTemperature keeps critique and revision focused rather than
	// exploratory.
	reviewTemperature = 0.5
)

// Result is the outcome of applying reflection to a node's output.
type Result struct {
	// Output is the (possibly revised) node output.
	Output string
	// Messages holds the feedback and revision transcript entries produced.
	Messages []core.Message
	// Pause is set when a human reviewer must weigh in before the loop can
	// continue; Output then still holds the pre-review text.
	Pause *core.HumanInputContext
	// Usage tallies model calls made during the loop.
	Usage core.Usage
}

// Runner drives reflection loops.
type Runner struct {
	resolver *model.Resolver
	logger   logging.Logger
}

// NewRunner wires a runner to its model resolver and logger.
func NewRunner(resolver *model.Resolver, logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Runner{resolver: resolver, logger: logger}
}

// Apply runs every reflection edge originating at the node, threading the
// revised output from one edge into the next. It stops early with a pause
// result when an edge requires human review.
func (r *Runner) Apply(
	ctx context.Context,
	g *core.Graph,
	node core.Node,
	output string,
	seq *core.Sequencer,
) (*Result, error) {
	result := &Result{Output: output}

	for _, edge := range g.Edges {
		if !edge.IsReflection() || edge.Source != node.ID {
			continue
		}

		var (
			step *Result
			err  error
		)
		if edge.Target == node.ID {
			step, err = r.selfReflect(ctx, node, edge, result.Output, seq)
		} else {
			target, ok := g.NodeByID(edge.Target)
			if !ok {
				return nil, fmt.Errorf("reflection edge from %s references unknown node %s", node.ID, edge.Target)
			}
			step, err = r.crossReflect(ctx, node, target, edge, result.Output, seq)
		}
		if err != nil {
			return nil, err
		}

		result.Output = step.Output
		result.Messages = append(result.Messages, step.Messages...)
		result.Usage.Merge(step.Usage)
		if step.Pause != nil {
			result.Pause = step.Pause
			return result, nil
		}
	}

	return result, nil
}

// selfReflect lets the agent refine its own output for up to maxIterations-1
// revision passes.
func (r *Runner) selfReflect(
	ctx context.Context,
	node core.Node,
	edge core.Edge,
	output string,
	seq *core.Sequencer,
) (*Result, error) {
	maxIter := edge.Data.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultSelfIterations
	}

	m := r.resolver.Resolve(node.Data)
	if m == nil {
		return nil, fmt.Errorf("no model available for self-reflection on %s (provider %q)", node.Name(), node.Data.Provider)
	}
	result := &Result{Output: output}
	temp := reviewTemperature

	for i := 1; i < maxIter; i++ {
		prompt := buildSelfPrompt(node, edge, result.Output)
		resp, err := m.Generate(ctx, model.Request{
			System:      node.Data.SystemMessage,
			Prompt:      prompt,
			Temperature: &temp,
			MaxTokens:   node.Data.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("self-reflection failed for %s: %w", node.Name(), err)
		}
		result.Usage.Record(m.Info().Provider, resp.TotalTokens(), resp.ResponseTimeMS)
		result.Output = resp.Text

		msg := core.NewMessage(seq.Next(), node.Name(), resp.Text, core.MessageTypeReflectionRevision)
		msg.AgentType = string(node.Type)
		msg.Metadata = map[string]any{"iteration": i, "reflection_source": node.ID, "reflection_target": node.ID}
		result.Messages = append(result.Messages, msg)
	}

	if len(result.Messages) > 0 {
		final := core.NewMessage(seq.Next(), node.Name(), result.Output, core.MessageTypeReflectionFinal)
		final.AgentType = string(node.Type)
		final.Metadata = map[string]any{"reflection_source": node.ID, "reflection_target": node.ID}
		result.Messages = append(result.Messages, final)
	}

	return result, nil
}

// crossReflect routes output to the target for feedback, then has the source
// revise. A human target pauses the loop instead.
func (r *Runner) crossReflect(
	ctx context.Context,
	source, target core.Node,
	edge core.Edge,
	output string,
	seq *core.Sequencer,
) (*Result, error) {
	if target.Type == core.NodeTypeUserProxy && target.Data.HumanInputRequired() {
		r.logger.Info("reflection paused for human review",
			"source", source.Name(), "reviewer", target.Name())
		return &Result{
			Output: output,
			Pause: &core.HumanInputContext{
				NodeID:       target.ID,
				AgentName:    target.Name(),
				InputSources: []string{source.Name()},
				InputCount:   1,
				PrimaryInput: output,
				Reflection:   true,
				EdgeSource:   source.ID,
				RequestedAt:  time.Now().UTC(),
			},
		}, nil
	}

	maxIter := edge.Data.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultCrossIterations
	}

	targetModel := r.resolver.Resolve(target.Data)
	if targetModel == nil {
		return nil, fmt.Errorf("no model available for reflection reviewer %s (provider %q)", target.Name(), target.Data.Provider)
	}
	sourceModel := r.resolver.Resolve(source.Data)
	if sourceModel == nil {
		return nil, fmt.Errorf("no model available for reflection source %s (provider %q)", source.Name(), source.Data.Provider)
	}
	result := &Result{Output: output}
	temp := reviewTemperature

	for i := 1; i <= maxIter; i++ {
		feedbackPrompt := buildFeedbackPrompt(target, edge, source.Name(), result.Output)
		feedback, err := targetModel.Generate(ctx, model.Request{
			System:      target.Data.SystemMessage,
			Prompt:      feedbackPrompt,
			Temperature: &temp,
			MaxTokens:   target.Data.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("reflection feedback failed for %s: %w", target.Name(), err)
		}
		result.Usage.Record(targetModel.Info().Provider, feedback.TotalTokens(), feedback.ResponseTimeMS)

		fbMsg := core.NewMessage(seq.Next(), target.Name(), feedback.Text, core.MessageTypeReflectionFeedback)
		fbMsg.AgentType = string(target.Type)
		fbMsg.Metadata = map[string]any{"iteration": i, "reflection_source": source.ID, "reflection_target": target.ID}
		result.Messages = append(result.Messages, fbMsg)

		revision, err := sourceModel.Generate(ctx, model.Request{
			System:      source.Data.SystemMessage,
			Prompt:      buildRevisionPrompt(result.Output, feedback.Text),
			Temperature: &temp,
			MaxTokens:   source.Data.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("reflection revision failed for %s: %w", source.Name(), err)
		}
		result.Usage.Record(sourceModel.Info().Provider, revision.TotalTokens(), revision.ResponseTimeMS)
		result.Output = revision.Text

		revMsg := core.NewMessage(seq.Next(), source.Name(), revision.Text, core.MessageTypeReflectionRevision)
		revMsg.AgentType = string(source.Type)
		revMsg.Metadata = map[string]any{"iteration": i, "reflection_source": source.ID, "reflection_target": target.ID}
		result.Messages = append(result.Messages, revMsg)
	}

	final := core.NewMessage(seq.Next(), source.Name(), result.Output, core.MessageTypeReflectionFinal)
	final.AgentType = string(source.Type)
	final.Metadata = map[string]any{"reflection_source": source.ID, "reflection_target": target.ID}
	result.Messages = append(result.Messages, final)

	return result, nil
}

// ResumeWithFeedback finishes a paused cross-agent reflection once the human
// reviewer has provided feedback: the source agent revises its output once.
func (r *Runner) ResumeWithFeedback(
	ctx context.Context,
	source core.Node,
	output, feedback string,
	seq *core.Sequencer,
) (*Result, error) {
	m := r.resolver.Resolve(source.Data)
	if m == nil {
		return nil, fmt.Errorf("no model available for reflection source %s (provider %q)", source.Name(), source.Data.Provider)
	}
	temp := reviewTemperature

	resp, err := m.Generate(ctx, model.Request{
		System:      source.Data.SystemMessage,
		Prompt:      buildRevisionPrompt(output, feedback),
		Temperature: &temp,
		MaxTokens:   source.Data.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("reflection revision failed for %s: %w", source.Name(), err)
	}

	result := &Result{Output: resp.Text}
	result.Usage.Record(m.Info().Provider, resp.TotalTokens(), resp.ResponseTimeMS)

	revMsg := core.NewMessage(seq.Next(), source.Name(), resp.Text, core.MessageTypeReflectionRevision)
	revMsg.AgentType = string(source.Type)
	revMsg.Metadata = map[string]any{"reflection_source": source.ID, "human_feedback": true}
	result.Messages = append(result.Messages, revMsg)

	final := core.NewMessage(seq.Next(), source.Name(), resp.Text, core.MessageTypeReflectionFinal)
	final.AgentType = string(source.Type)
	final.Metadata = map[string]any{"reflection_source": source.ID, "human_feedback": true}
	result.Messages = append(result.Messages, final)

	return result, nil
}

func buildSelfPrompt(node core.Node, edge core.Edge, output string) string {
	instruction := edge.Data.ReflectionPrompt
	if instruction == "" {
		instruction = "Review your previous response critically and produce an improved version."
	}
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nYOUR PREVIOUS RESPONSE:\n")
	b.WriteString(output)
	b.WriteString("\n\nRespond with the improved version only.")
	return b.String()
}

func buildFeedbackPrompt(target core.Node, edge core.Edge, sourceName, output string) string {
	instruction := edge.Data.ReflectionPrompt
	if instruction == "" {
		instruction = fmt.Sprintf("Review the following response from %s and give concise, actionable feedback.", sourceName)
	}
	var b strings.Builder
	if target.Data.Instructions != "" {
		b.WriteString(target.Data.Instructions)
		b.WriteString("\n\n")
	}
	b.WriteString(instruction)
	b.WriteString("\n\nRESPONSE UNDER REVIEW:\n")
	b.WriteString(output)
	return b.String()
}

func buildRevisionPrompt(output, feedback string) string {
	var b strings.Builder
	b.WriteString("Revise your response based on the feedback below.\n\nYOUR RESPONSE:\n")
	b.WriteString(output)
	b.WriteString("\n\nFEEDBACK:\n")
	b.WriteString(feedback)
	b.WriteString("\n\nRespond with the revised version only.")
	return b.String()
}
