// Package groupchat coordinates bounded multi-round conversations between a
// manager node and its delegate agents, then synthesizes the rounds into a
// single summary message.
package groupchat

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentgraph/aggregate"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/retrieval"
)

const (
	// DefaultMaxRounds bounds the round loop when the manager does not
	// configure one.
	DefaultMaxRounds = 5
	// DefaultDelegateIterations bounds one delegate's turns when the node
	// does not configure a count.
	DefaultDelegateIterations = 5
)

// Termination strategies for the round loop.
const (
	StrategyAllComplete   = "all_delegates_complete"
	StrategyAnyComplete   = "any_delegate_complete"
	StrategyMaxIterations = "max_iterations_reached"
)

// Outcome is the result of one coordinated group chat.
type Outcome struct {
	// Summary is the manager's synthesis of the delegate rounds, framed
	// with input and per-delegate recaps. It becomes the manager node's
	// output.
	Summary string
	// Messages holds the delegate turns plus the summary, in order.
	Messages []core.Message
	// Delegates reports the final per-delegate state.
	Delegates []core.DelegateStatus
	// Rounds is the number of rounds that ran.
	Rounds int
	// Usage tallies every model call made during the chat.
	Usage core.Usage
}

// Coordinator runs group chats. Zero value is not usable; construct with
// NewCoordinator.
type Coordinator struct {
	resolver  *model.Resolver
	retriever core.Retriever
	logger    logging.Logger
}

// NewCoordinator wires a coordinator to its model resolver, retriever and
// logger. Retriever may be nil to disable document context.
func NewCoordinator(resolver *model.Resolver, retriever core.Retriever, logger logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Coordinator{resolver: resolver, retriever: retriever, logger: logger}
}

// Run executes the full group chat for a manager node and returns the
// outcome. Delegates must be non-empty; resolve them with
// graph.DelegatesOf before calling.
func (c *Coordinator) Run(
	ctx context.Context,
	manager core.Node,
	delegates []core.Node,
	input core.AggregatedInput,
	seq *core.Sequencer,
) (*Outcome, error) {
	if len(delegates) == 0 {
		return nil, fmt.Errorf("group chat %s requires at least one delegate", manager.Name())
	}

	maxRounds := manager.Data.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	strategy := manager.Data.TerminationStrategy
	if strategy == "" {
		strategy = StrategyAllComplete
	}

	statuses := make([]core.DelegateStatus, len(delegates))
	for i, d := range delegates {
		maxIter := d.Data.NumberOfIterations
		if maxIter <= 0 {
			maxIter = DefaultDelegateIterations
		}
		statuses[i] = core.DelegateStatus{
			Name:                 d.Name(),
			MaxIterations:        maxIter,
			TerminationCondition: d.Data.TerminationCondition,
		}
	}

	out := &Outcome{}
	topic := aggregate.FormatForPrompt(input)
	var transcript []string

	c.logger.Info("starting group chat",
		"manager", manager.Name(), "delegates", len(delegates),
		"max_rounds", maxRounds, "strategy", strategy)

	for round := 1; round <= maxRounds; round++ {
		out.Rounds = round
		for i, d := range delegates {
			st := &statuses[i]
			if st.Done() || st.Iterations >= st.MaxIterations {
				continue
			}

			response, resp := c.delegateTurn(ctx, manager, d, topic, transcript,
				st.Iterations+1, st.MaxIterations, &out.Usage)
			st.Iterations++

			if strings.HasPrefix(response, "ERROR:") {
				st.Completed = true
			} else if phrase := d.Data.TerminationCondition; phrase != "" &&
				strings.HasSuffix(strings.TrimSpace(response), phrase) {
				st.Completed = true
			}
			if st.Iterations >= st.MaxIterations {
				st.Completed = true
			}

			transcript = append(transcript, fmt.Sprintf("%s: %s", st.Name, response))
			msg := core.NewMessage(seq.Next(), st.Name, response, core.MessageTypeChat)
			msg.AgentType = string(core.NodeTypeDelegate)
			if resp != nil {
				msg.ResponseTimeMS = resp.ResponseTimeMS
				msg.TokenCount = resp.TotalTokens()
			}
			msg.Metadata = map[string]any{"round": round, "group_chat": manager.Name()}
			out.Messages = append(out.Messages, msg)

			// Early exit mid-round, but never before every delegate has
			// had its first turn.
			if allStarted(statuses) && chatDone(strategy, statuses) {
				break
			}
		}

		if chatDone(strategy, statuses) {
			break
		}
	}

	out.Delegates = statuses

	if len(out.Messages) == 0 {
		return nil, fmt.Errorf("group chat %s produced no delegate turns", manager.Name())
	}

	synthesis, err := c.synthesize(ctx, manager, topic, transcript, &out.Usage)
	if err != nil {
		return nil, err
	}
	out.Summary = frameSummary(synthesis, input, statuses)

	msg := core.NewMessage(seq.Next(), manager.Name(), out.Summary, core.MessageTypeGroupChatSummary)
	msg.AgentType = string(core.NodeTypeGroupChatManager)
	msg.Metadata = map[string]any{
		"rounds":                 out.Rounds,
		"delegates":              len(delegates),
		"total_iterations":       totalIterations(statuses),
		"delegate_status":        statuses,
		"delegate_conversations": transcript,
	}
	out.Messages = append(out.Messages, msg)

	return out, nil
}

// delegateTurn runs one delegate turn. A delegate without its own model
// settings inherits the manager's. Failures are converted into an inline
// error response so one broken delegate cannot sink the whole chat.
func (c *Coordinator) delegateTurn(
	ctx context.Context,
	manager, d core.Node,
	topic string,
	transcript []string,
	iteration, maxIterations int,
	usage *core.Usage,
) (string, *model.Response) {
	cfg := d.Data
	if cfg.Provider == "" {
		cfg.Provider = manager.Data.Provider
		if cfg.Model == "" {
			cfg.Model = manager.Data.Model
		}
	}
	m := c.resolver.Resolve(cfg)
	if m == nil {
		c.logger.Error("no model available for delegate", "delegate", d.Name(), "provider", cfg.Provider)
		return fmt.Sprintf("ERROR: no model available for provider %q", cfg.Provider), nil
	}

	prompt := buildDelegatePrompt(d, topic, transcript, iteration, maxIterations)
	if docs := c.lookupDocuments(ctx, d, topic); docs != "" {
		prompt = prompt + "\n\n" + docs
	}

	resp, err := m.Generate(ctx, model.Request{
		System:      cfg.SystemMessage,
		Prompt:      prompt,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		c.logger.Error("delegate turn failed", "delegate", d.Name(), "error", err)
		return fmt.Sprintf("ERROR: %v", err), nil
	}
	usage.Record(m.Info().Provider, resp.TotalTokens(), resp.ResponseTimeMS)
	return resp.Text, resp
}

// lookupDocuments fetches document context for doc-aware delegates.
// Retrieval failures are logged and ignored.
func (c *Coordinator) lookupDocuments(ctx context.Context, d core.Node, topic string) string {
	if c.retriever == nil || !d.Data.DocAware || d.Data.SearchMethod == "" {
		return ""
	}
	docs, err := c.retriever.Retrieve(ctx, topic, d.Data.SearchMethod, retrieval.DefaultLimit)
	if err != nil {
		c.logger.Warn("document retrieval failed", "delegate", d.Name(), "error", err)
		return ""
	}
	return retrieval.FormatContext(docs)
}

// transcriptWindow bounds how many prior delegate turns a prompt carries.
const transcriptWindow = 3

func buildDelegatePrompt(d core.Node, topic string, transcript []string, iteration, maxIterations int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a specialized delegate agent.\n\n", d.Name())
	if d.Data.Instructions != "" {
		b.WriteString(d.Data.Instructions)
		b.WriteString("\n\n")
	}
	b.WriteString("TASK:\n")
	b.WriteString(topic)
	b.WriteString("\n\nPREVIOUS DELEGATE CONVERSATIONS:\n")
	if len(transcript) == 0 {
		b.WriteString("None")
	} else {
		tail := transcript
		if len(tail) > transcriptWindow {
			tail = tail[len(tail)-transcriptWindow:]
		}
		b.WriteString(strings.Join(tail, "\n"))
	}
	fmt.Fprintf(&b, "\n\nCurrent iteration: %d/%d\n", iteration, maxIterations)
	b.WriteString("\nProvide your specialized contribution, building on the conversation without duplicating it.")
	if phrase := d.Data.TerminationCondition; phrase != "" {
		fmt.Fprintf(&b, "\nIf you have completed your analysis, end your response with '%s'.", phrase)
	}
	return b.String()
}

// synthesize asks the manager model to distill the delegate rounds into a
// single narrative.
func (c *Coordinator) synthesize(
	ctx context.Context,
	manager core.Node,
	topic string,
	transcript []string,
	usage *core.Usage,
) (string, error) {
	m := c.resolver.Resolve(manager.Data)
	if m == nil {
		return "", fmt.Errorf("no model available for group chat manager %s", manager.Name())
	}

	var b strings.Builder
	b.WriteString("You coordinated a group discussion on the following task:\n")
	b.WriteString(topic)
	b.WriteString("\n\nDISCUSSION:\n")
	b.WriteString(strings.Join(transcript, "\n"))
	b.WriteString("\n\nSynthesize the discussion into a single coherent answer to the task.")

	resp, err := m.Generate(ctx, model.Request{
		System:      manager.Data.SystemMessage,
		Prompt:      b.String(),
		Temperature: manager.Data.Temperature,
		MaxTokens:   manager.Data.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("group chat synthesis failed for %s: %w", manager.Name(), err)
	}
	usage.Record(m.Info().Provider, resp.TotalTokens(), resp.ResponseTimeMS)
	return resp.Text, nil
}

// frameSummary wraps the manager's synthesis with the input sources and a
// per-delegate processing recap, so the summary message is self-contained.
func frameSummary(synthesis string, input core.AggregatedInput, statuses []core.DelegateStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Group chat summary (%d delegate iterations across %d input sources):\n\n",
		totalIterations(statuses), input.Count)
	b.WriteString(strings.TrimSpace(synthesis))
	b.WriteString("\n\nINPUT SOURCES:\n")
	for _, name := range input.Sources {
		fmt.Fprintf(&b, "- %s: %s\n", name, input.Summaries[name])
	}
	b.WriteString("\nDELEGATE PROCESSING:\n")
	for _, st := range statuses {
		state := "incomplete"
		if st.Completed {
			state = "completed"
		}
		fmt.Fprintf(&b, "- %s: %d/%d iterations (%s)\n", st.Name, st.Iterations, st.MaxIterations, state)
	}
	return strings.TrimRight(b.String(), "\n")
}

func totalIterations(statuses []core.DelegateStatus) int {
	total := 0
	for _, st := range statuses {
		total += st.Iterations
	}
	return total
}

// allStarted reports whether every delegate has taken at least one turn.
func allStarted(statuses []core.DelegateStatus) bool {
	for _, st := range statuses {
		if st.Iterations == 0 {
			return false
		}
	}
	return true
}

// chatDone evaluates the termination strategy against delegate state.
func chatDone(strategy string, statuses []core.DelegateStatus) bool {
	switch strategy {
	case StrategyAnyComplete:
		for _, st := range statuses {
			if st.Done() {
				return true
			}
		}
		return false
	case StrategyMaxIterations:
		for _, st := range statuses {
			if st.Iterations < st.MaxIterations {
				return false
			}
		}
		return true
	default: // all_delegates_complete
		for _, st := range statuses {
			if !st.Done() {
				return false
			}
		}
		return true
	}
}
