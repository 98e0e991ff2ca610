// Package engine executes workflow graphs: it schedules nodes in
// dependency order, aggregates upstream outputs into prompts, coordinates
// group chats and reflection loops, pauses for human input, and persists
// every step so a run can stop and resume across processes.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentgraph/aggregate"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/groupchat"
	"github.com/hupe1980/agentgraph/humaninput"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/reflection"
	"github.com/hupe1980/agentgraph/retrieval"
	"github.com/hupe1980/agentgraph/store"
)

// ResumePolicy decides what happens after a plain (non-reflection) human
// input resumes a paused execution.
type ResumePolicy int

const (
	// ResumeContinue carries on with the remaining nodes.
	ResumeContinue ResumePolicy = iota
	// ResumeCompleteOnInput finishes the execution as soon as the input is
	// recorded, treating the human's words as the final answer.
	ResumeCompleteOnInput
)

// Options configure an Engine.
type Options struct {
	// Store persists executions. Defaults to an in-memory store.
	Store core.ExecutionStore
	// Retriever supplies document context to doc-aware nodes. Nil disables
	// retrieval.
	Retriever core.Retriever
	// Logger receives structured progress events. Defaults to no-op.
	Logger logging.Logger
	// ResumePolicy selects the post-input behavior, defaulting to
	// ResumeContinue.
	ResumePolicy ResumePolicy
	// StrictValidation rejects cyclic or otherwise malformed graphs up
	// front. The default is permissive: the scheduler's force-append
	// fallback keeps malformed graphs live.
	StrictValidation bool
}

// Engine runs workflow graphs against a model resolver.
type Engine struct {
	resolver  *model.Resolver
	store     core.ExecutionStore
	retriever core.Retriever
	logger    logging.Logger
	policy    ResumePolicy
	strict    bool

	chats   *groupchat.Coordinator
	reflect *reflection.Runner
}

// New creates an engine bound to a model resolver.
func New(resolver *model.Resolver, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Store:  store.NewInMemoryStore(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Engine{
		resolver:  resolver,
		store:     opts.Store,
		retriever: opts.Retriever,
		logger:    opts.Logger,
		policy:    opts.ResumePolicy,
		strict:    opts.StrictValidation,
		chats:     groupchat.NewCoordinator(resolver, opts.Retriever, opts.Logger),
		reflect:   reflection.NewRunner(resolver, opts.Logger),
	}
}

// Run executes the graph from the start, returning when the run completes,
// fails, stops, or pauses for human input. Malformed graphs fail the run
// with a structured result; with StrictValidation they are rejected before
// any node executes, otherwise the scheduler's liveness fallback applies.
func (e *Engine) Run(ctx context.Context, g *core.Graph, workflowID string) (*core.Result, error) {
	exec := core.NewExecution(uuid.NewString(), workflowID)
	exec.PendingNodes = graph.ExecutionOrder(g)
	if err := e.store.Create(ctx, exec); err != nil {
		return nil, err
	}

	if e.strict {
		if err := graph.Validate(g); err != nil {
			return e.fail(ctx, exec, fmt.Errorf("graph validation failed: %w", err))
		}
	}
	if len(exec.PendingNodes) == 0 {
		return e.fail(ctx, exec, fmt.Errorf("workflow %s has no runnable nodes", workflowID))
	}

	e.logger.Info("workflow execution started",
		"execution_id", exec.ID, "workflow_id", workflowID, "nodes", len(g.Nodes))

	return e.runLoop(ctx, g, exec, core.NewSequencer())
}

// Resume feeds human input into a paused execution and continues it.
func (e *Engine) Resume(ctx context.Context, g *core.Graph, executionID, input string) (*core.Result, error) {
	exec, err := e.store.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}

	seq := core.NewSequencerFrom(core.MaxSequence(exec.Messages) + 1)
	hctx, err := humaninput.ApplyResume(exec, input, seq)
	if err != nil {
		return nil, err
	}

	e.logger.Info("execution resumed with human input",
		"execution_id", exec.ID, "node_id", hctx.NodeID, "reflection", hctx.Reflection)

	if hctx.Reflection {
		source, ok := g.NodeByID(hctx.EdgeSource)
		if !ok {
			return e.fail(ctx, exec, fmt.Errorf("reflection source node %s not in graph", hctx.EdgeSource))
		}
		res, err := e.reflect.ResumeWithFeedback(ctx, source, exec.NodeOutputs[source.ID], input, seq)
		if err != nil {
			return e.fail(ctx, exec, err)
		}
		exec.Messages = append(exec.Messages, res.Messages...)
		exec.NodeOutputs[source.ID] = res.Output
		e.recordUsage(exec, res.Usage)
	} else {
		exec.MarkExecuted(hctx.NodeID, input)
		if e.policy == ResumeCompleteOnInput {
			return e.complete(ctx, g, exec)
		}
	}

	if err := e.save(ctx, exec, seq); err != nil {
		return nil, err
	}
	return e.runLoop(ctx, g, exec, seq)
}

// Stop requests a halt before the next node of a running execution.
func (e *Engine) Stop(ctx context.Context, executionID string) error {
	exec, err := e.store.Get(ctx, executionID)
	if err != nil {
		return err
	}
	exec.StopRequested = true
	exec.UpdatedAt = time.Now().UTC()
	return e.store.Save(ctx, exec)
}

// Execution returns the stored record for an execution id.
func (e *Engine) Execution(ctx context.Context, executionID string) (*core.Execution, error) {
	return e.store.Get(ctx, executionID)
}

// runLoop drives the remaining unexecuted nodes in schedule order.
func (e *Engine) runLoop(ctx context.Context, g *core.Graph, exec *core.Execution, seq *core.Sequencer) (*core.Result, error) {
	order := graph.ExecutionOrder(g)

	for _, nodeID := range order {
		if exec.HasExecuted(nodeID) {
			continue
		}
		node, ok := g.NodeByID(nodeID)
		if !ok || node.Type == core.NodeTypeDelegate {
			// Delegates only run under their group chat manager.
			continue
		}

		if err := e.store.Refresh(ctx, exec); err != nil {
			e.logger.Warn("failed to refresh execution state", "execution_id", exec.ID, "error", err)
		}
		if exec.StopRequested || exec.Status == core.StatusStopped {
			e.logger.Info("execution stopped on request", "execution_id", exec.ID, "before_node", nodeID)
			exec.Finish(core.StatusStopped)
			e.finalizeMetrics(g, exec)
			if err := e.save(ctx, exec, seq); err != nil {
				return nil, err
			}
			return resultOf(exec), nil
		}

		started := time.Now()
		pause, err := e.executeNode(ctx, g, exec, node, seq)
		e.logger.Debug("node executed",
			"execution_id", exec.ID, "node_id", node.ID, "node_type", string(node.Type),
			"duration_ms", time.Since(started).Milliseconds(), "paused", pause != nil, "error", err)

		if err != nil {
			return e.fail(ctx, exec, fmt.Errorf("node %s (%s) failed: %w", node.ID, node.Name(), err))
		}

		exec.PendingNodes = pendingAfter(order, exec)
		e.finalizeMetrics(g, exec)

		if pause != nil {
			humaninput.Pause(exec, *pause)
			if err := e.save(ctx, exec, seq); err != nil {
				return nil, err
			}
			return resultOf(exec), nil
		}

		if err := e.save(ctx, exec, seq); err != nil {
			return nil, err
		}
	}

	return e.complete(ctx, g, exec)
}

// executeNode runs a single node. It returns a non-nil pause context when
// the run must wait for human input.
func (e *Engine) executeNode(
	ctx context.Context,
	g *core.Graph,
	exec *core.Execution,
	node core.Node,
	seq *core.Sequencer,
) (*core.HumanInputContext, error) {
	switch node.Type {
	case core.NodeTypeStart:
		return nil, e.executeStart(exec, node, seq)
	case core.NodeTypeEnd:
		return nil, e.executeEnd(exec, node, seq)
	case core.NodeTypeGroupChatManager:
		return nil, e.executeGroupChat(ctx, g, exec, node, seq)
	case core.NodeTypeUserProxy:
		if node.Data.HumanInputRequired() {
			input := aggregate.Collect(g, exec, node.ID)
			hctx := humaninput.PauseContext(node, input)
			return &hctx, nil
		}
		return e.executeAgent(ctx, g, exec, node, seq)
	case core.NodeTypeAssistant:
		return e.executeAgent(ctx, g, exec, node, seq)
	default:
		return nil, fmt.Errorf("unsupported node type %s", node.Type)
	}
}

func (e *Engine) executeStart(exec *core.Execution, node core.Node, seq *core.Sequencer) error {
	prompt, replaced := sanitizeStartPrompt(node.Data.Prompt)
	if replaced {
		e.logger.Warn("start prompt replaced",
			"execution_id", exec.ID, "node_id", node.ID, "original", node.Data.Prompt)
	}

	msg := core.NewMessage(seq.Next(), node.Name(), prompt, core.MessageTypeWorkflowStart)
	msg.AgentType = string(node.Type)
	exec.Messages = append(exec.Messages, msg)
	exec.MarkExecuted(node.ID, prompt)
	return nil
}

func (e *Engine) executeEnd(exec *core.Execution, node core.Node, seq *core.Sequencer) error {
	closing := node.Data.Message
	if closing == "" {
		closing = "Workflow completed."
	}
	msg := core.NewMessage(seq.Next(), node.Name(), closing, core.MessageTypeWorkflowEnd)
	msg.AgentType = string(node.Type)
	exec.Messages = append(exec.Messages, msg)
	exec.MarkExecuted(node.ID, closing)
	return nil
}

func (e *Engine) executeGroupChat(
	ctx context.Context,
	g *core.Graph,
	exec *core.Execution,
	node core.Node,
	seq *core.Sequencer,
) error {
	delegates, err := graph.DelegatesOf(g, node.ID)
	if err != nil {
		return err
	}

	input := aggregate.Collect(g, exec, node.ID)
	out, err := e.chats.Run(ctx, node, delegates, input, seq)
	if err != nil {
		return err
	}

	exec.Messages = append(exec.Messages, out.Messages...)
	e.recordUsage(exec, out.Usage)

	// Delegates complete along with the chat; their last turn becomes
	// their node output for downstream aggregation.
	for _, d := range delegates {
		var last string
		for _, m := range out.Messages {
			if m.AgentName == d.Name() && m.Type == core.MessageTypeChat {
				last = m.Content
			}
		}
		if last != "" {
			exec.MarkExecuted(d.ID, last)
		}
	}

	exec.MarkExecuted(node.ID, out.Summary)
	return nil
}

func (e *Engine) executeAgent(
	ctx context.Context,
	g *core.Graph,
	exec *core.Execution,
	node core.Node,
	seq *core.Sequencer,
) (*core.HumanInputContext, error) {
	input := aggregate.Collect(g, exec, node.ID)

	var docContext string
	if e.retriever != nil && node.Data.DocAware && node.Data.SearchMethod != "" {
		query := retrievalQuery(exec, input)
		docs, err := e.retriever.Retrieve(ctx, query, node.Data.SearchMethod, retrieval.DefaultLimit)
		if err != nil {
			e.logger.Warn("document retrieval failed",
				"execution_id", exec.ID, "node_id", node.ID, "error", err)
		} else {
			docContext = retrieval.FormatContext(docs)
		}
	}

	m := e.resolver.Resolve(node.Data)
	if m == nil {
		return nil, fmt.Errorf("no model available for provider %q", node.Data.Provider)
	}
	resp, err := m.Generate(ctx, model.Request{
		System:      node.Data.SystemMessage,
		Prompt:      craftAgentPrompt(node, input, docContext),
		Temperature: node.Data.Temperature,
		MaxTokens:   node.Data.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var usage core.Usage
	usage.Record(m.Info().Provider, resp.TotalTokens(), resp.ResponseTimeMS)

	msg := core.NewMessage(seq.Next(), node.Name(), resp.Text, core.MessageTypeChat)
	msg.AgentType = string(node.Type)
	msg.ResponseTimeMS = resp.ResponseTimeMS
	msg.TokenCount = resp.TotalTokens()
	msg.Metadata = map[string]any{"input_count": input.Count, "input_sources": input.Sources}
	exec.Messages = append(exec.Messages, msg)
	exec.MarkExecuted(node.ID, resp.Text)
	e.recordUsage(exec, usage)

	// Persist the raw response before reflection so a crash mid-loop
	// loses at most the reflection exchange.
	if err := e.save(ctx, exec, seq); err != nil {
		return nil, err
	}

	res, err := e.reflect.Apply(ctx, g, node, resp.Text, seq)
	if err != nil {
		return nil, err
	}
	exec.Messages = append(exec.Messages, res.Messages...)
	exec.NodeOutputs[node.ID] = res.Output
	e.recordUsage(exec, res.Usage)

	return res.Pause, nil
}

// complete stamps the terminal state and persists the final record.
func (e *Engine) complete(ctx context.Context, g *core.Graph, exec *core.Execution) (*core.Result, error) {
	exec.Finish(core.StatusCompleted)
	exec.PendingNodes = nil
	e.finalizeMetrics(g, exec)
	exec.ConversationHistory = core.RenderHistory(exec.Messages)
	if err := e.store.Save(ctx, exec); err != nil {
		return nil, err
	}
	e.logger.Info("workflow execution completed",
		"execution_id", exec.ID, "messages", len(exec.Messages),
		"duration_ms", exec.Metrics.DurationMS)
	return resultOf(exec), nil
}

// fail records a node-level failure as a failed execution rather than an
// infrastructure error.
func (e *Engine) fail(ctx context.Context, exec *core.Execution, cause error) (*core.Result, error) {
	e.logger.Error("workflow execution failed", "execution_id", exec.ID, "error", cause)
	exec.Error = cause.Error()
	exec.Finish(core.StatusFailed)
	exec.ConversationHistory = core.RenderHistory(exec.Messages)
	if err := e.store.Save(ctx, exec); err != nil {
		return nil, err
	}
	return resultOf(exec), nil
}

// save reconciles the in-flight transcript with the stored one before
// overwriting, so inputs recorded by other writers are never lost.
func (e *Engine) save(ctx context.Context, exec *core.Execution, seq *core.Sequencer) error {
	if stored, err := e.store.Get(ctx, exec.ID); err == nil {
		exec.Messages = mergeMessages(stored.Messages, exec.Messages)
		seq.Advance(core.MaxSequence(exec.Messages) + 1)
	}
	exec.ConversationHistory = core.RenderHistory(exec.Messages)
	exec.UpdatedAt = time.Now().UTC()
	return e.store.Save(ctx, exec)
}

// recordUsage folds model call accounting into the persistent metrics.
func (e *Engine) recordUsage(exec *core.Execution, usage core.Usage) {
	total := usageFromMetrics(exec.Metrics)
	total.Merge(usage)
	exec.Metrics.ModelCalls = total.Calls
	exec.Metrics.TotalTokens = total.Tokens
	exec.Metrics.AvgResponseTimeMS = total.AvgResponseTimeMS()
	exec.Metrics.ProvidersUsed = total.Providers
}

// finalizeMetrics refreshes the derived metrics fields.
func (e *Engine) finalizeMetrics(g *core.Graph, exec *core.Execution) {
	exec.Metrics.DurationMS = time.Since(exec.StartedAt).Milliseconds()
	exec.Metrics.TotalMessages = len(exec.Messages)
	agents := 0
	for _, id := range exec.ExecutedNodes {
		if n, ok := g.NodeByID(id); ok && n.Type.IsAgent() {
			agents++
		}
	}
	exec.Metrics.TotalAgents = agents
}

// usageFromMetrics reconstructs the running tally from persisted metrics.
func usageFromMetrics(m core.Metrics) core.Usage {
	return core.Usage{
		Calls:          m.ModelCalls,
		Tokens:         m.TotalTokens,
		ResponseTimeMS: m.AvgResponseTimeMS * int64(m.ModelCalls),
		Providers:      append([]string(nil), m.ProvidersUsed...),
	}
}

// pendingAfter lists the schedule entries not yet executed.
func pendingAfter(order []string, exec *core.Execution) []string {
	var out []string
	for _, id := range order {
		if !exec.HasExecuted(id) {
			out = append(out, id)
		}
	}
	return out
}

func resultOf(exec *core.Execution) *core.Result {
	return &core.Result{
		ExecutionID:   exec.ID,
		WorkflowID:    exec.WorkflowID,
		Status:        exec.Status,
		Messages:      append([]core.Message(nil), exec.Messages...),
		Metrics:       exec.Metrics,
		ResultSummary: resultSummary(exec.Messages),
		HumanInput:    exec.HumanInput,
		Error:         exec.Error,
		StartedAt:     exec.StartedAt,
		FinishedAt:    exec.FinishedAt,
	}
}

// resultSummary picks the content of the last substantive agent message,
// skipping bookkeeping entries like the workflow end marker.
func resultSummary(msgs []core.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		switch msgs[i].Type {
		case core.MessageTypeChat, core.MessageTypeGroupChatSummary,
			core.MessageTypeReflectionFinal, core.MessageTypeHumanInput:
			return msgs[i].Content
		}
	}
	return ""
}
