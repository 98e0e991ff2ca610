// Package agentgraph provides a high-level façade over the workflow engine
// for running declarative multi-agent workflows. Most applications interact
// with this package by:
//  1. Creating an AgentGraph via New() with a fallback model (optionally
//     overriding the default in-memory store, retriever or logger)
//  2. Loading a workflow graph from its JSON form (LoadGraph) or building
//     one programmatically with core types
//  3. Running it (Run), resuming paused executions (Resume) and inspecting
//     transcripts (Execution)
//
// The façade delegates orchestration to engine.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a durable store
// (store/redis), a real retriever and a structured logger.
package agentgraph

import (
	"context"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/engine"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/store"
)

// Options configures the AgentGraph instance.
type Options struct {
	// Store persists executions across pause/resume (defaults to in-memory).
	Store core.ExecutionStore

	// Retriever feeds document context to doc-aware agents (nil disables).
	Retriever core.Retriever

	// ResumePolicy selects what a plain human input does to the run.
	ResumePolicy engine.ResumePolicy

	// StrictValidation makes Run reject malformed graphs instead of
	// relying on the scheduler's liveness fallback.
	StrictValidation bool

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentGraph is the high-level façade aggregating the engine and its
// model resolver.
type AgentGraph struct {
	opts     Options
	resolver *model.Resolver
	engine   *engine.Engine
}

// New creates a new AgentGraph instance whose fallback model serves every
// node without an explicitly registered provider.
func New(fallback model.Model, optFns ...func(o *Options)) *AgentGraph {
	opts := Options{
		Store:  store.NewInMemoryStore(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	resolver := model.NewResolver(fallback)

	e := engine.New(resolver, func(o *engine.Options) {
		o.Store = opts.Store
		o.Retriever = opts.Retriever
		o.Logger = opts.Logger
		o.ResumePolicy = opts.ResumePolicy
		o.StrictValidation = opts.StrictValidation
	})

	return &AgentGraph{opts: opts, resolver: resolver, engine: e}
}

// RegisterProvider binds a provider name (as used in node configuration) to
// a model factory.
func (a *AgentGraph) RegisterProvider(provider string, f model.Factory) {
	a.resolver.Register(provider, f)
}

// LoadGraph parses and validates a workflow graph from its JSON form.
func (a *AgentGraph) LoadGraph(data []byte) (*core.Graph, error) {
	return graph.Parse(data)
}

// Run executes a workflow graph from the start.
func (a *AgentGraph) Run(ctx context.Context, g *core.Graph, workflowID string) (*core.Result, error) {
	return a.engine.Run(ctx, g, workflowID)
}

// Resume feeds human input into a paused execution and continues it.
func (a *AgentGraph) Resume(ctx context.Context, g *core.Graph, executionID, input string) (*core.Result, error) {
	return a.engine.Resume(ctx, g, executionID, input)
}

// Stop requests a halt before the next node of a running execution.
func (a *AgentGraph) Stop(ctx context.Context, executionID string) error {
	return a.engine.Stop(ctx, executionID)
}

// Execution returns the stored record for an execution id.
func (a *AgentGraph) Execution(ctx context.Context, executionID string) (*core.Execution, error) {
	return a.engine.Execution(ctx, executionID)
}
