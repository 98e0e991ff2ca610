package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentgraph/core"
)

// Request captures the normalized prompt a workflow node sends to a provider.
type Request struct {
	System      string   `json:"system,omitempty"`
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed generation with its accounting metadata.
type Response struct {
	Text           string      `json:"text"`
	FinishReason   string      `json:"finish_reason,omitempty"`
	ResponseTimeMS int64       `json:"response_time_ms"`
	Usage          *TokenUsage `json:"usage,omitempty"`
}

// TotalTokens returns the total token count, or 0 when usage is unknown.
func (r *Response) TotalTokens() int {
	if r == nil || r.Usage == nil {
		return 0
	}
	return r.Usage.TotalTokens
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock"
}

// Model is the minimal interface workflow nodes use to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Factory builds a Model for a given model id within one provider.
type Factory func(modelID string) Model

// Resolver maps a node's provider/model configuration onto a concrete
// Model, falling back to a default when the node does not specify one.
type Resolver struct {
	mu        sync.RWMutex
	factories map[string]Factory
	fallback  Model
}

// NewResolver creates a resolver whose fallback serves nodes without an
// explicit provider, and any provider no factory is registered for.
func NewResolver(fallback Model) *Resolver {
	return &Resolver{
		factories: make(map[string]Factory),
		fallback:  fallback,
	}
}

// Register binds a provider name to a model factory.
func (r *Resolver) Register(provider string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = f
}

// Resolve returns the model serving the given node configuration.
func (r *Resolver) Resolve(cfg core.NodeConfig) Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.factories[cfg.Provider]; ok {
		return f(cfg.Model)
	}
	return r.fallback
}

// MockModel is a lightweight in-memory Model useful for tests and examples.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	queued    []string
	err       error
	calls     []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an exact prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// QueueResponses appends completions served in order regardless of prompt.
// Queued responses take precedence over prompt-keyed ones.
func (m *MockModel) QueueResponses(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, responses...)
}

// FailWith makes every subsequent Generate call return err.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of every request seen so far.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	var text string
	switch {
	case len(m.queued) > 0:
		text = m.queued[0]
		m.queued = m.queued[1:]
	case m.responses[req.Prompt] != "":
		text = m.responses[req.Prompt]
	default:
		text = fmt.Sprintf("Mock response to: %s", req.Prompt)
	}
	return &Response{
		Text:         text,
		FinishReason: "stop",
		Usage: &TokenUsage{
			PromptTokens:     len(req.Prompt) / 4,
			CompletionTokens: len(text) / 4,
			TotalTokens:      (len(req.Prompt) + len(text)) / 4,
		},
	}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
