package reflection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
)

func newTestRunner(mock *model.MockModel) *Runner {
	return NewRunner(model.NewResolver(mock), logging.NoOpLogger{})
}

func TestApplySelfReflectionRevisesOnce(t *testing.T) {
	mock := model.NewMockModel("m", "mock")
	mock.QueueResponses("improved draft")
	r := newTestRunner(mock)

	node := core.Node{ID: "a", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Writer"}}
	g := &core.Graph{
		Nodes: []core.Node{node},
		Edges: []core.Edge{{Source: "a", Target: "a", Type: core.EdgeTypeReflection}},
	}

	res, err := r.Apply(context.Background(), g, node, "first draft", core.NewSequencer())
	require.NoError(t, err)

	assert.Equal(t, "improved draft", res.Output)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, core.MessageTypeReflectionRevision, res.Messages[0].Type)
	assert.Equal(t, core.MessageTypeReflectionFinal, res.Messages[1].Type)
	assert.Equal(t, "Writer", res.Messages[0].AgentName)
}

func TestApplySelfReflectionIterationBound(t *testing.T) {
	mock := model.NewMockModel("m", "mock")
	mock.QueueResponses("pass one", "pass two", "pass three")
	r := newTestRunner(mock)

	node := core.Node{ID: "a", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Writer"}}
	g := &core.Graph{
		Nodes: []core.Node{node},
		Edges: []core.Edge{{
			Source: "a", Target: "a", Type: core.EdgeTypeReflection,
			Data: core.EdgeConfig{MaxIterations: 3},
		}},
	}

	res, err := r.Apply(context.Background(), g, node, "first draft", core.NewSequencer())
	require.NoError(t, err)

	assert.Equal(t, "pass two", res.Output)
	assert.Equal(t, 2, res.Usage.Calls)
}

func TestApplyCrossReflectionFeedbackThenRevision(t *testing.T) {
	mock := model.NewMockModel("m", "mock")
	mock.QueueResponses("needs more detail", "revised with detail")
	r := newTestRunner(mock)

	source := core.Node{ID: "a", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Writer"}}
	critic := core.Node{ID: "b", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Critic"}}
	g := &core.Graph{
		Nodes: []core.Node{source, critic},
		Edges: []core.Edge{{Source: "a", Target: "b", Type: core.EdgeTypeReflection}},
	}

	res, err := r.Apply(context.Background(), g, source, "draft", core.NewSequencer())
	require.NoError(t, err)

	assert.Equal(t, "revised with detail", res.Output)
	require.Len(t, res.Messages, 3)
	assert.Equal(t, core.MessageTypeReflectionFeedback, res.Messages[0].Type)
	assert.Equal(t, "Critic", res.Messages[0].AgentName)
	assert.Equal(t, core.MessageTypeReflectionRevision, res.Messages[1].Type)
	assert.Equal(t, "Writer", res.Messages[1].AgentName)
	assert.Equal(t, core.MessageTypeReflectionFinal, res.Messages[2].Type)
	assert.Nil(t, res.Pause)
}

func TestApplyCrossReflectionHumanReviewerPauses(t *testing.T) {
	mock := model.NewMockModel("m", "mock")
	r := newTestRunner(mock)

	source := core.Node{ID: "a", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Writer"}}
	human := core.Node{ID: "h", Type: core.NodeTypeUserProxy, Data: core.NodeConfig{Name: "Reviewer"}}
	g := &core.Graph{
		Nodes: []core.Node{source, human},
		Edges: []core.Edge{{Source: "a", Target: "h", Type: core.EdgeTypeReflection}},
	}

	res, err := r.Apply(context.Background(), g, source, "draft for review", core.NewSequencer())
	require.NoError(t, err)

	require.NotNil(t, res.Pause)
	assert.True(t, res.Pause.Reflection)
	assert.Equal(t, "a", res.Pause.EdgeSource)
	assert.Equal(t, "draft for review", res.Pause.PrimaryInput)
	assert.Equal(t, "draft for review", res.Output)
	assert.Empty(t, mock.Calls())
}

func TestApplyCrossReflectionOptOutHumanRunsAsModel(t *testing.T) {
	mock := model.NewMockModel("m", "mock")
	mock.QueueResponses("automated feedback", "revised")
	r := newTestRunner(mock)

	noInput := false
	source := core.Node{ID: "a", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Writer"}}
	proxy := core.Node{ID: "h", Type: core.NodeTypeUserProxy, Data: core.NodeConfig{Name: "Proxy", RequireHumanInput: &noInput}}
	g := &core.Graph{
		Nodes: []core.Node{source, proxy},
		Edges: []core.Edge{{Source: "a", Target: "h", Type: core.EdgeTypeReflection}},
	}

	res, err := r.Apply(context.Background(), g, source, "draft", core.NewSequencer())
	require.NoError(t, err)

	assert.Nil(t, res.Pause)
	assert.Equal(t, "revised", res.Output)
}

func TestApplyNoReflectionEdgesPassThrough(t *testing.T) {
	mock := model.NewMockModel("m", "mock")
	r := newTestRunner(mock)

	node := core.Node{ID: "a", Type: core.NodeTypeAssistant}
	g := &core.Graph{Nodes: []core.Node{node}}

	res, err := r.Apply(context.Background(), g, node, "untouched", core.NewSequencer())
	require.NoError(t, err)

	assert.Equal(t, "untouched", res.Output)
	assert.Empty(t, res.Messages)
	assert.Empty(t, mock.Calls())
}

func TestApplyCrossReflectionUnresolvableReviewerFails(t *testing.T) {
	// Resolver without a fallback: the critic's provider is never
	// registered, so the loop must fail instead of dereferencing nil.
	resolver := model.NewResolver(nil)
	writer := model.NewMockModel("m", "mock")
	resolver.Register("mock", func(string) model.Model { return writer })
	r := NewRunner(resolver, logging.NoOpLogger{})

	source := core.Node{ID: "a", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Writer", Provider: "mock"}}
	critic := core.Node{ID: "b", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Critic", Provider: "missing"}}
	g := &core.Graph{
		Nodes: []core.Node{source, critic},
		Edges: []core.Edge{{Source: "a", Target: "b", Type: core.EdgeTypeReflection}},
	}

	_, err := r.Apply(context.Background(), g, source, "draft", core.NewSequencer())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model available")
}

func TestResumeWithFeedbackUnresolvableSourceFails(t *testing.T) {
	r := NewRunner(model.NewResolver(nil), logging.NoOpLogger{})
	source := core.Node{ID: "a", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Writer", Provider: "missing"}}

	_, err := r.ResumeWithFeedback(context.Background(), source, "draft", "note", core.NewSequencer())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model available")
}

func TestResumeWithFeedback(t *testing.T) {
	mock := model.NewMockModel("m", "mock")
	mock.QueueResponses("revised per human note")
	r := newTestRunner(mock)

	source := core.Node{ID: "a", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Writer"}}

	res, err := r.ResumeWithFeedback(context.Background(), source, "draft", "please shorten", core.NewSequencer())
	require.NoError(t, err)

	assert.Equal(t, "revised per human note", res.Output)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, core.MessageTypeReflectionRevision, res.Messages[0].Type)
	assert.Equal(t, core.MessageTypeReflectionFinal, res.Messages[1].Type)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "please shorten")
}
