package agentgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/testutil"
	"github.com/hupe1980/agentgraph/model"
)

func TestRunLoadedGraph(t *testing.T) {
	mock := model.NewMockModel("m", "mock")
	mock.QueueResponses("a short answer")
	a := New(mock)

	g, err := a.LoadGraph([]byte(`{
		"nodes": [
			{"id": "start", "type": "StartNode", "data": {"name": "Start", "prompt": "explain DNS"}},
			{"id": "writer", "type": "AssistantAgent", "data": {"name": "Writer"}},
			{"id": "end", "type": "EndNode", "data": {"name": "End"}}
		],
		"edges": [
			{"source": "start", "target": "writer"},
			{"source": "writer", "target": "end"}
		]
	}`))
	require.NoError(t, err)

	res, err := a.Run(context.Background(), g, "wf-dns")
	require.NoError(t, err)

	assert.Equal(t, core.StatusCompleted, res.Status)
	require.Len(t, res.Messages, 3)
	assert.Equal(t, "a short answer", res.Messages[1].Content)
}

func TestPauseAndResumeThroughFacade(t *testing.T) {
	mock := model.NewMockModel("m", "mock")
	mock.QueueResponses("draft pitch")
	a := New(mock)

	g := testutil.NewGraphBuilder().
		Start("start", "pitch our product").
		Assistant("writer", "Writer").
		UserProxy("human", "Reviewer").
		End("end").
		Chain("start", "writer", "human", "end").
		Build()

	paused, err := a.Run(context.Background(), g, "wf-pitch")
	require.NoError(t, err)
	require.Equal(t, core.StatusAwaitingHumanInput, paused.Status)

	res, err := a.Resume(context.Background(), g, paused.ExecutionID, "ship it")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, res.Status)

	exec, err := a.Execution(context.Background(), res.ExecutionID)
	require.NoError(t, err)
	assert.Len(t, exec.Interactions, 1)
}

func TestRegisterProvider(t *testing.T) {
	fallback := model.NewMockModel("fallback", "mock")
	special := model.NewMockModel("special", "anthropic")
	special.QueueResponses("from the registered provider")

	a := New(fallback)
	a.RegisterProvider("anthropic", func(string) model.Model { return special })

	g := testutil.NewGraphBuilder().
		Start("start", "hello").
		Node(core.Node{ID: "writer", Type: core.NodeTypeAssistant, Data: core.NodeConfig{Name: "Writer", Provider: "anthropic"}}).
		End("end").
		Chain("start", "writer", "end").
		Build()

	res, err := a.Run(context.Background(), g, "wf")
	require.NoError(t, err)
	assert.Equal(t, "from the registered provider", res.Messages[1].Content)
	assert.Empty(t, fallback.Calls())
}
