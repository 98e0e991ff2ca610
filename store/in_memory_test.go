package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgraph/core"
)

func TestInMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	exec := core.NewExecution("e1", "w1")
	require.NoError(t, s.Create(ctx, exec))

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)
	assert.Equal(t, core.StatusRunning, got.Status)
}

func TestInMemoryStoreCreateDuplicateFails(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Create(ctx, core.NewExecution("e1", "w1")))
	assert.Error(t, s.Create(ctx, core.NewExecution("e1", "w1")))
}

func TestInMemoryStoreGetUnknown(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrExecutionNotFound)
}

func TestInMemoryStoreReturnsClones(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	exec := core.NewExecution("e1", "w1")
	exec.NodeOutputs["a"] = "original"
	require.NoError(t, s.Create(ctx, exec))

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	got.NodeOutputs["a"] = "mutated"

	again, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.NodeOutputs["a"])
}

func TestInMemoryStoreRefreshPicksUpStop(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	exec := core.NewExecution("e1", "w1")
	require.NoError(t, s.Create(ctx, exec))
	require.NoError(t, s.RequestStop(ctx, "e1"))

	// In-flight copy does not see the flag until refreshed.
	assert.False(t, exec.StopRequested)
	require.NoError(t, s.Refresh(ctx, exec))
	assert.True(t, exec.StopRequested)
}

func TestInMemoryStoreRefreshKeepsTranscript(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	exec := core.NewExecution("e1", "w1")
	require.NoError(t, s.Create(ctx, exec))

	exec.Messages = append(exec.Messages, core.NewMessage(1, "Writer", "draft", core.MessageTypeChat))
	require.NoError(t, s.Refresh(ctx, exec))
	assert.Len(t, exec.Messages, 1)
}

func TestInMemoryStoreRequestStopUnknown(t *testing.T) {
	s := NewInMemoryStore()
	err := s.RequestStop(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrExecutionNotFound)
}
