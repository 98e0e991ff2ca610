// Package store provides execution persistence. The in-memory store serves
// tests and ephemeral demo runs; the redis subpackage backs durable
// pause/resume across processes.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentgraph/core"
)

// InMemoryStore is a volatile ExecutionStore implementation keeping
// executions in a process local map. It is safe for concurrent access.
// Each returned execution is cloned to prevent external mutation of
// internal state.
type InMemoryStore struct {
	mu         sync.RWMutex
	executions map[string]*core.Execution
}

// NewInMemoryStore constructs an empty in-memory execution store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{executions: make(map[string]*core.Execution)}
}

// Create stores a new execution record, failing if the id is taken.
func (s *InMemoryStore) Create(_ context.Context, exec *core.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.executions[exec.ID]; exists {
		return fmt.Errorf("execution %s already exists", exec.ID)
	}
	s.executions[exec.ID] = exec.Clone()
	return nil
}

// Get returns a clone of the stored execution.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.executions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrExecutionNotFound, id)
	}
	return exec.Clone(), nil
}

// Save overwrites the stored record for exec.ID.
func (s *InMemoryStore) Save(_ context.Context, exec *core.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[exec.ID] = exec.Clone()
	return nil
}

// Refresh reloads the stop flag and status from the stored record without
// disturbing the in-flight transcript.
func (s *InMemoryStore) Refresh(_ context.Context, exec *core.Execution) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.executions[exec.ID]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrExecutionNotFound, exec.ID)
	}
	exec.StopRequested = stored.StopRequested
	if stored.Status == core.StatusStopped {
		exec.Status = core.StatusStopped
	}
	return nil
}

// RequestStop marks the stored execution so the engine halts before its
// next node. A running engine observes the flag through Refresh.
func (s *InMemoryStore) RequestStop(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.executions[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrExecutionNotFound, id)
	}
	exec.StopRequested = true
	return nil
}
