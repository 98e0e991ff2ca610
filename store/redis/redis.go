// Package redis provides a Redis-backed ExecutionStore so paused workflow
// executions survive process restarts and can be resumed from another
// instance.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentgraph/core"
)

// Options configure the Redis execution store.
type Options struct {
	// KeyPrefix namespaces execution keys, defaulting to "agentgraph:execution:".
	KeyPrefix string
	// TTL bounds how long finished executions stay readable. Zero keeps
	// records forever.
	TTL time.Duration
}

// Store is an ExecutionStore backed by a Redis instance. Records are stored
// as JSON blobs under a prefixed key per execution.
type Store struct {
	client redis.UniversalClient
	opts   Options
}

// NewStore creates a Redis execution store from an existing client.
func NewStore(client redis.UniversalClient, optFns ...func(o *Options)) *Store {
	opts := Options{
		KeyPrefix: "agentgraph:execution:",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{client: client, opts: opts}
}

func (s *Store) key(id string) string {
	return s.opts.KeyPrefix + id
}

// Create stores a new execution record, failing if the id is taken.
func (s *Store) Create(ctx context.Context, exec *core.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(exec.ID), data, s.opts.TTL).Result()
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	if !ok {
		return fmt.Errorf("execution %s already exists", exec.ID)
	}
	return nil
}

// Get returns the execution with the given id.
func (s *Store) Get(ctx context.Context, id string) (*core.Execution, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %s", core.ErrExecutionNotFound, id)
		}
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}
	var exec core.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	return &exec, nil
}

// Save overwrites the stored record for exec.ID.
func (s *Store) Save(ctx context.Context, exec *core.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}
	if err := s.client.Set(ctx, s.key(exec.ID), data, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	return nil
}

// Refresh reloads the stop flag and status from the stored record without
// disturbing the in-flight transcript.
func (s *Store) Refresh(ctx context.Context, exec *core.Execution) error {
	stored, err := s.Get(ctx, exec.ID)
	if err != nil {
		return err
	}
	exec.StopRequested = stored.StopRequested
	if stored.Status == core.StatusStopped {
		exec.Status = core.StatusStopped
	}
	return nil
}

// RequestStop marks the stored execution so the engine halts before its
// next node.
func (s *Store) RequestStop(ctx context.Context, id string) error {
	exec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	exec.StopRequested = true
	exec.UpdatedAt = time.Now().UTC()
	return s.Save(ctx, exec)
}
