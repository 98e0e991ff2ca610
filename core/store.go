package core

import (
	"context"
	"errors"
)

// ErrExecutionNotFound is returned by stores when no execution exists for
// the given id.
var ErrExecutionNotFound = errors.New("execution not found")

// ExecutionStore persists execution records across pause and resume.
// Implementations must return deep copies so callers cannot mutate stored
// state through aliased slices or maps.
type ExecutionStore interface {
	// Create stores a new execution record. It fails if the id is taken.
	Create(ctx context.Context, exec *Execution) error

	// Get returns the execution with the given id.
	Get(ctx context.Context, id string) (*Execution, error)

	// Save overwrites the stored record for exec.ID.
	Save(ctx context.Context, exec *Execution) error

	// Refresh reloads volatile control fields (stop flag, status) from the
	// store into exec, leaving in-flight transcript state untouched.
	Refresh(ctx context.Context, exec *Execution) error
}
