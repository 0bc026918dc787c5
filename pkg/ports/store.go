package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// TraceStore defines the interface for persisting the events emitted by runs.
// It allows an execution to be inspected or replayed after it settled.
type TraceStore interface {
	// Append stores an event under its execution ID, preserving emission order.
	Append(ctx context.Context, e domain.Event) error

	// Load returns the events of an execution in the order they were appended.
	// Returns domain.ErrExecutionNotFound if nothing was recorded for the ID.
	Load(ctx context.Context, executionID string) ([]domain.Event, error)

	// List returns the IDs of every recorded execution.
	List(ctx context.Context) ([]string, error)

	// Delete removes the events of an execution.
	Delete(ctx context.Context, executionID string) error
}
