package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store implements ports.TraceStore in memory.
// Safe for concurrent use.
type Store struct {
	data  map[string][]domain.Event
	order []string
	mu    sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]domain.Event),
	}
}

// Append records the event under its execution.
func (s *Store) Append(ctx context.Context, e domain.Event) error {
	// Copy the data map so later mutation by the caller does not leak in.
	e.Data = maps.Clone(e.Data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[e.ExecutionID]; !ok {
		s.order = append(s.order, e.ExecutionID)
	}
	s.data[e.ExecutionID] = append(s.data[e.ExecutionID], e)
	return nil
}

// Load returns a copy of the recorded events.
func (s *Store) Load(ctx context.Context, executionID string) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, ok := s.data[executionID]
	if !ok {
		return nil, domain.ErrExecutionNotFound
	}
	out := make([]domain.Event, len(events))
	copy(out, events)
	return out, nil
}

// Delete removes the events of an execution.
func (s *Store) Delete(ctx context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[executionID]; !ok {
		return nil
	}
	delete(s.data, executionID)
	for i, id := range s.order {
		if id == executionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns recorded executions in order of first event.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}
