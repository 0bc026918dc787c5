package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/trace"
)

const ext = ".jsonl"

// Store implements ports.TraceStore using the local filesystem.
// Each execution is a JSONL file named after its ID in a configured directory.
type Store struct {
	BasePath string

	mu sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".arbor/traces".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".arbor", "traces")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(executionID string) (string, error) {
	if executionID == "" {
		return "", errors.New("executionID cannot be empty")
	}
	if strings.ContainsAny(executionID, `/\`) || executionID == "." || executionID == ".." {
		return "", fmt.Errorf("invalid executionID %q", executionID)
	}
	return filepath.Join(s.BasePath, executionID+ext), nil
}

// Append writes the event as a new line of its execution file and syncs it.
func (s *Store) Append(ctx context.Context, e domain.Event) error {
	path, err := s.path(e.ExecutionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure trace directory: %w", err)
	}
	w, err := trace.OpenFile(path)
	if err != nil {
		return err
	}
	if err := w.Write(e); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Load reads the events of an execution.
func (s *Store) Load(ctx context.Context, executionID string) ([]domain.Event, error) {
	path, err := s.path(executionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := trace.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	if len(events) == 0 {
		return nil, domain.ErrExecutionNotFound
	}
	return events, nil
}

// Delete removes the execution file.
func (s *Store) Delete(ctx context.Context, executionID string) error {
	path, err := s.path(executionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete trace file: %w", err)
	}
	return nil
}

// List returns all recorded execution IDs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ext {
			ids = append(ids, strings.TrimSuffix(entry.Name(), ext))
		}
	}
	sort.Strings(ids)
	return ids, nil
}
