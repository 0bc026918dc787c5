package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Loader implements ports.TreeLoader using an in-memory map.
// Safe for concurrent use.
type Loader struct {
	mu    sync.RWMutex
	trees map[string]*domain.Tree
}

// NewLoader creates a loader serving the given trees under their own names.
func NewLoader(trees ...*domain.Tree) (*Loader, error) {
	l := &Loader{trees: make(map[string]*domain.Tree, len(trees))}
	for _, t := range trees {
		if err := l.Register(t); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Register adds tree, replacing any tree with the same name.
func (l *Loader) Register(tree *domain.Tree) error {
	if tree == nil || tree.Name() == "" {
		return domain.ConfigError("memory loader: tree must have a name")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trees[tree.Name()] = tree
	return nil
}

// Get retrieves a tree by name.
func (l *Loader) Get(name string) (*domain.Tree, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tree, ok := l.trees[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTreeNotFound, name)
	}
	return tree, nil
}

// List returns all tree names.
func (l *Loader) List() ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.trees))
	for k := range l.trees {
		names = append(names, k)
	}
	sort.Strings(names) // Deterministic order
	return names, nil
}
