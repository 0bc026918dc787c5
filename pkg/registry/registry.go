// Package registry holds the step functions declarative trees refer to by name.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Registry manages the available step functions.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]domain.StepFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]domain.StepFunc),
	}
}

// Register adds a step to the registry.
// If a step with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn domain.StepFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[name] = fn
}

// RegisterAll adds every step of steps.
func (r *Registry) RegisterAll(steps map[string]domain.StepFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, fn := range steps {
		r.steps[name] = fn
	}
}

// Lookup returns the step registered under name as a named function reference.
// Returns an error wrapping domain.ErrFunctionNotFound if the name is unknown.
func (r *Registry) Lookup(name string) (*domain.Func, error) {
	r.mu.RLock()
	fn, ok := r.steps[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFunctionNotFound, name)
	}
	return &domain.Func{Name: name, Fn: fn}, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.steps))
	for name := range r.steps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
