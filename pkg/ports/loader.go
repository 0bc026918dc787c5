package ports

import "github.com/aretw0/arbor/pkg/domain"

// TreeLoader defines how hosts resolve compiled trees by name.
// This allows the definition source (YAML files, memory, code) to be decoupled.
type TreeLoader interface {
	// Get returns the compiled tree registered under name.
	// Returns domain.ErrTreeNotFound if the name is unknown.
	Get(name string) (*domain.Tree, error)

	// List returns the names of all available trees, sorted.
	// This is used for introspection tools (e.g. 'arbor graph').
	List() ([]string, error)
}
