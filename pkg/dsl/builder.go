package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Builder manages the tree construction.
type Builder struct {
	name string
	seq  domain.Sequence
	errs []error
}

// New creates a new tree builder.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Step appends a named function.
func (b *Builder) Step(name string, fn domain.StepFunc) *Builder {
	b.seq = append(b.seq, Fn(name, fn))
	return b
}

// Then appends arbitrary nodes: functions, nested sequences or branch maps.
func (b *Builder) Then(nodes ...domain.Node) *Builder {
	b.seq = append(b.seq, nodes...)
	return b
}

// Branch declares a named branch of the map following the last step.
// Consecutive calls add branches to the same map.
func (b *Builder) Branch(name string, nodes ...domain.Node) *Builder {
	if len(b.seq) == 0 {
		b.errs = append(b.errs, fmt.Errorf("branch %q declared before any step", name))
		return b
	}
	paths, ok := b.seq[len(b.seq)-1].(domain.Paths)
	if !ok {
		paths = domain.Paths{}
		b.seq = append(b.seq, paths)
	}
	if _, dup := paths[name]; dup {
		b.errs = append(b.errs, fmt.Errorf("branch %q declared twice", name))
		return b
	}
	paths[name] = domain.Sequence(nodes)
	return b
}

// Sequence returns the nodes declared so far.
func (b *Builder) Sequence() domain.Sequence {
	return b.seq
}

// Build compiles the declared nodes into an immutable tree.
func (b *Builder) Build() (*domain.Tree, error) {
	if len(b.errs) > 0 {
		return nil, domain.ConfigError("tree %q: %w", b.name, errors.Join(b.errs...))
	}
	tree, err := domain.Compile(b.name, b.seq)
	if err != nil {
		return nil, fmt.Errorf("failed to build tree %q: %w", b.name, err)
	}
	return tree, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *domain.Tree {
	tree, err := b.Build()
	if err != nil {
		panic(err)
	}
	return tree
}
