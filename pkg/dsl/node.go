package dsl

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// Fn is a named function reference.
func Fn(name string, fn domain.StepFunc) *domain.Func {
	return &domain.Func{Name: name, Fn: fn}
}

// Seq groups nodes into a sequence.
func Seq(nodes ...domain.Node) domain.Sequence {
	return domain.Sequence(nodes)
}

// Compile validates seq and assigns function indices.
func Compile(name string, seq domain.Sequence) (*domain.Tree, error) {
	return domain.Compile(name, seq)
}

// RunTree returns a step that runs tree as a nested execution with the current
// payload and merges the nested result back.
func RunTree(tree *domain.Tree) *domain.Func {
	return Fn("run:"+tree.Name(), func(ctx *domain.Context) (domain.Result, error) {
		out, err := ctx.Run(tree, ctx.Props)
		if err != nil {
			return domain.Result{}, fmt.Errorf("nested tree %q: %w", tree.Name(), err)
		}
		return domain.Merge(out), nil
	})
}
