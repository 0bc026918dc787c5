package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// initProviders gives providers implementing ports.RunInitializer a chance to
// prepare run-scoped state before the first step.
func (r *run) initProviders() error {
	for _, p := range r.providers {
		ri, ok := p.(ports.RunInitializer)
		if !ok {
			continue
		}
		if err := callSafely(func() error { return ri.InitRun(r.exec) }); err != nil {
			return r.newError(domain.KindProvider, domain.FunctionDetails{Index: -1}, fmt.Errorf("initialise provider %T: %w", p, err))
		}
	}
	return nil
}

// buildContext folds the provider chain over a fresh base context for fn.
// The first failing provider aborts the fold; the error is attributed to fn.
func (r *run) buildContext(ctx context.Context, fn domain.FunctionDetails) (*domain.Context, error) {
	c := domain.NewContext(ctx, r.exec, fn, r.payload.Clone(), r.engine)
	c.Logger = r.logger.With("function", fn.Name, "function_index", fn.Index)

	for _, p := range r.providers {
		props := c.Props
		if err := callSafely(func() error { return p.Provide(c, fn, props) }); err != nil {
			return nil, r.newError(domain.KindProvider, fn, fmt.Errorf("provider %T: %w", p, err))
		}
	}
	return c, nil
}

func callSafely(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}
