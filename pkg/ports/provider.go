package ports

import "github.com/aretw0/arbor/pkg/domain"

// Provider contributes to the context of every step.
// Providers run in registration order; each sees the context produced by the previous ones.
type Provider interface {
	Provide(ctx *domain.Context, fn domain.FunctionDetails, props domain.Payload) error
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx *domain.Context, fn domain.FunctionDetails, props domain.Payload) error

// Provide implements Provider.
func (f ProviderFunc) Provide(ctx *domain.Context, fn domain.FunctionDetails, props domain.Payload) error {
	return f(ctx, fn, props)
}

// RunInitializer is implemented by providers that need to prepare per-run state
// before the first step of a run executes.
type RunInitializer interface {
	InitRun(exec *domain.Execution) error
}
