package arbor

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/events"
	"github.com/aretw0/arbor/pkg/ports"
)

// Version is the release of the module. Overridden at build time with -ldflags.
var Version = "0.1.0-dev"

// Engine is the high-level entry point for the arbor library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime   *runtime.Engine
	loader    ports.TreeLoader
	bus       *events.Bus
	providers []ports.Provider
	hooks     []domain.LifecycleHooks
	logger    *slog.Logger
	source    string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithProviders appends providers to the context chain. Order is significant:
// each provider sees the context produced by the ones before it.
func WithProviders(providers ...ports.Provider) Option {
	return func(e *Engine) {
		e.providers = append(e.providers, providers...)
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, hooks)
	}
}

// WithLoader injects a TreeLoader so trees can be run by name.
func WithLoader(l ports.TreeLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithBus shares an existing event channel, e.g. between several engines and one observer.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSource overrides the source tag carried by every event (default "ft").
func WithSource(source string) Option {
	return func(e *Engine) {
		e.source = source
	}
}

// New initializes a new arbor Engine.
// Misconfiguration is reported here, before any run starts.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	for i, p := range eng.providers {
		if p == nil {
			return nil, domain.ConfigError("provider %d is nil", i)
		}
	}

	// Ensure logger is initialized (so we don't pass nil to runtime, which would overwrite its default)
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.bus == nil {
		eng.bus = events.NewBus(events.WithLogger(eng.logger))
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithBus(eng.bus),
		runtime.WithLogger(eng.logger),
		runtime.WithProviders(eng.providers...),
		runtime.WithSource(eng.source),
	}
	for _, h := range eng.hooks {
		runtimeOpts = append(runtimeOpts, runtime.WithLifecycleHooks(h))
	}
	eng.runtime = runtime.NewEngine(runtimeOpts...)

	return eng, nil
}

// Run starts tree with payload and returns a handle that settles exactly once.
func (e *Engine) Run(ctx context.Context, tree *domain.Tree, payload domain.Payload) *domain.Handle {
	return e.runtime.Run(ctx, tree, payload)
}

// RunSync runs tree and blocks until it settles.
func (e *Engine) RunSync(ctx context.Context, tree *domain.Tree, payload domain.Payload) (domain.Payload, error) {
	return e.runtime.RunSync(ctx, tree, payload)
}

// RunNamed resolves name through the configured loader and runs it.
func (e *Engine) RunNamed(ctx context.Context, name string, payload domain.Payload) (*domain.Handle, error) {
	tree, err := e.Tree(name)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, tree, payload), nil
}

// Tree returns the tree registered under name in the configured loader.
func (e *Engine) Tree(name string) (*domain.Tree, error) {
	if e.loader == nil {
		return nil, fmt.Errorf("no tree loader configured: %w", domain.ErrTreeNotFound)
	}
	return e.loader.Get(name)
}

// Trees lists the trees of the configured loader.
func (e *Engine) Trees() ([]string, error) {
	if e.loader == nil {
		return nil, nil
	}
	return e.loader.List()
}

// Loader returns the underlying TreeLoader, if any.
func (e *Engine) Loader() ports.TreeLoader {
	return e.loader
}

// Events returns the event channel observers subscribe to.
func (e *Engine) Events() *events.Bus {
	return e.bus
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// Use appends providers after construction. Runs already in flight are unaffected.
func (e *Engine) Use(providers ...ports.Provider) {
	e.runtime.Use(providers...)
}

// UseFirst prepends providers to the chain.
func (e *Engine) UseFirst(providers ...ports.Provider) {
	e.runtime.UseFirst(providers...)
}

// RemoveProvider removes a provider previously added.
func (e *Engine) RemoveProvider(p ports.Provider) {
	e.runtime.RemoveProvider(p)
}
