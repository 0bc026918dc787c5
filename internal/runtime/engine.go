package runtime

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/events"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/google/uuid"
)

// DefaultSource tags every event emitted by the engine.
const DefaultSource = domain.DefaultSource

// Engine interprets compiled trees. It holds no per-run state and may run any
// number of trees concurrently.
type Engine struct {
	mu        sync.RWMutex
	providers []ports.Provider

	bus    *events.Bus
	hooks  []domain.LifecycleHooks
	logger *slog.Logger
	source string
	now    func() time.Time
	newID  func() string
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithProviders appends providers to the context chain. Order is significant.
func WithProviders(providers ...ports.Provider) EngineOption {
	return func(e *Engine) {
		e.providers = append(e.providers, providers...)
	}
}

// WithBus sets the event channel the engine emits on.
func WithBus(bus *events.Bus) EngineOption {
	return func(e *Engine) {
		if bus != nil {
			e.bus = bus
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks subscribes the hooks to the engine's event channel.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = append(e.hooks, hooks)
	}
}

// WithSource overrides the source tag of emitted events.
func WithSource(source string) EngineOption {
	return func(e *Engine) {
		if source != "" {
			e.source = source
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides how execution IDs are generated.
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// NewEngine creates an engine. Without options it emits on a private bus and logs nothing.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		bus:    events.NewBus(),
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		source: DefaultSource,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, h := range e.hooks {
		e.bus.Hook(h)
	}
	return e
}

// Bus returns the event channel of the engine.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// Use appends providers to the chain. Runs already started keep their chain.
func (e *Engine) Use(providers ...ports.Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers = append(slices.Clone(e.providers), providers...)
}

// UseFirst prepends providers to the chain.
func (e *Engine) UseFirst(providers ...ports.Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers = append(slices.Clone(providers), e.providers...)
}

// RemoveProvider removes every occurrence of p from the chain.
// Providers of uncomparable types (such as ProviderFunc) cannot be removed.
func (e *Engine) RemoveProvider(p ports.Provider) {
	if p == nil || !reflect.TypeOf(p).Comparable() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.providers = slices.DeleteFunc(slices.Clone(e.providers), func(q ports.Provider) bool {
		return reflect.TypeOf(q) == reflect.TypeOf(p) && q == p
	})
}

// Providers returns a snapshot of the chain.
func (e *Engine) Providers() []ports.Provider {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.providers)
}

// Run starts tree with payload and returns immediately. The executionStart event
// has been delivered when Run returns; the steps execute on their own goroutine.
func (e *Engine) Run(ctx context.Context, tree *domain.Tree, payload domain.Payload) *domain.Handle {
	return e.start(ctx, tree, payload, "")
}

// RunSync runs tree and waits for it to settle.
func (e *Engine) RunSync(ctx context.Context, tree *domain.Tree, payload domain.Payload) (domain.Payload, error) {
	return e.Run(ctx, tree, payload).Wait()
}

// RunNested starts tree as an independent run executed by parent and waits for it to settle.
func (e *Engine) RunNested(ctx context.Context, parent *domain.Execution, tree *domain.Tree, payload domain.Payload) (domain.Payload, error) {
	parentID := ""
	if parent != nil {
		parentID = parent.ID
	}
	return e.start(ctx, tree, payload, parentID).Wait()
}

func (e *Engine) start(ctx context.Context, tree *domain.Tree, payload domain.Payload, parentID string) *domain.Handle {
	if ctx == nil {
		ctx = context.Background()
	}

	info := domain.ExecutionInfo{
		ID:         e.newID(),
		Datetime:   e.now(),
		ExecutedBy: parentID,
	}
	if tree != nil {
		info.Name = tree.Name()
		info.StaticTree = tree.Static()
	}
	exec := domain.NewExecution(info)
	handle := domain.NewHandle(exec)

	if tree == nil {
		err := domain.ConfigError("cannot run a nil tree")
		err.ExecutionID = info.ID
		handle.Reject(err)
		return handle
	}

	r := &run{
		engine:    e,
		exec:      exec,
		handle:    handle,
		tree:      tree,
		providers: e.Providers(),
		payload:   payload.Clone(),
		logger: e.logger.With(
			"tree", tree.Name(),
			"execution_id", info.ID,
		),
	}

	r.emit(ctx, domain.EventExecutionStart, nil, map[string]any{
		domain.DataExecution: info,
		domain.DataPayload:   r.payload.Clone(),
	})
	r.logger.Debug("execution started", "executed_by", parentID)

	go r.execute(ctx)
	return handle
}
