// Package events implements the event channel: a synchronous publish/subscribe
// mechanism for execution lifecycle events.
//
// Listener lists are copy-on-write. Every emission iterates an immutable
// snapshot, so concurrent runs may emit while listeners are added or removed,
// and a listener registered during an emission never sees that emission.
package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/aretw0/arbor/pkg/domain"
)

// Listener receives events. It must not block for long: delivery is synchronous.
type Listener func(ctx context.Context, e domain.Event)

// Subscription identifies a registered listener.
type Subscription uint64

type entry struct {
	id       Subscription
	kind     domain.EventType // empty matches every type
	listener Listener
}

// Bus is the event channel. The zero value is not usable; use NewBus.
type Bus struct {
	mu        sync.Mutex // serialises writers
	listeners atomic.Pointer[[]entry]
	nextID    atomic.Uint64
	logger    *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report listener failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	empty := []entry{}
	b.listeners.Store(&empty)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On registers listener for events of the given type.
func (b *Bus) On(kind domain.EventType, listener Listener) Subscription {
	return b.add(kind, listener)
}

// OnAll registers listener for every event type.
func (b *Bus) OnAll(listener Listener) Subscription {
	return b.add("", listener)
}

// Hook subscribes every non-nil hook and returns the subscriptions.
func (b *Bus) Hook(hooks domain.LifecycleHooks) []Subscription {
	var subs []Subscription
	for _, kind := range domain.AllEventTypes {
		if fn, ok := hooks.Bindings()[kind]; ok {
			subs = append(subs, b.On(kind, fn))
		}
	}
	return subs
}

func (b *Bus) add(kind domain.EventType, listener Listener) Subscription {
	if listener == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id := Subscription(b.nextID.Add(1))
	current := *b.listeners.Load()
	next := make([]entry, len(current), len(current)+1)
	copy(next, current)
	next = append(next, entry{id: id, kind: kind, listener: listener})
	b.listeners.Store(&next)
	return id
}

// Off removes the listener registered under sub. It reports whether one was removed.
func (b *Bus) Off(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := *b.listeners.Load()
	idx := slices.IndexFunc(current, func(e entry) bool { return e.id == sub })
	if idx < 0 {
		return false
	}
	next := slices.Delete(slices.Clone(current), idx, idx+1)
	b.listeners.Store(&next)
	return true
}

// RemoveAllListeners removes listeners bound to the given types, or every listener if none are given.
// Listeners registered with OnAll are only removed when no type is given.
func (b *Bus) RemoveAllListeners(kinds ...domain.EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(kinds) == 0 {
		empty := []entry{}
		b.listeners.Store(&empty)
		return
	}
	current := *b.listeners.Load()
	next := slices.DeleteFunc(slices.Clone(current), func(e entry) bool {
		return e.kind != "" && slices.Contains(kinds, e.kind)
	})
	b.listeners.Store(&next)
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	return len(*b.listeners.Load())
}

// Emit delivers e to every matching listener in registration order.
// Listener panics are recovered and logged; they never reach the emitter.
func (b *Bus) Emit(ctx context.Context, e domain.Event) {
	snapshot := *b.listeners.Load()
	for _, l := range snapshot {
		if l.kind != "" && l.kind != e.Type {
			continue
		}
		b.deliver(ctx, l, e)
	}
}

func (b *Bus) deliver(ctx context.Context, l entry, e domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener failed",
				"event", e.Type,
				"execution_id", e.ExecutionID,
				"subscription", l.id,
				"err", fmt.Errorf("panic: %v", r),
			)
		}
	}()
	l.listener(ctx, e)
}
