package events_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(t domain.EventType) domain.Event {
	return domain.Event{Type: t, ExecutionID: "e1"}
}

func TestBus_DeliversInRegistrationOrder(t *testing.T) {
	bus := events.NewBus()
	var got []string

	bus.On(domain.EventFunctionStart, func(_ context.Context, e domain.Event) { got = append(got, "first") })
	bus.OnAll(func(_ context.Context, e domain.Event) { got = append(got, "all:"+string(e.Type)) })
	bus.On(domain.EventFunctionStart, func(_ context.Context, e domain.Event) { got = append(got, "second") })
	bus.On(domain.EventExecutionEnd, func(_ context.Context, e domain.Event) { got = append(got, "end") })

	bus.Emit(context.Background(), ev(domain.EventFunctionStart))
	assert.Equal(t, []string{"first", "all:functionStart", "second"}, got)
}

func TestBus_Off(t *testing.T) {
	bus := events.NewBus()
	calls := 0
	sub := bus.On(domain.EventPathStart, func(context.Context, domain.Event) { calls++ })

	bus.Emit(context.Background(), ev(domain.EventPathStart))
	assert.True(t, bus.Off(sub))
	assert.False(t, bus.Off(sub), "second removal is a no-op")
	bus.Emit(context.Background(), ev(domain.EventPathStart))

	assert.Equal(t, 1, calls)
	assert.Zero(t, bus.Len())
}

func TestBus_RemoveAllListeners(t *testing.T) {
	bus := events.NewBus()
	noop := func(context.Context, domain.Event) {}
	bus.On(domain.EventFunctionStart, noop)
	bus.On(domain.EventFunctionEnd, noop)
	bus.OnAll(noop)

	bus.RemoveAllListeners(domain.EventFunctionStart)
	assert.Equal(t, 2, bus.Len())

	bus.RemoveAllListeners()
	assert.Zero(t, bus.Len())
}

func TestBus_ListenerAddedDuringEmitMissesThatEmission(t *testing.T) {
	bus := events.NewBus()
	late := 0
	bus.OnAll(func(context.Context, domain.Event) {
		bus.OnAll(func(context.Context, domain.Event) { late++ })
	})

	bus.Emit(context.Background(), ev(domain.EventExecutionStart))
	assert.Zero(t, late)

	bus.Emit(context.Background(), ev(domain.EventExecutionStart))
	assert.Equal(t, 1, late)
}

func TestBus_PanickingListenerIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	bus := events.NewBus(events.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	reached := false
	bus.OnAll(func(context.Context, domain.Event) { panic("boom") })
	bus.OnAll(func(context.Context, domain.Event) { reached = true })

	require.NotPanics(t, func() {
		bus.Emit(context.Background(), ev(domain.EventFunctionError))
	})
	assert.True(t, reached)
	assert.Contains(t, buf.String(), "event listener failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestBus_Hook(t *testing.T) {
	bus := events.NewBus()
	var started, ended int
	subs := bus.Hook(domain.LifecycleHooks{
		OnExecutionStart: func(context.Context, domain.Event) { started++ },
		OnExecutionEnd:   func(context.Context, domain.Event) { ended++ },
	})
	require.Len(t, subs, 2)

	bus.Emit(context.Background(), ev(domain.EventExecutionStart))
	bus.Emit(context.Background(), ev(domain.EventExecutionEnd))
	bus.Emit(context.Background(), ev(domain.EventFunctionStart))

	assert.Equal(t, 1, started)
	assert.Equal(t, 1, ended)
}

func TestBus_ConcurrentEmitAndSubscribe(t *testing.T) {
	bus := events.NewBus()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := bus.OnAll(func(context.Context, domain.Event) {})
			bus.Off(sub)
		}()
		go func() {
			defer wg.Done()
			bus.Emit(context.Background(), ev(domain.EventFunctionStart))
		}()
	}
	wg.Wait()
	assert.Zero(t, bus.Len())
}
