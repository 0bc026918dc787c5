package providers

import (
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/events"
)

// DebuggerProvider attaches a Debugger capability that publishes on an event bus.
type DebuggerProvider struct {
	bus *events.Bus
}

// Debugger creates a provider whose Debugger publishes on bus. Data sent by a
// step becomes an "execution" event tagged with the run, the function and the
// step's payload, whether or not anything listens.
func Debugger(bus *events.Bus) *DebuggerProvider {
	return &DebuggerProvider{bus: bus}
}

// Provide implements ports.Provider.
func (p *DebuggerProvider) Provide(ctx *domain.Context, fn domain.FunctionDetails, props domain.Payload) error {
	ctx.Debugger = &busDebugger{bus: p.bus, ctx: ctx, fn: fn, props: props}
	return nil
}

type busDebugger struct {
	bus   *events.Bus
	ctx   *domain.Context
	fn    domain.FunctionDetails
	props domain.Payload
}

func (d *busDebugger) Send(data any) {
	if d.bus == nil {
		return
	}
	d.bus.Emit(d.ctx.Context(), domain.Event{
		Type:          domain.EventExecutionData,
		Source:        domain.DefaultSource,
		Version:       domain.ProtocolVersion,
		Timestamp:     time.Now(),
		ExecutionID:   d.ctx.Execution.ID,
		FunctionIndex: domain.IndexOf(d.fn.Index),
		Data: map[string]any{
			domain.DataName:    d.fn.Name,
			domain.DataPayload: d.props,
			domain.DataDebug:   data,
		},
	})
}

// WrapProvider replaces the named MethodSet capability with a copy whose methods
// report {method: "name.key", args} before delegating.
func (d *busDebugger) WrapProvider(name string) error {
	v, ok := d.ctx.Get(name)
	if !ok {
		return fmt.Errorf("capability %q is not registered", name)
	}
	methods, ok := v.(domain.MethodSet)
	if !ok {
		return fmt.Errorf("capability %q is a %T, only method sets can be wrapped", name, v)
	}

	wrapped := make(domain.MethodSet, len(methods))
	for key, method := range methods {
		label := name + "." + key
		wrapped[key] = func(args ...any) (any, error) {
			d.Send(map[string]any{"method": label, "args": args})
			return method(args...)
		}
	}
	return d.ctx.Set(name, wrapped)
}
