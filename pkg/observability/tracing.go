package observability

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of the spans created by Tracer.
const TracerName = "github.com/aretw0/arbor"

// Tracer maps executions onto OpenTelemetry spans: one span per execution and
// one child span per function. Nested runs become children of the run that
// started them.
type Tracer struct {
	tracer trace.Tracer

	mu   sync.Mutex
	runs map[string]*spanRun
}

type spanRun struct {
	ctx  context.Context
	root trace.Span
	fn   trace.Span
}

// NewTracer creates a tracer using provider.
func NewTracer(provider trace.TracerProvider) *Tracer {
	return &Tracer{
		tracer: provider.Tracer(TracerName),
		runs:   make(map[string]*spanRun),
	}
}

// Attach subscribes the tracer to every event on bus.
func (t *Tracer) Attach(bus *events.Bus) events.Subscription {
	return bus.OnAll(t.Observe)
}

// Observe updates the spans of the execution ev belongs to.
func (t *Tracer) Observe(ctx context.Context, ev domain.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.Type == domain.EventExecutionStart {
		t.start(ctx, ev)
		return
	}
	r, ok := t.runs[ev.ExecutionID]
	if !ok {
		return
	}

	switch ev.Type {
	case domain.EventFunctionStart:
		// Functions run one at a time; a function that routed into an empty
		// branch has no end event and is closed by its successor.
		r.endFunction()
		name, _ := ev.Data[domain.DataName].(string)
		index, _ := ev.Index()
		_, r.fn = t.tracer.Start(r.ctx, "function "+name, trace.WithAttributes(
			attribute.String("arbor.function.name", name),
			attribute.Int("arbor.function.index", index),
		))

	case domain.EventPathStart:
		if r.fn != nil {
			path, _ := ev.Data[domain.DataPath].(string)
			r.fn.AddEvent("path", trace.WithAttributes(attribute.String("arbor.path", path)))
		}

	case domain.EventFunctionEnd:
		r.endFunction()

	case domain.EventExecutionData:
		span := r.root
		if r.fn != nil {
			span = r.fn
		}
		span.AddEvent("debug", trace.WithAttributes(
			attribute.String("arbor.data", fmt.Sprint(ev.Data[domain.DataDebug])),
		))

	case domain.EventExecutionEnd:
		r.endFunction()
		r.root.SetStatus(codes.Ok, "")
		r.root.End()
		delete(t.runs, ev.ExecutionID)

	case domain.EventFunctionError:
		info, _ := ev.Data[domain.DataError].(map[string]any)
		kind, _ := info["kind"].(string)
		message, _ := info["message"].(string)
		err := fmt.Errorf("%s: %s", kind, message)
		if r.fn != nil {
			r.fn.RecordError(err)
			r.fn.SetStatus(codes.Error, message)
		}
		r.endFunction()
		r.root.RecordError(err)
		r.root.SetAttributes(attribute.String("arbor.error.kind", kind))
		r.root.SetStatus(codes.Error, message)
		r.root.End()
		delete(t.runs, ev.ExecutionID)
	}
}

func (t *Tracer) start(ctx context.Context, ev domain.Event) {
	info, _ := ev.Data[domain.DataExecution].(domain.ExecutionInfo)
	parent := ctx
	if parentRun, ok := t.runs[info.ExecutedBy]; ok && info.ExecutedBy != "" {
		parent = parentRun.ctx
		if parentRun.fn != nil {
			parent = trace.ContextWithSpan(parentRun.ctx, parentRun.fn)
		}
	}

	attrs := []attribute.KeyValue{
		attribute.String("arbor.tree", info.Name),
		attribute.String("arbor.execution_id", ev.ExecutionID),
	}
	if info.ExecutedBy != "" {
		attrs = append(attrs, attribute.String("arbor.executed_by", info.ExecutedBy))
	}
	spanCtx, root := t.tracer.Start(parent, "execution "+info.Name, trace.WithAttributes(attrs...))
	t.runs[ev.ExecutionID] = &spanRun{ctx: spanCtx, root: root}
}

func (r *spanRun) endFunction() {
	if r.fn != nil {
		r.fn.End()
		r.fn = nil
	}
}
