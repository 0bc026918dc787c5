package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/events"
)

// LogObserver writes one structured record per lifecycle event.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates an observer logging through logger.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

// Attach subscribes the observer to every event on bus.
func (o *LogObserver) Attach(bus *events.Bus) events.Subscription {
	return bus.OnAll(o.Observe)
}

// Observe logs ev. Failures are logged at error level, everything else at debug
// except the start and end of an execution.
func (o *LogObserver) Observe(ctx context.Context, ev domain.Event) {
	attrs := []any{"execution_id", ev.ExecutionID}
	if i, ok := ev.Index(); ok {
		attrs = append(attrs, "function_index", i)
	}
	if name, ok := ev.Data[domain.DataName].(string); ok && name != "" {
		attrs = append(attrs, "function", name)
	}

	switch ev.Type {
	case domain.EventExecutionStart:
		info, _ := ev.Data[domain.DataExecution].(domain.ExecutionInfo)
		attrs = append(attrs, "tree", info.Name)
		if info.ExecutedBy != "" {
			attrs = append(attrs, "executed_by", info.ExecutedBy)
		}
		o.logger.InfoContext(ctx, "execution started", attrs...)
	case domain.EventExecutionEnd:
		o.logger.InfoContext(ctx, "execution finished", attrs...)
	case domain.EventPathStart:
		o.logger.DebugContext(ctx, "path taken", append(attrs, "path", ev.Data[domain.DataPath])...)
	case domain.EventFunctionStart:
		o.logger.DebugContext(ctx, "function started", attrs...)
	case domain.EventFunctionEnd:
		o.logger.DebugContext(ctx, "function finished", attrs...)
	case domain.EventFunctionError:
		info, _ := ev.Data[domain.DataError].(map[string]any)
		o.logger.ErrorContext(ctx, "execution failed", append(attrs, "kind", info["kind"], "err", info["message"])...)
	case domain.EventExecutionData:
		o.logger.DebugContext(ctx, "debug data", append(attrs, "data", ev.Data[domain.DataDebug])...)
	}
}
