package runtime

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

func (r *run) emit(ctx context.Context, kind domain.EventType, index *int, data map[string]any) {
	ev := domain.Event{
		Type:        kind,
		Source:      r.engine.source,
		Version:     domain.ProtocolVersion,
		Timestamp:   r.engine.now(),
		ExecutionID: r.exec.ID,
		Data:        data,
	}
	if index != nil {
		ev.FunctionIndex = domain.IndexOf(*index)
	}
	r.engine.bus.Emit(ctx, ev)
}
