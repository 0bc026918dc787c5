package providers

import (
	"log/slog"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Logger replaces the step logger with one derived from base and tagged with
// the execution and function.
func Logger(base *slog.Logger) ports.Provider {
	return ports.ProviderFunc(func(ctx *domain.Context, fn domain.FunctionDetails, _ domain.Payload) error {
		if base == nil {
			return nil
		}
		ctx.Logger = base.With(
			"execution_id", ctx.Execution.ID,
			"tree", ctx.Execution.Name,
			"function", fn.Name,
			"function_index", fn.Index,
		)
		return nil
	})
}
