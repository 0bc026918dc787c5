package providers

import (
	"maps"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Context attaches static values to every step context, one capability per key.
func Context(values map[string]any) ports.Provider {
	values = maps.Clone(values)
	return ports.ProviderFunc(func(ctx *domain.Context, _ domain.FunctionDetails, _ domain.Payload) error {
		for name, v := range values {
			if err := ctx.Set(name, v); err != nil {
				return err
			}
		}
		return nil
	})
}
