package providers

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Decode copies the step payload into target, which must be a pointer to a
// struct or map. Fields are matched by their `mapstructure` tag or name, and
// weakly typed input (e.g. "3" into an int) is accepted.
func Decode(ctx *domain.Context, target any) error {
	return DecodePayload(ctx.Props, target)
}

// DecodePayload decodes an arbitrary payload into target.
func DecodePayload(payload domain.Payload, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(payload)); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
