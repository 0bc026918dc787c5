package cli

import (
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/registry"
)

// Builtins is the function library available to YAML trees run from the CLI.
func Builtins() map[string]domain.StepFunc {
	return map[string]domain.StepFunc{
		// log writes the current payload to the run logger.
		"log": func(ctx *domain.Context) (domain.Result, error) {
			ctx.Logger.Info("payload", "payload", ctx.Props)
			return domain.Continue(), nil
		},
		// fail aborts the run with the payload's "message", if any.
		"fail": func(ctx *domain.Context) (domain.Result, error) {
			if msg, ok := ctx.Props["message"]; ok {
				return domain.Result{}, errors.New(fmt.Sprint(msg))
			}
			return domain.Result{}, errors.New("fail")
		},
		"noop": func(*domain.Context) (domain.Result, error) {
			return domain.Continue(), nil
		},
	}
}

// NewRegistry returns a registry holding the builtins.
func NewRegistry() *registry.Registry {
	reg := registry.NewRegistry()
	reg.RegisterAll(Builtins())
	return reg
}
