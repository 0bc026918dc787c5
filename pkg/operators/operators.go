package operators

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/schema"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Path names used by the operators.
const (
	PathTrue      = "true"
	PathFalse     = "false"
	PathOtherwise = "otherwise"
)

// When routes to the "true" or "false" branch depending on a boolean expression
// over the payload, e.g. `total > 100 && country == "PT"`. The expression is
// compiled once here; unknown payload keys evaluate to nil.
func When(expression string) (*domain.Func, error) {
	src := strings.TrimSpace(expression)
	if src == "" {
		return nil, domain.ConfigError("when: empty expression")
	}
	program, err := expr.Compile(src, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, domain.ConfigError("when: compile %q: %w", src, err)
	}
	return &domain.Func{
		Name: "when(" + src + ")",
		Fn: func(ctx *domain.Context) (domain.Result, error) {
			ok, err := eval(program, ctx.Props)
			if err != nil {
				return domain.Result{}, fmt.Errorf("eval %q: %w", src, err)
			}
			if ok {
				return domain.Take(PathTrue, nil), nil
			}
			return domain.Take(PathFalse, nil), nil
		},
	}, nil
}

// MustWhen is like When but panics on an invalid expression.
func MustWhen(expression string) *domain.Func {
	fn, err := When(expression)
	if err != nil {
		panic(err)
	}
	return fn
}

func eval(program *vm.Program, payload domain.Payload) (bool, error) {
	env := map[string]any(payload.Clone())
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("did not return bool (got %T)", out)
	}
	return b, nil
}

// Equals routes to the branch named after the string form of payload[key].
// When no branch has that name it routes to "otherwise".
func Equals(key string) *domain.Func {
	return &domain.Func{
		Name: "equals(" + key + ")",
		Fn: func(ctx *domain.Context) (domain.Result, error) {
			value, present := ctx.Props[key]
			name := fmt.Sprint(value)
			if !present || !slices.Contains(ctx.Function.Paths, name) {
				name = PathOtherwise
			}
			return domain.Take(name, nil), nil
		},
	}
}

// Set merges {key: value} into the payload.
func Set(key string, value any) *domain.Func {
	return &domain.Func{
		Name: "set(" + key + ")",
		Fn: func(*domain.Context) (domain.Result, error) {
			return domain.Merge(domain.Payload{key: value}), nil
		},
	}
}

// Wait suspends the run for d. A cancelled run stops waiting immediately.
func Wait(d time.Duration) *domain.Func {
	return &domain.Func{
		Name: "wait(" + d.String() + ")",
		Fn: func(*domain.Context) (domain.Result, error) {
			return domain.Defer(func(ctx context.Context) (domain.Result, error) {
				timer := time.NewTimer(d)
				defer timer.Stop()
				select {
				case <-timer.C:
					return domain.Continue(), nil
				case <-ctx.Done():
					return domain.Result{}, ctx.Err()
				}
			}), nil
		},
	}
}

// Require fails the run unless the payload satisfies s. Every failing field is
// reported in the step error.
func Require(s schema.Schema) *domain.Func {
	return &domain.Func{
		Name: "require(" + s.String() + ")",
		Fn: func(ctx *domain.Context) (domain.Result, error) {
			if err := s.Validate(ctx.Props); err != nil {
				return domain.Result{}, fmt.Errorf("payload rejected: %w", err)
			}
			return domain.Continue(), nil
		},
	}
}
