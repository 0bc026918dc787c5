package arbor_test

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
)

func Example() {
	tree := dsl.New("checkout").
		Step("validate", func(ctx *domain.Context) (domain.Result, error) {
			if ctx.Props["total"].(int) > 0 {
				return domain.Take("success", domain.Payload{"valid": true}), nil
			}
			return domain.Take("error", nil), nil
		}).
		Branch("success", dsl.Fn("charge", func(ctx *domain.Context) (domain.Result, error) {
			return domain.Merge(domain.Payload{"charged": ctx.Props["total"]}), nil
		})).
		Branch("error").
		MustBuild()

	eng, err := arbor.New()
	if err != nil {
		panic(err)
	}

	out, err := eng.RunSync(context.Background(), tree, domain.Payload{"total": 42})
	if err != nil {
		panic(err)
	}
	fmt.Println(out["valid"], out["charged"])
	// Output: true 42
}

func ExampleWithLifecycleHooks() {
	eng, _ := arbor.New(arbor.WithLifecycleHooks(domain.LifecycleHooks{
		OnFunctionStart: func(_ context.Context, e domain.Event) {
			fmt.Println("start", e.Data[domain.DataName])
		},
	}))

	tree := dsl.New("hooks").
		Step("first", func(*domain.Context) (domain.Result, error) { return domain.Continue(), nil }).
		Step("second", func(*domain.Context) (domain.Result, error) { return domain.Continue(), nil }).
		MustBuild()

	_, _ = eng.RunSync(context.Background(), tree, nil)
	// Output:
	// start first
	// start second
}
