/*
Package arbor is an execution engine for function trees: declarative control-flow
graphs made of plain Go functions and named branch maps.

A tree is an ordered sequence of steps. A step receives a context built by a chain
of providers and returns a Result: continue, merge data into the payload, select a
named branch of the map that follows it, or defer to an asynchronous computation.
Every run is observable through an event channel (executionStart, functionStart,
pathStart, functionEnd, executionFunctionError, executionEnd) without the engine
knowing anything about the UI, storage or transport consuming those events.

# Concept

The engine owns the control flow and nothing else. Capabilities (loggers, clients,
debuggers) reach steps through providers; observers (loggers, metrics, tracers,
the devtools connector) subscribe to events. Trees are compiled once and may be
run concurrently by any number of executions.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/arbor"
		"github.com/aretw0/arbor/pkg/domain"
		"github.com/aretw0/arbor/pkg/dsl"
		"github.com/aretw0/arbor/pkg/providers"
	)

	func main() {
		tree := dsl.New("greet").
			Step("check", func(ctx *domain.Context) (domain.Result, error) {
				if ctx.Props["name"] == nil {
					return domain.Take("anonymous", nil), nil
				}
				return domain.Take("known", nil), nil
			}).
			Branch("known", dsl.Fn("hello", hello)).
			Branch("anonymous", dsl.Fn("stranger", stranger)).
			MustBuild()

		eng, err := arbor.New(arbor.WithProviders(providers.Logger(nil)))
		if err != nil {
			log.Fatal(err)
		}

		out, err := eng.RunSync(context.Background(), tree, domain.Payload{"name": "Ada"})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(out["greeting"])
	}

Errors are returned as *domain.ExecutionError carrying the kind (ProviderError,
StepExecutionError, StructuralTreeError, ConfigurationError), the function index
and the execution ID.
*/
package arbor
