/*
Package ports defines the driven ports (interfaces) of the arbor engine.

These interfaces decouple the engine from the code that extends it: providers
that build the step context, stores that keep emitted events, and loaders that
resolve trees by name.

# Key Interfaces

  - Provider: Adds capabilities to the context handed to a step.
  - RunInitializer: Optional provider hook invoked once per run.
  - TraceStore: Persists the events of an execution for later replay.
  - TreeLoader: Resolves compiled trees by name (e.g. from YAML documents).
*/
package ports
