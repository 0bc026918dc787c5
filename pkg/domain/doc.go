/*
Package domain contains the core domain models of the arbor execution engine.

It defines the declarative tree grammar, the values a step may produce, the
execution record that identifies a run and the events emitted while a run
progresses. This package is kept pure and free of I/O, transport or storage
concerns, following Hexagonal Architecture principles.

# Key Entities

  - Sequence / Func / Paths: the declarative tree grammar.
  - Tree: a compiled, immutable tree with stable function indices and its static description.
  - Result: the tagged variant a step returns (continue, merge, path, deferred).
  - Context: the value handed to a step (props, execution metadata, capabilities).
  - Execution: the per-run record (identity, timestamps, status, in-flight functions).
  - Event: the self-describing observability envelope.
  - ExecutionError: the structured error every failed run rejects with.
*/
package domain
