package domain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
)

// ReservedExecution is the capability name owned by the engine.
const ReservedExecution = "execution"

// Method is an instrumentable capability method.
type Method func(args ...any) (any, error)

// MethodSet is a capability made of named methods. Debuggers can wrap it to observe every call.
type MethodSet map[string]Method

// Debugger is the side-channel a step or provider uses to report activity to observers.
// Its behaviour never depends on whether an observer is attached.
type Debugger interface {
	// Send forwards data tagged with the current execution and function.
	Send(data any)
	// WrapProvider instruments every method of the named MethodSet capability.
	WrapProvider(name string) error
}

// Runner starts nested runs on behalf of a step.
type Runner interface {
	RunNested(ctx context.Context, parent *Execution, tree *Tree, payload Payload) (Payload, error)
}

// Context is the value passed into a step.
type Context struct {
	// Props is the payload snapshot handed to the step.
	Props Payload
	// Execution is the record of the run the step belongs to.
	Execution *Execution
	// Function identifies the step within the tree.
	Function FunctionDetails
	// Logger is the structured logger for the step.
	Logger *slog.Logger
	// Debugger is always usable; a no-op unless a provider attached a real one.
	Debugger Debugger

	ctx    context.Context
	caps   map[string]any
	runner Runner
}

// NewContext creates the base context the provider chain folds over.
func NewContext(ctx context.Context, exec *Execution, fn FunctionDetails, props Payload, runner Runner) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		Props:     props,
		Execution: exec,
		Function:  fn,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Debugger:  NopDebugger{},
		ctx:       ctx,
		caps:      make(map[string]any),
		runner:    runner,
	}
}

// Context returns the Go context of the run, for cancellation and trace propagation.
func (c *Context) Context() context.Context {
	return c.ctx
}

// WithContext replaces the Go context. Providers use it to attach values such as spans.
func (c *Context) WithContext(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
}

// Get returns the capability registered under name.
func (c *Context) Get(name string) (any, bool) {
	v, ok := c.caps[name]
	return v, ok
}

// Set registers or overwrites a capability. The execution block cannot be replaced.
func (c *Context) Set(name string, value any) error {
	if name == ReservedExecution {
		return fmt.Errorf("capability %q is reserved by the engine", name)
	}
	c.caps[name] = value
	return nil
}

// Capabilities lists the registered capability names, sorted.
func (c *Context) Capabilities() []string {
	names := make([]string, 0, len(c.caps))
	for k := range c.caps {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Run executes tree as an independent nested run and waits for it to settle.
// The nested record carries ExecutedBy set to this run's ID.
func (c *Context) Run(tree *Tree, payload Payload) (Payload, error) {
	if c.runner == nil {
		return nil, fmt.Errorf("nested runs are not supported by this context")
	}
	return c.runner.RunNested(c.ctx, c.Execution, tree, payload)
}

// NopDebugger discards everything.
type NopDebugger struct{}

// Send implements Debugger.
func (NopDebugger) Send(any) {}

// WrapProvider implements Debugger.
func (NopDebugger) WrapProvider(string) error { return nil }
