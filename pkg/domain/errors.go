package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownPath is wrapped by structural errors raised when a step selects a branch the tree does not declare.
var ErrUnknownPath = errors.New("unknown path")

// ErrTreeNotFound is returned when a tree name cannot be resolved by a loader or registry.
var ErrTreeNotFound = errors.New("tree not found")

// ErrFunctionNotFound is returned when a declarative tree references an unregistered function.
var ErrFunctionNotFound = errors.New("function not found")

// ErrExecutionNotFound is returned when a trace store has no events for an execution ID.
var ErrExecutionNotFound = errors.New("execution not found")

// ErrMissingRemoteDebugger is returned when the devtools connector is built without an address.
var ErrMissingRemoteDebugger = errors.New(`you have to pass in the "remoteDebugger" option`)

// ErrorKind classifies why a run failed.
type ErrorKind string

const (
	// KindProvider means a provider failed while building the context of a step.
	KindProvider ErrorKind = "ProviderError"
	// KindStep means the step itself failed, panicked or its deferred result was rejected.
	KindStep ErrorKind = "StepExecutionError"
	// KindStructural means the tree could not route a result, e.g. an undeclared path.
	KindStructural ErrorKind = "StructuralTreeError"
	// KindConfiguration means the engine, a provider or a tree is misconfigured.
	KindConfiguration ErrorKind = "ConfigurationError"
)

// ExecutionError is the structured error a run rejects with.
type ExecutionError struct {
	Kind          ErrorKind `json:"kind"`
	Message       string    `json:"message"`
	FunctionIndex int       `json:"functionIndex"`
	FunctionName  string    `json:"functionName,omitempty"`
	ExecutionID   string    `json:"executionId,omitempty"`
	Err           error     `json:"-"`
}

func (e *ExecutionError) Error() string {
	if e.FunctionIndex < 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s at function %d (%s): %s", e.Kind, e.FunctionIndex, e.FunctionName, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ConfigError builds a configuration error that is not attributed to any function.
func ConfigError(format string, args ...any) *ExecutionError {
	err := fmt.Errorf(format, args...)
	return &ExecutionError{
		Kind:          KindConfiguration,
		Message:       err.Error(),
		FunctionIndex: -1,
		Err:           errors.Unwrap(err),
	}
}

// IsKind reports whether err is an ExecutionError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind == kind
	}
	return false
}
