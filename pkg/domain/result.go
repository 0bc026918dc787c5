package domain

import "context"

// ResultKind tags the variant carried by a Result.
type ResultKind uint8

const (
	// ResultNone continues to the next node without touching the payload.
	ResultNone ResultKind = iota
	// ResultMerge shallow-merges a mapping into the payload and continues.
	ResultMerge
	// ResultPath selects a named branch of the following branch map.
	ResultPath
	// ResultDeferred suspends the run until an asynchronous computation settles.
	ResultDeferred
)

func (k ResultKind) String() string {
	switch k {
	case ResultNone:
		return "none"
	case ResultMerge:
		return "merge"
	case ResultPath:
		return "path"
	case ResultDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// DeferredFunc is an asynchronous step continuation.
// The engine runs it off the run's synchronous path and interprets its Result once it returns.
type DeferredFunc func(ctx context.Context) (Result, error)

// Path is a step's explicit selection of a named branch plus the payload carried into it.
type Path struct {
	Name    string  `json:"name"`
	Payload Payload `json:"payload,omitempty"`
}

// Result is the value a step returns. The zero value is equivalent to Continue().
type Result struct {
	kind     ResultKind
	payload  Payload
	path     string
	deferred DeferredFunc
}

// Continue returns a result that leaves the payload untouched.
func Continue() Result {
	return Result{kind: ResultNone}
}

// Merge returns a result whose mapping is shallow-merged into the payload.
func Merge(p Payload) Result {
	return Result{kind: ResultMerge, payload: p}
}

// Take returns a result selecting the branch named name, carrying p into it.
func Take(name string, p Payload) Result {
	return Result{kind: ResultPath, path: name, payload: p}
}

// Defer returns a result that suspends the run until fn returns.
func Defer(fn DeferredFunc) Result {
	return Result{kind: ResultDeferred, deferred: fn}
}

// Kind reports which variant the result carries.
func (r Result) Kind() ResultKind {
	return r.kind
}

// Payload returns the mapping carried by a merge or path result.
func (r Result) Payload() Payload {
	return r.payload
}

// Path returns the branch selection of a path result.
func (r Result) Path() (Path, bool) {
	if r.kind != ResultPath {
		return Path{}, false
	}
	return Path{Name: r.path, Payload: r.payload}, true
}

// Deferred returns the continuation of a deferred result.
func (r Result) Deferred() DeferredFunc {
	return r.deferred
}

// Reported reports whether the step that returned r closes with a functionEnd
// event. A path without payload is a pure routing decision and is not reported.
func (r Result) Reported() bool {
	return r.kind != ResultPath || len(r.payload) > 0
}
