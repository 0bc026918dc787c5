package domain

import (
	"context"
	"time"
)

// ProtocolVersion tags every event envelope so consumers can detect schema changes.
const ProtocolVersion = "1"

// DefaultSource is the source tag of events emitted by the engine unless configured otherwise.
const DefaultSource = "ft"

// EventType defines the category of the event.
type EventType string

const (
	EventExecutionStart EventType = "executionStart"
	EventFunctionStart  EventType = "functionStart"
	EventPathStart      EventType = "pathStart"
	EventFunctionEnd    EventType = "functionEnd"
	EventFunctionError  EventType = "executionFunctionError"
	EventExecutionEnd   EventType = "executionEnd"
	// EventExecutionData carries side-channel data sent through the Debugger capability.
	EventExecutionData EventType = "execution"
)

// AllEventTypes lists every lifecycle event type in emission order of a successful run.
var AllEventTypes = []EventType{
	EventExecutionStart,
	EventFunctionStart,
	EventPathStart,
	EventFunctionEnd,
	EventFunctionError,
	EventExecutionEnd,
	EventExecutionData,
}

// Event data keys.
const (
	DataExecution = "execution"
	DataPayload   = "payload"
	DataOutput    = "output"
	DataPath      = "path"
	DataError     = "error"
	DataName      = "name"
	DataDebug     = "data"
)

// Event is the self-describing envelope emitted on the event channel.
type Event struct {
	Type          EventType      `json:"type"`
	Source        string         `json:"source"`
	Version       string         `json:"version"`
	Timestamp     time.Time      `json:"timestamp"`
	ExecutionID   string         `json:"executionId"`
	FunctionIndex *int           `json:"functionIndex,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
}

// Index returns the function index of the event, if any.
func (e Event) Index() (int, bool) {
	if e.FunctionIndex == nil {
		return 0, false
	}
	return *e.FunctionIndex, true
}

// IndexOf is a helper to build the FunctionIndex field.
func IndexOf(i int) *int {
	return &i
}

// LifecycleHooks defines callbacks for engine observability.
// Each non-nil hook is subscribed to the matching event type.
type LifecycleHooks struct {
	OnExecutionStart func(context.Context, Event)
	OnFunctionStart  func(context.Context, Event)
	OnPathStart      func(context.Context, Event)
	OnFunctionEnd    func(context.Context, Event)
	OnFunctionError  func(context.Context, Event)
	OnExecutionEnd   func(context.Context, Event)
}

// Bindings returns the non-nil hooks keyed by event type.
func (h LifecycleHooks) Bindings() map[EventType]func(context.Context, Event) {
	out := make(map[EventType]func(context.Context, Event))
	add := func(t EventType, fn func(context.Context, Event)) {
		if fn != nil {
			out[t] = fn
		}
	}
	add(EventExecutionStart, h.OnExecutionStart)
	add(EventFunctionStart, h.OnFunctionStart)
	add(EventPathStart, h.OnPathStart)
	add(EventFunctionEnd, h.OnFunctionEnd)
	add(EventFunctionError, h.OnFunctionError)
	add(EventExecutionEnd, h.OnExecutionEnd)
	return out
}
