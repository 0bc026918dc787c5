package domain

import (
	"sort"
	"sync"
	"time"
)

// ExecutionStatus is the lifecycle state of a run.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"   // Created, no step dispatched yet
	StatusRunning   ExecutionStatus = "running"   // At least one step dispatched
	StatusSucceeded ExecutionStatus = "succeeded" // Tree exhausted
	StatusFailed    ExecutionStatus = "failed"    // Aborted by an error
)

// Terminal reports whether the status is a settled one.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ExecutionInfo is the immutable, serialisable part of an execution record.
type ExecutionInfo struct {
	ID         string      `json:"executionId"`
	Name       string      `json:"name"`
	Datetime   time.Time   `json:"datetime"`
	StaticTree *StaticNode `json:"staticTree"`
	ExecutedBy string      `json:"executedBy,omitempty"`
}

// Execution is the per-run record. One is created for every call that runs a tree.
type Execution struct {
	ExecutionInfo

	mu       sync.Mutex
	status   ExecutionStatus
	inFlight map[int]struct{}
	state    *RunState
}

// NewExecution creates a pending execution record.
func NewExecution(info ExecutionInfo) *Execution {
	return &Execution{
		ExecutionInfo: info,
		status:        StatusPending,
		inFlight:      make(map[int]struct{}),
		state:         &RunState{},
	}
}

// Info returns a copy of the immutable metadata.
func (e *Execution) Info() ExecutionInfo {
	return e.ExecutionInfo
}

// Status returns the current lifecycle state.
func (e *Execution) Status() ExecutionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// State returns the run-scoped state bag providers may use to cache capabilities.
func (e *Execution) State() *RunState {
	return e.state
}

// Enter marks the function at index as in flight and moves a pending run to running.
func (e *Execution) Enter(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusPending {
		e.status = StatusRunning
	}
	e.inFlight[index] = struct{}{}
}

// Leave clears the in-flight mark of the function at index.
func (e *Execution) Leave(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, index)
}

// InFlight returns the sorted indices of functions currently executing.
func (e *Execution) InFlight() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, 0, len(e.inFlight))
	for i := range e.inFlight {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Settle moves the record to a terminal status. Only the first call wins.
func (e *Execution) Settle(status ExecutionStatus) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.Terminal() || !status.Terminal() {
		return false
	}
	e.status = status
	clear(e.inFlight)
	return true
}

// RunState is a concurrency-safe bag scoped to a single run.
type RunState struct {
	values sync.Map
}

// Load returns the value stored under key.
func (s *RunState) Load(key string) (any, bool) {
	return s.values.Load(key)
}

// LoadOrCreate returns the value under key, creating it with factory on first use.
func (s *RunState) LoadOrCreate(key string, factory func() (any, error)) (any, error) {
	if v, ok := s.values.Load(key); ok {
		return v, nil
	}
	v, err := factory()
	if err != nil {
		return nil, err
	}
	actual, _ := s.values.LoadOrStore(key, v)
	return actual, nil
}
