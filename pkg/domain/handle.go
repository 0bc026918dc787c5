package domain

import "sync"

// Handle is the caller's view of a run. It settles exactly once.
type Handle struct {
	exec    *Execution
	done    chan struct{}
	once    sync.Once
	payload Payload
	err     error
}

// NewHandle creates an unsettled handle for exec.
func NewHandle(exec *Execution) *Handle {
	return &Handle{
		exec: exec,
		done: make(chan struct{}),
	}
}

// Execution returns the record of the run.
func (h *Handle) Execution() *Execution {
	return h.exec
}

// Done is closed once the run settled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run settles and returns its final payload or error.
func (h *Handle) Wait() (Payload, error) {
	<-h.done
	return h.payload, h.err
}

// Resolve settles the handle successfully. It reports false if the handle was already settled.
func (h *Handle) Resolve(p Payload) bool {
	settled := false
	h.once.Do(func() {
		h.exec.Settle(StatusSucceeded)
		h.payload = p
		settled = true
		close(h.done)
	})
	return settled
}

// Reject settles the handle with err. It reports false if the handle was already settled.
func (h *Handle) Reject(err error) bool {
	settled := false
	h.once.Do(func() {
		h.exec.Settle(StatusFailed)
		h.err = err
		settled = true
		close(h.done)
	})
	return settled
}
