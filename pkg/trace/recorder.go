package trace

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/events"
	"github.com/aretw0/arbor/pkg/ports"
)

// Recorder defaults.
const (
	DefaultQueueSize     = 1024
	DefaultAppendTimeout = 5 * time.Second
)

// Recorder appends the events published on a bus to a store.
//
// Observe only queues the event; a single worker appends queued events in order.
// When the queue is full the incoming event is dropped and counted, so a slow
// or unreachable store never holds up a run.
type Recorder struct {
	store         ports.TraceStore
	logger        *slog.Logger
	queueSize     int
	appendTimeout time.Duration

	mu       sync.RWMutex
	closed   bool
	queue    chan queued
	done     chan struct{}
	dropped  atomic.Int64
	dropping atomic.Bool
}

type queued struct {
	ctx context.Context
	ev  domain.Event
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger used to report failed appends.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithQueueSize bounds the events waiting to be appended.
func WithQueueSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithAppendTimeout bounds each call to the store.
func WithAppendTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.appendTimeout = d
		}
	}
}

// NewRecorder creates a recorder writing to store and starts its worker. Call
// Close to flush the queue and stop it.
func NewRecorder(store ports.TraceStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:         store,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		queueSize:     DefaultQueueSize,
		appendTimeout: DefaultAppendTimeout,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = make(chan queued, r.queueSize)
	go r.work()
	return r
}

// Attach subscribes the recorder to every event on bus.
func (r *Recorder) Attach(bus *events.Bus) events.Subscription {
	return bus.OnAll(r.Observe)
}

// Observe queues ev for appending. It never blocks.
func (r *Recorder) Observe(ctx context.Context, ev domain.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	// The run context may already be cancelled when its last event is emitted.
	select {
	case r.queue <- queued{ctx: context.WithoutCancel(ctx), ev: ev}:
		r.dropping.Store(false)
	default:
		r.dropped.Add(1)
		if !r.dropping.Swap(true) {
			r.logger.Warn("trace queue full, dropping events",
				"size", r.queueSize,
				"execution_id", ev.ExecutionID,
			)
		}
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting events and waits until the queued ones are appended.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
	return nil
}

func (r *Recorder) work() {
	defer close(r.done)
	for q := range r.queue {
		ctx, cancel := context.WithTimeout(q.ctx, r.appendTimeout)
		err := r.store.Append(ctx, q.ev)
		cancel()
		if err != nil {
			r.logger.Error("failed to record event",
				"execution_id", q.ev.ExecutionID,
				"type", q.ev.Type,
				"err", err,
			)
		}
	}
}
