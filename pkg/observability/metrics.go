package observability

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/events"
	"github.com/prometheus/client_golang/prometheus"
)

// Execution outcomes used as the status label.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics records Prometheus metrics for every execution observed on a bus.
type Metrics struct {
	executions *prometheus.CounterVec
	errors     *prometheus.CounterVec
	paths      *prometheus.CounterVec
	duration   *prometheus.HistogramVec

	mu      sync.Mutex
	started map[string]runStart
}

type runStart struct {
	tree string
	at   time.Time
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_executions_total",
				Help: "Total number of finished executions",
			},
			[]string{"tree", "status"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_function_errors_total",
				Help: "Total number of failed executions by error kind",
			},
			[]string{"tree", "kind"},
		),
		paths: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbor_paths_total",
				Help: "Total number of branches taken",
			},
			[]string{"tree", "path"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbor_execution_duration_seconds",
				Help:    "Duration of executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tree"},
		),
		started: make(map[string]runStart),
	}

	if reg == nil {
		return m, nil
	}
	var err error
	if m.executions, err = register(reg, m.executions); err != nil {
		return nil, err
	}
	if m.errors, err = register(reg, m.errors); err != nil {
		return nil, err
	}
	if m.paths, err = register(reg, m.paths); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg. When an identical collector is already registered,
// that one is returned so observations reach the exported series.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// Attach subscribes the metrics to every event on bus.
func (m *Metrics) Attach(bus *events.Bus) events.Subscription {
	return bus.OnAll(m.Observe)
}

// Observe updates the collectors for ev.
func (m *Metrics) Observe(_ context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventExecutionStart:
		info, _ := ev.Data[domain.DataExecution].(domain.ExecutionInfo)
		m.mu.Lock()
		m.started[ev.ExecutionID] = runStart{tree: info.Name, at: ev.Timestamp}
		m.mu.Unlock()

	case domain.EventPathStart:
		path, _ := ev.Data[domain.DataPath].(string)
		m.paths.WithLabelValues(m.treeOf(ev.ExecutionID), path).Inc()

	case domain.EventExecutionEnd:
		m.finish(ev, StatusSuccess)

	case domain.EventFunctionError:
		info, _ := ev.Data[domain.DataError].(map[string]any)
		kind, _ := info["kind"].(string)
		m.errors.WithLabelValues(m.treeOf(ev.ExecutionID), kind).Inc()
		m.finish(ev, StatusError)
	}
}

func (m *Metrics) treeOf(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started[id].tree
}

func (m *Metrics) finish(ev domain.Event, status string) {
	m.mu.Lock()
	start, ok := m.started[ev.ExecutionID]
	delete(m.started, ev.ExecutionID)
	m.mu.Unlock()

	m.executions.WithLabelValues(start.tree, status).Inc()
	if ok && !ev.Timestamp.Before(start.at) {
		m.duration.WithLabelValues(start.tree).Observe(ev.Timestamp.Sub(start.at).Seconds())
	}
}
