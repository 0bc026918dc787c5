package trace_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *domain.Tree {
	return dsl.New("sample").
		Step("a", func(*domain.Context) (domain.Result, error) {
			return domain.Merge(domain.Payload{"a": 1}), nil
		}).
		Step("b", func(*domain.Context) (domain.Result, error) {
			return domain.Continue(), nil
		}).
		MustBuild()
}

func TestWriterAndRead(t *testing.T) {
	var buf bytes.Buffer
	w := trace.NewWriter(&buf)
	engine := runtime.NewEngine()
	engine.Bus().OnAll(w.Observe)

	_, err := engine.RunSync(context.Background(), sampleTree(), nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)

	events, err := trace.Read(&buf)
	require.NoError(t, err)
	require.Len(t, events, 6)
	assert.Equal(t, domain.EventExecutionStart, events[0].Type)
	assert.Equal(t, domain.EventExecutionEnd, events[5].Type)

	index, ok := events[1].Index()
	assert.True(t, ok)
	assert.Equal(t, 0, index)
}

func TestOpenFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")

	for _, id := range []string{"e1", "e2"} {
		w, err := trace.OpenFile(path)
		require.NoError(t, err)
		require.NoError(t, w.Write(domain.Event{ExecutionID: id, Type: domain.EventExecutionStart}))
		require.NoError(t, w.Close())
	}

	events, err := trace.ReadFile(path)
	require.NoError(t, err)
	ids, groups := trace.GroupByExecution(events)
	assert.Equal(t, []string{"e1", "e2"}, ids)
	assert.Len(t, groups["e2"], 1)
}

func TestRead_InvalidLine(t *testing.T) {
	_, err := trace.Read(strings.NewReader("{\"type\":\"executionStart\"}\n\nnot json\n"))
	assert.ErrorContains(t, err, "line 3")
}

func TestRecorder(t *testing.T) {
	store := memory.NewStore()
	engine := runtime.NewEngine()
	rec := trace.NewRecorder(store)
	rec.Attach(engine.Bus())

	h := engine.Run(context.Background(), sampleTree(), nil)
	_, err := h.Wait()
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	events, err := store.Load(context.Background(), h.Execution().ID)
	require.NoError(t, err)
	require.Len(t, events, 6)
	for _, e := range events {
		assert.Equal(t, h.Execution().ID, e.ExecutionID)
	}
}

type failingStore struct{}

func (failingStore) Append(context.Context, domain.Event) error { return errors.New("disk full") }
func (failingStore) Load(context.Context, string) ([]domain.Event, error) {
	return nil, domain.ErrExecutionNotFound
}
func (failingStore) List(context.Context) ([]string, error) { return nil, nil }
func (failingStore) Delete(context.Context, string) error   { return nil }

func TestRecorder_StoreFailureDoesNotFailRun(t *testing.T) {
	var logs bytes.Buffer
	engine := runtime.NewEngine()
	rec := trace.NewRecorder(failingStore{}, trace.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	rec.Attach(engine.Bus())

	_, err := engine.RunSync(context.Background(), sampleTree(), nil)
	require.NoError(t, err)
	require.NoError(t, rec.Close())
	assert.Contains(t, logs.String(), "disk full")
}

// blockingStore holds every Append until release is closed or the append
// context ends.
type blockingStore struct {
	failingStore
	release chan struct{}
}

func (s blockingStore) Append(ctx context.Context, _ domain.Event) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestRecorder_SlowStoreDoesNotBlockRun(t *testing.T) {
	var logs bytes.Buffer
	store := blockingStore{release: make(chan struct{})}
	engine := runtime.NewEngine()
	rec := trace.NewRecorder(store,
		trace.WithQueueSize(2),
		trace.WithAppendTimeout(10*time.Second),
		trace.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	rec.Attach(engine.Bus())

	start := time.Now()
	_, err := engine.RunSync(context.Background(), sampleTree(), nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	// Six events: at most one in flight and two queued.
	assert.GreaterOrEqual(t, rec.Dropped(), int64(3))
	assert.Contains(t, logs.String(), "trace queue full")

	close(store.release)
	require.NoError(t, rec.Close())
}

func TestRecorder_AppendTimeout(t *testing.T) {
	var logs bytes.Buffer
	store := blockingStore{release: make(chan struct{})}
	engine := runtime.NewEngine()
	rec := trace.NewRecorder(store,
		trace.WithAppendTimeout(10*time.Millisecond),
		trace.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	rec.Attach(engine.Bus())

	_, err := engine.RunSync(context.Background(), sampleTree(), nil)
	require.NoError(t, err)
	require.NoError(t, rec.Close())
	assert.Contains(t, logs.String(), "deadline exceeded")
	assert.Zero(t, rec.Dropped())
}

func TestRecorder_IgnoresEventsAfterClose(t *testing.T) {
	store := memory.NewStore()
	engine := runtime.NewEngine()
	rec := trace.NewRecorder(store)
	rec.Attach(engine.Bus())
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	h := engine.Run(context.Background(), sampleTree(), nil)
	_, err := h.Wait()
	require.NoError(t, err)

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
