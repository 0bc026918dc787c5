package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/trace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	handler http.Handler
	store   *memory.Store
	server  *Server
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	greet := dsl.New("greet").
		Step("hello", func(ctx *domain.Context) (domain.Result, error) {
			return domain.Merge(domain.Payload{"greeting": fmt.Sprint("hello ", ctx.Props["name"])}), nil
		}).
		MustBuild()
	broken := dsl.New("broken").
		Step("explode", func(*domain.Context) (domain.Result, error) {
			return domain.Result{}, errors.New("declined")
		}).
		MustBuild()

	loader, err := memory.NewLoader(greet, broken)
	require.NoError(t, err)
	eng, err := arbor.New(arbor.WithLoader(loader))
	require.NoError(t, err)

	store := memory.NewStore()
	rec := trace.NewRecorder(store)
	rec.Attach(eng.Events())
	t.Cleanup(func() { _ = rec.Close() })

	f := &fixture{store: store}
	capture := func(s *Server) { f.server = s }
	f.handler = NewHandler(eng, append([]Option{WithStore(store), capture}, opts...)...)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestTrees(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/trees", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"broken", "greet"}, decode(t, w)["trees"])

	w = f.do(t, "GET", "/trees/greet", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "greet", body["name"])
	assert.NotNil(t, body["staticTree"])

	w = f.do(t, "GET", "/trees/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunTree(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/trees/greet/run", `{"name":"ada"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, map[string]any{"name": "ada", "greeting": "hello ada"}, body["payload"])

	id := body["executionId"].(string)
	require.Eventually(t, func() bool {
		evs, err := f.store.Load(context.Background(), id)
		return err == nil && len(evs) == 4
	}, time.Second, 5*time.Millisecond)
	w = f.do(t, "GET", "/executions/"+id+"/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["events"], 4)

	w = f.do(t, "GET", "/executions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["executions"], id)
}

func TestRunTree_Failure(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/trees/broken/run", "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := decode(t, w)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, string(domain.KindStep), errBody["kind"])
	assert.Equal(t, "declined", errBody["message"])
	assert.Equal(t, 0.0, errBody["functionIndex"])
	assert.Equal(t, "explode", errBody["functionName"])
	assert.NotEmpty(t, body["executionId"])
}

func TestRunTree_BadRequests(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/trees/greet/run", `[1,2]`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "POST", "/trees/ghost/run", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/executions/ghost/events", "").Code)
}

func TestRunTree_Async(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "POST", "/trees/greet/run?async=true", `{"name":"bob"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode(t, w)["executionId"].(string)

	assert.Eventually(t, func() bool {
		evs, err := f.store.Load(context.Background(), id)
		return err == nil && len(evs) > 0 && evs[len(evs)-1].Type == domain.EventExecutionEnd
	}, time.Second, 5*time.Millisecond)
}

func TestGetGraph(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/trees/greet/graph", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `f0["hello"]`)
	assert.NotContains(t, w.Body.String(), "visited")

	id := decode(t, f.do(t, "POST", "/trees/greet/run", `{}`))["executionId"].(string)
	w = f.do(t, "GET", "/trees/greet/graph?execution="+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "class f0 visited;")
}

func TestMetricsAndInfo(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "arbor_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	f := newFixture(t, WithMetrics(reg))

	w := f.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "arbor_test_total 1")

	w = f.do(t, "GET", "/info", "")
	assert.Equal(t, arbor.Version, decode(t, w)["version"])

	assert.Equal(t, http.StatusOK, f.do(t, "GET", "/health", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, "OPTIONS", "/trees", "").Code)
}

func TestWithoutStore(t *testing.T) {
	eng, err := arbor.New()
	require.NoError(t, err)
	h := NewHandler(eng)

	req := httptest.NewRequest("GET", "/executions", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	req = httptest.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscribeEvents(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/events?types=executionStart,executionEnd", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		require.True(t, lines.Scan())
		return lines.Text()
	}
	assert.Equal(t, "event: ping", next())
	assert.Equal(t, "data: connected", next())
	require.Eventually(t, func() bool { return f.server.Streams.Len() == 1 }, time.Second, 5*time.Millisecond)

	w := f.do(t, "POST", "/trees/greet/run", `{"name":"sse"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var seen []string
	for len(seen) < 2 {
		line := next()
		if after, ok := strings.CutPrefix(line, "event: "); ok {
			seen = append(seen, after)
		}
	}
	assert.Equal(t, []string{"executionStart", "executionEnd"}, seen)

	cancel()
	assert.Eventually(t, func() bool { return f.server.Streams.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSubscribeEvents_ExecutionFilter(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/events?execution=watched", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		require.True(t, lines.Scan())
		return lines.Text()
	}
	assert.Equal(t, "event: ping", next())
	require.Eventually(t, func() bool { return f.server.Streams.Len() == 1 }, time.Second, 5*time.Millisecond)

	// Events of other executions never reach the stream.
	w := f.do(t, "POST", "/trees/greet/run", `{"name":"other"}`)
	require.Equal(t, http.StatusOK, w.Code)
	f.server.Streams.Broadcast("watched", Message{Type: "marker", Data: "{}"})

	for {
		line := next()
		if after, ok := strings.CutPrefix(line, "event: "); ok {
			assert.Equal(t, "marker", after)
			break
		}
	}
}

func TestStreamManager_ExecutionFilter(t *testing.T) {
	sm := NewStreamManager()
	one, cancelOne := sm.Subscribe("e1")
	all, cancelAll := sm.Subscribe("")
	defer cancelAll()

	sm.Broadcast("e1", Message{Type: "a"})
	sm.Broadcast("e2", Message{Type: "b"})

	assert.Equal(t, "a", (<-one).Type)
	assert.Len(t, one, 0)
	assert.Equal(t, "a", (<-all).Type)
	assert.Equal(t, "b", (<-all).Type)

	cancelOne()
	_, open := <-one
	assert.False(t, open)
}
