package devtools_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/devtools"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

// fakeDebugger records every message it receives.
type fakeDebugger struct {
	received chan map[string]any
	addr     string
}

// newFakeDebugger starts a debugger that answers "pong" to "ping", or that
// greets new connections with its own "ping" when initiate is true.
func newFakeDebugger(t *testing.T, initiate bool) *fakeDebugger {
	t.Helper()
	fd := &fakeDebugger{received: make(chan map[string]any, 256)}

	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()
		if initiate {
			_ = websocket.JSON.Send(conn, map[string]string{"type": devtools.MsgPing})
		}
		for {
			var msg map[string]any
			if err := websocket.JSON.Receive(conn, &msg); err != nil {
				return
			}
			if msg["type"] == devtools.MsgPing && !initiate {
				_ = websocket.JSON.Send(conn, map[string]string{"type": devtools.MsgPong})
			}
			fd.received <- msg
		}
	}))
	t.Cleanup(srv.Close)

	fd.addr = strings.TrimPrefix(srv.URL, "http://")
	return fd
}

func (fd *fakeDebugger) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case msg := <-fd.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a debugger message")
		return nil
	}
}

func (fd *fakeDebugger) types(t *testing.T, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fd.next(t)["type"].(string))
	}
	return out
}

func routingTree() *domain.Tree {
	return dsl.New("route").
		Step("stepA", func(*domain.Context) (domain.Result, error) {
			return domain.Take("ok", domain.Payload{"x": 1}), nil
		}).
		Branch("ok", dsl.Fn("stepB", func(*domain.Context) (domain.Result, error) {
			return domain.Continue(), nil
		})).
		MustBuild()
}

func TestNew_RequiresRemoteDebugger(t *testing.T) {
	_, err := devtools.New("  ")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingRemoteDebugger)
	assert.True(t, domain.IsKind(err, domain.KindConfiguration))
}

func TestDevtools_FlushesBacklogInOrder(t *testing.T) {
	fd := newFakeDebugger(t, false)
	eng, err := arbor.New()
	require.NoError(t, err)

	d, err := devtools.New(fd.addr, devtools.WithReconnectInterval(10*time.Millisecond))
	require.NoError(t, err)
	d.Attach(eng)
	t.Cleanup(func() { _ = d.Close() })

	h := eng.Run(context.Background(), routingTree(), nil)
	_, err = h.Wait()
	require.NoError(t, err)
	assert.Equal(t, 6, d.Pending())

	d.Start(context.Background())

	assert.Equal(t, []string{
		devtools.MsgPing,
		devtools.MsgInit,
		devtools.MsgExecutionStart,
		devtools.MsgExecutionFunctionStart,
		devtools.MsgExecutionPathStart,
		devtools.MsgExecutionFunctionEnd,
		devtools.MsgExecutionFunctionStart,
		devtools.MsgExecutionEnd,
	}, fd.types(t, 8))
	assert.Eventually(t, d.Connected, time.Second, 5*time.Millisecond)
	assert.Zero(t, d.Pending())

	// Once connected, messages go straight to the debugger.
	_, err = eng.RunSync(context.Background(), routingTree(), nil)
	require.NoError(t, err)
	start := fd.next(t)
	assert.Equal(t, devtools.MsgExecutionStart, start["type"])
	assert.Equal(t, "ft", start["source"])

	exec := start["data"].(map[string]any)["execution"].(map[string]any)
	assert.Equal(t, "route", exec["name"])
	assert.NotNil(t, exec["staticTree"])
	assert.Nil(t, exec["executedBy"])
}

func TestDevtools_DebuggerInitiatedHandshake(t *testing.T) {
	fd := newFakeDebugger(t, true)
	d, err := devtools.New("ws://"+fd.addr, devtools.WithVersion("9.9.9"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	d.Start(context.Background())

	assert.Equal(t, devtools.MsgPing, fd.next(t)["type"])
	initMsg := fd.next(t)
	assert.Equal(t, devtools.MsgInit, initMsg["type"])
	assert.Equal(t, "9.9.9", initMsg["version"])
	assert.Eventually(t, d.Connected, time.Second, 5*time.Millisecond)
}

func TestDevtools_DebuggerProviderSendsExecutionData(t *testing.T) {
	fd := newFakeDebugger(t, false)
	eng, _ := arbor.New()
	d, err := devtools.New(fd.addr)
	require.NoError(t, err)
	d.Attach(eng)
	t.Cleanup(func() { _ = d.Close() })

	d.Start(context.Background())
	assert.Equal(t, []string{devtools.MsgPing, devtools.MsgInit}, fd.types(t, 2))
	require.Eventually(t, d.Connected, time.Second, 5*time.Millisecond)

	tree := dsl.New("debug").Step("send", func(ctx *domain.Context) (domain.Result, error) {
		ctx.Debugger.Send(map[string]any{"hello": "world"})
		return domain.Continue(), nil
	}).MustBuild()
	_, err = eng.RunSync(context.Background(), tree, domain.Payload{"n": 1})
	require.NoError(t, err)

	assert.Equal(t, devtools.MsgExecutionStart, fd.next(t)["type"])
	assert.Equal(t, devtools.MsgExecutionFunctionStart, fd.next(t)["type"])
	data := fd.next(t)
	assert.Equal(t, devtools.MsgExecution, data["type"])
	exec := data["data"].(map[string]any)["execution"].(map[string]any)
	assert.Equal(t, map[string]any{"hello": "world"}, exec["data"])
	assert.Equal(t, map[string]any{"n": 1.0}, exec["payload"])
	assert.NotZero(t, exec["datetime"])
	assert.Equal(t, 0.0, exec["functionIndex"])
}

func TestDevtools_BacklogIsBounded(t *testing.T) {
	eng, _ := arbor.New()
	d, err := devtools.New("127.0.0.1:1", devtools.WithBacklog(3, devtools.DropOldest))
	require.NoError(t, err)
	d.Attach(eng)

	_, err = eng.RunSync(context.Background(), routingTree(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Pending())
}

func TestDevtools_Detach(t *testing.T) {
	eng, _ := arbor.New()
	d, err := devtools.New("127.0.0.1:1")
	require.NoError(t, err)

	d.Attach(eng)
	d.Attach(eng)
	assert.Equal(t, 1, eng.Events().Len())

	d.Detach(eng)
	assert.Zero(t, eng.Events().Len())

	_, err = eng.RunSync(context.Background(), routingTree(), nil)
	require.NoError(t, err)
	assert.Zero(t, d.Pending())
}

// newStalledDebugger completes the handshake and then stops reading, so the
// connection's buffers fill up.
func newStalledDebugger(t *testing.T) (addr string, initialized <-chan struct{}) {
	t.Helper()
	ready := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()
		var msg map[string]any
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			return
		}
		_ = websocket.JSON.Send(conn, map[string]string{"type": devtools.MsgPong})
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			return
		}
		if msg["type"] == devtools.MsgInit {
			close(ready)
		}
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	return strings.TrimPrefix(srv.URL, "http://"), ready
}

func TestDevtools_StalledDebuggerDoesNotBlockRuns(t *testing.T) {
	addr, initialized := newStalledDebugger(t)
	eng, err := arbor.New()
	require.NoError(t, err)

	d, err := devtools.New(addr, devtools.WithReconnect(false))
	require.NoError(t, err)
	d.Attach(eng)
	t.Cleanup(func() { _ = d.Close() })

	d.Start(context.Background())
	select {
	case <-initialized:
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not complete")
	}
	require.Eventually(t, d.Connected, time.Second, 5*time.Millisecond)

	big := strings.Repeat("x", 8<<20)
	tree := dsl.New("large").Step("fill", func(*domain.Context) (domain.Result, error) {
		return domain.Merge(domain.Payload{"blob": big}), nil
	}).MustBuild()

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err = eng.RunSync(context.Background(), tree, nil)
		require.NoError(t, err)
	}
	// Writes time out after DefaultWriteTimeout; runs must not wait for that.
	assert.Less(t, time.Since(start), 3*time.Second)
}
