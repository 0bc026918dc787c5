// Package devtools streams execution events to a remote debugger over a websocket.
//
// The debugger might be running when the application starts or it might be opened
// later. The connector therefore always starts with a handshake:
//
//  1. Debugger already open: the connector sends "ping", the debugger answers
//     "pong" and the connector sends "init".
//  2. Debugger opened later: the debugger sends "ping" and the connector sends "init".
//
// Every message goes through a bounded backlog. Listeners only enqueue; a writer
// goroutine owned by the connection drains the backlog, in order, once "init" is
// sent. A slow or stalled debugger therefore never holds up the run that
// produced the message. A failed write closes the connection and the connector
// reconnects, keeping what was not delivered.
package devtools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/events"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/providers"
	"golang.org/x/net/websocket"
)

// Defaults used when no option overrides them.
const (
	DefaultReconnectInterval = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultVersion           = "1.0.0"
)

// Target is an engine the connector can observe.
type Target interface {
	Events() *events.Bus
	UseFirst(providers ...ports.Provider)
	RemoveProvider(p ports.Provider)
}

// Devtools is the debugger connector.
type Devtools struct {
	url               string
	origin            string
	reconnect         bool
	reconnectInterval time.Duration
	writeTimeout      time.Duration
	source            string
	version           string
	logger            *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	backlog   *backlog
	attached  map[Target]attachment
	wake      chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

type attachment struct {
	subscription events.Subscription
	provider     ports.Provider
}

// Option configures the connector.
type Option func(*Devtools)

// WithReconnect toggles reconnecting after the connection drops (default true).
func WithReconnect(enabled bool) Option {
	return func(d *Devtools) { d.reconnect = enabled }
}

// WithReconnectInterval sets the delay between connection attempts.
func WithReconnectInterval(interval time.Duration) Option {
	return func(d *Devtools) {
		if interval > 0 {
			d.reconnectInterval = interval
		}
	}
}

// WithBacklog bounds the messages kept while disconnected and selects what to drop when full.
func WithBacklog(size int, policy OverflowPolicy) Option {
	return func(d *Devtools) { d.backlog = newBacklog(size, policy) }
}

// WithLogger sets the connector logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Devtools) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithVersion sets the version announced in the "init" message.
func WithVersion(version string) Option {
	return func(d *Devtools) { d.version = version }
}

// New creates a connector for the debugger listening at remoteDebugger
// ("host:port" or a ws:// URL). It does not connect until Start is called.
func New(remoteDebugger string, opts ...Option) (*Devtools, error) {
	addr := strings.TrimSpace(remoteDebugger)
	if addr == "" {
		return nil, domain.ConfigError("devtools: %w", domain.ErrMissingRemoteDebugger)
	}
	url := addr
	if !strings.Contains(addr, "://") {
		url = "ws://" + addr
	}

	d := &Devtools{
		url:               url,
		origin:            "http://localhost/",
		reconnect:         true,
		reconnectInterval: DefaultReconnectInterval,
		writeTimeout:      DefaultWriteTimeout,
		source:            domain.DefaultSource,
		version:           DefaultVersion,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		backlog:           newBacklog(DefaultBacklogSize, DropOldest),
		attached:          make(map[Target]attachment),
		wake:              make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Attach subscribes the connector to target's events and prepends the debugger
// provider to its chain.
func (d *Devtools) Attach(target Target) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.attached[target]; ok {
		return
	}

	provider := providers.Debugger(target.Events())
	sub := target.Events().OnAll(d.onEvent)
	target.UseFirst(provider)
	d.attached[target] = attachment{subscription: sub, provider: provider}
}

// Detach undoes Attach.
func (d *Devtools) Detach(target Target) {
	d.mu.Lock()
	a, ok := d.attached[target]
	delete(d.attached, target)
	d.mu.Unlock()
	if !ok {
		return
	}
	target.Events().Off(a.subscription)
	target.RemoveProvider(a.provider)
}

// Start connects in the background and keeps reconnecting until ctx is done or
// Close is called.
func (d *Devtools) Start(ctx context.Context) {
	d.mu.Lock()
	if d.done != nil {
		d.mu.Unlock()
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.mu.Unlock()

	go d.loop(ctx)
}

// Close stops reconnecting, closes the connection and detaches every target.
func (d *Devtools) Close() error {
	d.mu.Lock()
	cancel, done, conn := d.cancel, d.done, d.conn
	targets := make([]Target, 0, len(d.attached))
	for t := range d.attached {
		targets = append(targets, t)
	}
	d.mu.Unlock()

	for _, t := range targets {
		d.Detach(t)
	}
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
	return nil
}

// Connected reports whether the handshake completed on the current connection.
func (d *Devtools) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Pending returns the number of messages waiting in the backlog to be written.
func (d *Devtools) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backlog.len()
}

func (d *Devtools) loop(ctx context.Context) {
	defer close(d.done)
	for {
		err := d.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if !d.reconnect {
			d.logger.Warn("debugger connection closed", "url", d.url, "err", err)
			return
		}
		d.logger.Warn("debugger application is not running on selected port, will reconnect", "url", d.url, "err", err)

		timer := time.NewTimer(d.reconnectInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails.
func (d *Devtools) session(ctx context.Context) error {
	cfg, err := websocket.NewConfig(d.url, d.origin)
	if err != nil {
		return fmt.Errorf("websocket config: %w", err)
	}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", d.url, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	var writerDone chan struct{}
	defer func() {
		cancel()
		stop()
		_ = conn.Close()
		if writerDone != nil {
			<-writerDone
		}
		d.mu.Lock()
		d.conn = nil
		d.connected = false
		d.mu.Unlock()
	}()

	if err := d.write(conn, Message{Type: MsgPing}); err != nil {
		return err
	}

	for {
		var msg Message
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("debugger closed the connection")
			}
			return fmt.Errorf("receive: %w", err)
		}
		if msg.Type != MsgPing && msg.Type != MsgPong {
			continue
		}
		if writerDone != nil {
			// Handshake already done on this connection.
			continue
		}
		if err := d.write(conn, initMessage(d.source, d.version)); err != nil {
			return err
		}
		d.mu.Lock()
		d.connected = true
		pending := d.backlog.len()
		d.mu.Unlock()
		d.logger.Debug("debugger connected", "url", d.url, "pending", pending)

		writerDone = make(chan struct{})
		go func() {
			defer close(writerDone)
			d.flush(ctx, conn)
		}()
	}
}

// flush writes the backlog to conn until ctx is done or a write fails. On
// failure the undelivered messages go back to the front of the backlog and the
// connection is closed so the session ends and the loop reconnects.
func (d *Devtools) flush(ctx context.Context, conn *websocket.Conn) {
	for {
		d.mu.Lock()
		pending := d.backlog.drain()
		d.mu.Unlock()

		for i, raw := range pending {
			if err := d.writeRaw(conn, raw); err != nil {
				d.mu.Lock()
				d.backlog.requeue(pending[i:])
				d.connected = false
				d.mu.Unlock()
				if ctx.Err() == nil {
					d.logger.Warn("debugger write failed, reconnecting", "url", d.url, "err", err)
				}
				_ = conn.Close()
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		}
	}
}

func (d *Devtools) onEvent(_ context.Context, ev domain.Event) {
	msg, ok := translate(ev)
	if !ok {
		return
	}
	raw, err := safeMarshal(msg)
	if err != nil {
		d.logger.Error("encode debugger message", "type", msg.Type, "err", err)
		return
	}
	d.enqueue(raw)
}

// enqueue adds raw to the backlog and wakes the writer. It never blocks on the
// connection.
func (d *Devtools) enqueue(raw []byte) {
	d.mu.Lock()
	wasOverflowing := d.backlog.dropped > 0
	dropped := d.backlog.push(raw)
	d.mu.Unlock()

	if dropped && !wasOverflowing {
		d.logger.Warn("debugger backlog full, dropping messages",
			"size", d.backlog.size,
			"policy", d.backlog.policy.String(),
		)
	}
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Devtools) write(conn *websocket.Conn, msg Message) error {
	raw, err := safeMarshal(msg)
	if err != nil {
		return err
	}
	return d.writeRaw(conn, raw)
}

func (d *Devtools) writeRaw(conn *websocket.Conn, raw []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(d.writeTimeout))
	if err := websocket.Message.Send(conn, string(raw)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
