// Package transport maintains the panel's WebSocket session with the
// view-model server: endpoint resolution, bounded reconnects, and event
// delivery to registered handlers.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "github.com/homectlx/panel/internal/errors"
	"github.com/homectlx/panel/internal/logging"
	"github.com/homectlx/panel/internal/protocol"
)

// Policy controls endpoint resolution and reconnects.
type Policy struct {
	// Initial is the first reconnect delay.
	Initial time.Duration
	// Max caps the reconnect delay.
	Max time.Duration
	// Attempts bounds consecutive failed reconnects.
	Attempts int
	// InitRetry is the fixed interval between resolution attempts.
	InitRetry time.Duration
}

// DefaultPolicy is 1s growing to 5s, 10 attempts, resolution every 100ms.
var DefaultPolicy = Policy{
	Initial:   time.Second,
	Max:       5 * time.Second,
	Attempts:  10,
	InitRetry: 100 * time.Millisecond,
}

// Resolver returns the WebSocket URL to dial.
type Resolver func(ctx context.Context) (string, error)

// Options configure a Manager.
type Options struct {
	// URL is dialed directly when set.
	URL string
	// Resolve is consulted when URL is empty.
	Resolve Resolver
	Policy  Policy
	Dialer  *websocket.Dialer
	Header  http.Header
	Logger  *zap.Logger
}

// Manager owns at most one live connection at a time.
type Manager struct {
	opts Options
	log  *zap.Logger

	mu        sync.Mutex
	conn      *conn
	closed    bool
	pending   []func()
	connected []func()
	lost      []func(error)
	failed    []func(error)
	message   []func(protocol.MessageType, []byte)
}

// New creates a Manager. Nothing is dialed until Run.
func New(opts Options) *Manager {
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Manager{opts: opts, log: logging.OrNop(opts.Logger).Named("transport")}
}

// SocketURL derives the WebSocket URL from an HTTP base URL and socket path.
func SocketURL(base, socketPath string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", apperrors.New(apperrors.CodeConnectionEndpointUnresolved, fmt.Sprintf("invalid server url %q", base))
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", apperrors.New(apperrors.CodeConnectionEndpointUnresolved, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	u.Path = path.Join("/", u.Path, socketPath)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// OnConnected registers fn for every successful connect.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	m.connected = append(m.connected, fn)
	m.mu.Unlock()
}

// OnDisconnected registers fn for every lost connection.
func (m *Manager) OnDisconnected(fn func(error)) {
	m.mu.Lock()
	m.lost = append(m.lost, fn)
	m.mu.Unlock()
}

// OnConnectionError registers fn for dial failures and for the final
// give-up once the reconnect policy is exhausted.
func (m *Manager) OnConnectionError(fn func(error)) {
	m.mu.Lock()
	m.failed = append(m.failed, fn)
	m.mu.Unlock()
}

// OnMessage registers fn for every decoded inbound frame.
func (m *Manager) OnMessage(fn func(t protocol.MessageType, payload []byte)) {
	m.mu.Lock()
	m.message = append(m.message, fn)
	m.mu.Unlock()
}

// IsConnected reports whether a session is currently live.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// OnceConnected runs fn now if connected, otherwise exactly once on the
// next successful connect.
func (m *Manager) OnceConnected(fn func()) {
	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		fn()
		return
	}
	m.pending = append(m.pending, fn)
	m.mu.Unlock()
}

// Send encodes payload under the given event type and queues it.
func (m *Manager) Send(t protocol.MessageType, payload any) error {
	data, err := protocol.Encode(t, payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	c := m.conn
	m.mu.Unlock()
	if c == nil {
		return apperrors.NotConnected(string(t))
	}
	return c.enqueue(data)
}

// Close tears down the live session, if any, and stops reconnecting.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	c := m.conn
	m.mu.Unlock()
	if c != nil {
		c.close()
	}
}

// Run resolves the endpoint, then keeps a session up until ctx is done,
// Close is called, or the reconnect policy gives up.
func (m *Manager) Run(ctx context.Context) error {
	target, err := m.resolve(ctx)
	if err != nil {
		return err
	}

	b := m.newBackOff()
	var last error
	for {
		wasUp, err := m.session(ctx, target)
		if ctx.Err() != nil || m.isClosed() {
			return ctx.Err()
		}
		if wasUp {
			b.Reset()
		}
		last = err

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			giveUp := apperrors.RetriesExhausted(m.opts.Policy.Attempts, last)
			m.log.Error("reconnect abandoned", zap.Error(giveUp))
			m.emitFailed(giveUp)
			return giveUp
		}
		m.log.Debug("reconnecting", zap.Duration("in", wait))
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (m *Manager) newBackOff() backoff.BackOff {
	p := m.opts.Policy
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Initial
	exp.MaxInterval = p.Max
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(p.Attempts))
}

// resolve retries at a fixed interval until an endpoint is known.
func (m *Manager) resolve(ctx context.Context) (string, error) {
	if m.opts.URL != "" {
		return m.opts.URL, nil
	}
	if m.opts.Resolve == nil {
		return "", apperrors.New(apperrors.CodeConnectionEndpointUnresolved, "no server url and no resolver")
	}
	for {
		target, err := m.opts.Resolve(ctx)
		if err == nil && target != "" {
			m.log.Info("endpoint resolved", zap.String("url", target))
			return target, nil
		}
		m.log.Debug("endpoint not ready", zap.Error(err))
		if err := sleep(ctx, m.opts.Policy.InitRetry); err != nil {
			return "", err
		}
	}
}

// session dials once and blocks until the resulting connection ends.
// wasUp reports whether the dial succeeded.
func (m *Manager) session(ctx context.Context, target string) (wasUp bool, err error) {
	ws, _, err := m.opts.Dialer.DialContext(ctx, target, m.opts.Header)
	if err != nil {
		dialErr := apperrors.DialFailed(target, err)
		m.log.Warn("connect failed", zap.Error(dialErr))
		m.emitFailed(dialErr)
		return false, dialErr
	}

	c := newConn(ws, m.log)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		ws.Close()
		return true, nil
	}
	m.conn = c
	pending := m.pending
	m.pending = nil
	connected := append([]func(){}, m.connected...)
	m.mu.Unlock()

	m.log.Info("connected", zap.String("url", target))
	go c.writePump()

	stop := context.AfterFunc(ctx, c.close)
	defer stop()

	for _, fn := range connected {
		fn()
	}
	for _, fn := range pending {
		fn()
	}

	readErr := c.readPump(m.deliver)

	m.mu.Lock()
	if m.conn == c {
		m.conn = nil
	}
	lost := append([]func(error){}, m.lost...)
	m.mu.Unlock()

	m.log.Info("disconnected", zap.Error(readErr))
	for _, fn := range lost {
		fn(readErr)
	}
	return true, readErr
}

func (m *Manager) deliver(msg protocol.Message) {
	m.mu.Lock()
	handlers := append([]func(protocol.MessageType, []byte){}, m.message...)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(msg.Type, msg.Payload)
	}
}

func (m *Manager) emitFailed(err error) {
	m.mu.Lock()
	handlers := append([]func(error){}, m.failed...)
	m.mu.Unlock()
	for _, fn := range handlers {
		fn(err)
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
