// Package transport maintains a long-lived websocket connection for
// out-of-band events. It reconnects with exponential backoff, fans inbound
// frames out to listeners by type, and reports every failure as an "error"
// event instead of returning it.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateFailed is terminal until Connect is called again.
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ClientIDHeader carries the per-process client identifier on the handshake.
const ClientIDHeader = "X-Parley-Client-Id"

const writeWait = 10 * time.Second

// Config configures a Transport.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// MaxReconnectAttempts bounds consecutive failed reconnects.
	MaxReconnectAttempts int

	// BaseDelay and MaxDelay shape the schedule
	// min(BaseDelay * 2^attempt, MaxDelay).
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// PingInterval is the keepalive period; 0 disables pings.
	PingInterval time.Duration

	// HandshakeTimeout bounds each dial; 0 means no limit.
	HandshakeTimeout time.Duration

	// Header is sent with every handshake.
	Header http.Header
}

// Observer receives transport lifecycle events. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveState(state State)
	ObserveReconnect(attempt int, delay time.Duration)
	ObserveEvent(eventType string)
}

type nopObserver struct{}

func (nopObserver) ObserveState(State)                  {}
func (nopObserver) ObserveReconnect(int, time.Duration) {}
func (nopObserver) ObserveEvent(string)                 {}

// Option configures a Transport.
type Option func(*Transport)

// WithDialer replaces the gorilla/websocket dialer.
func WithDialer(d Dialer) Option {
	return func(t *Transport) { t.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(t *Transport) { t.observer = o }
}

// Transport is a reconnecting websocket client.
//
// The lifecycle is Disconnected -> Connecting -> Connected -> Disconnected,
// with a scheduled reconnect after every drop until MaxReconnectAttempts
// consecutive attempts have failed, at which point the transport enters
// Failed and emits a fatal error event.
type Transport struct {
	cfg      Config
	clientID string
	dialer   Dialer
	logger   *slog.Logger
	observer Observer

	listeners *listenerSet

	mu       sync.Mutex
	state    State
	attempts int
	schedule *backoff.ExponentialBackOff
	conn     Conn
	timer    *time.Timer
	cancel   context.CancelFunc
	// gen changes on Disconnect; work started under an older gen is dropped.
	gen uint64

	writeMu sync.Mutex
}

// New creates a transport. No connection is made until Connect.
func New(cfg Config, opts ...Option) *Transport {
	t := &Transport{
		cfg:      cfg,
		clientID: uuid.NewString(),
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.dialer == nil {
		t.dialer = NewWebsocketDialer(cfg.HandshakeTimeout)
	}

	t.listeners = newListenerSet(t.logger)
	t.schedule = reconnectSchedule(cfg.BaseDelay, cfg.MaxDelay)

	t.cfg.Header = cfg.Header.Clone()
	if t.cfg.Header == nil {
		t.cfg.Header = http.Header{}
	}
	if t.cfg.Header.Get(ClientIDHeader) == "" {
		t.cfg.Header.Set(ClientIDHeader, t.clientID)
	}

	return t
}

// reconnectSchedule yields base*2, base*4, ... capped at maxDelay.
func reconnectSchedule(base, maxDelay time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxDelay
	if b.InitialInterval > maxDelay {
		b.InitialInterval = maxDelay
	}
	b.Reset()
	return b
}

// ClientID returns the identifier sent on every handshake.
func (t *Transport) ClientID() string {
	return t.clientID
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Attempts returns the number of consecutive reconnect attempts.
func (t *Transport) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// On registers fn for events of the given type.
func (t *Transport) On(event string, fn Listener) Subscription {
	return t.listeners.add(event, fn)
}

// Off removes a listener registered with On.
func (t *Transport) Off(sub Subscription) {
	sub.Unsubscribe()
}

// Connect starts connecting in the background. It does nothing while a
// connection is open or being opened. Called after the transport has
// failed, it starts over with the attempt count reset.
func (t *Transport) Connect() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateConnecting || t.state == StateConnected {
		t.logger.Debug("connect ignored", "state", t.state)
		return
	}
	if t.state == StateFailed {
		t.attempts = 0
		t.schedule.Reset()
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.dialLocked()
}

// dialLocked moves to Connecting and dials in a new goroutine. t.mu must
// be held.
func (t *Transport) dialLocked() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if t.cfg.HandshakeTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), t.cfg.HandshakeTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	t.cancel = cancel
	t.setStateLocked(StateConnecting)

	gen := t.gen
	t.logger.Debug("websocket connecting", "url", t.cfg.URL, "attempt", t.attempts)
	go t.dial(ctx, cancel, gen)
}

func (t *Transport) dial(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	conn, err := t.dialer.Dial(ctx, t.cfg.URL, t.cfg.Header)
	cancel()

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	t.cancel = nil
	if err != nil {
		t.mu.Unlock()
		t.logger.Warn("websocket connection failed", "url", t.cfg.URL, "error", err)
		t.emit(gen, Event{Type: EventError, Payload: ErrorPayload{
			Message: fmt.Sprintf("websocket connection failed: %v", err),
			Err:     err,
		}})
		t.drop(gen, nil)
		return
	}

	t.conn = conn
	t.attempts = 0
	t.schedule.Reset()
	t.setStateLocked(StateConnected)
	t.mu.Unlock()

	t.logger.Info("websocket connected", "url", t.cfg.URL)
	t.emit(gen, Event{Type: EventConnection, Payload: ConnectionPayload{Status: StatusConnected}})

	done := make(chan struct{})
	if t.cfg.PingInterval > 0 {
		go t.keepalive(conn, done)
	}
	go t.readLoop(conn, gen, done)
}

// readLoop delivers inbound frames in order until the connection ends.
func (t *Transport) readLoop(conn Conn, gen uint64, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && t.current(gen, conn) {
				t.logger.Warn("websocket read failed", "error", err)
				t.emit(gen, Event{Type: EventError, Payload: ErrorPayload{
					Message: fmt.Sprintf("websocket connection lost: %v", err),
					Err:     err,
				}})
			}
			t.drop(gen, conn)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			if err == nil {
				err = errors.New("missing message type")
			}
			t.logger.Warn("invalid websocket message", "error", err)
			t.emit(gen, Event{Type: EventError, Payload: ErrorPayload{Message: "invalid message format", Err: err}})
			continue
		}
		t.emit(gen, Event{Type: msg.Type, Payload: msg.Payload})
	}
}

func (t *Transport) keepalive(conn Conn, done <-chan struct{}) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				t.logger.Debug("websocket ping failed", "error", err)
				// Closing ends the read loop, which handles the drop.
				conn.Close()
				return
			}
		}
	}
}

// current reports whether conn is still the live connection of gen.
func (t *Transport) current(gen uint64, conn Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.gen && t.conn == conn
}

// drop handles the end of a connection or a failed dial: it reports the
// disconnect and schedules the next attempt, or gives up once the attempt
// limit is reached. conn is nil for a failed dial.
func (t *Transport) drop(gen uint64, conn Conn) {
	t.mu.Lock()
	if gen != t.gen || (conn != nil && t.conn != conn) {
		t.mu.Unlock()
		return
	}
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.setStateLocked(StateDisconnected)
	t.mu.Unlock()

	t.emit(gen, Event{Type: EventConnection, Payload: ConnectionPayload{Status: StatusDisconnected}})

	t.mu.Lock()
	if gen != t.gen || t.state != StateDisconnected {
		t.mu.Unlock()
		return
	}

	if t.attempts >= t.cfg.MaxReconnectAttempts {
		t.setStateLocked(StateFailed)
		attempts := t.attempts
		t.mu.Unlock()

		t.logger.Error("max reconnection attempts reached",
			"url", t.cfg.URL,
			"attempts", attempts,
		)
		t.emit(gen, Event{Type: EventError, Payload: ErrorPayload{
			Message: "max reconnection attempts reached",
			Fatal:   true,
		}})
		return
	}

	t.attempts++
	attempt := t.attempts
	delay := t.schedule.NextBackOff()
	t.observer.ObserveReconnect(attempt, delay)
	t.logger.Info("websocket reconnect scheduled",
		"attempt", attempt,
		"max_attempts", t.cfg.MaxReconnectAttempts,
		"backoff", delay,
	)

	t.timer = time.AfterFunc(delay, func() { t.reconnect(gen, attempt, delay) })
	t.mu.Unlock()
}

func (t *Transport) reconnect(gen uint64, attempt int, delay time.Duration) {
	t.mu.Lock()
	if gen != t.gen || t.state != StateDisconnected || t.attempts != attempt {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	t.emit(gen, Event{Type: EventReconnecting, Payload: ReconnectingPayload{
		Attempt:       attempt,
		NextAttemptIn: delay,
		MaxAttempts:   t.cfg.MaxReconnectAttempts,
	}})

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || t.state != StateDisconnected {
		return
	}
	t.dialLocked()
}

// Send writes a {type, payload} frame. It never returns an error: when the
// transport is not connected or the write fails an error event is emitted.
func (t *Transport) Send(eventType string, payload any) {
	t.mu.Lock()
	conn, state, gen := t.conn, t.state, t.gen
	t.mu.Unlock()

	if state != StateConnected || conn == nil {
		t.logger.Warn("websocket is not connected, cannot send message", "type", eventType)
		t.emit(gen, Event{Type: EventError, Payload: ErrorPayload{Message: "websocket is not connected"}})
		return
	}

	if payload == nil {
		payload = struct{}{}
	}
	data, err := json.Marshal(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}{eventType, payload})
	if err != nil {
		t.emit(gen, Event{Type: EventError, Payload: ErrorPayload{
			Message: fmt.Sprintf("failed to encode message: %v", err),
			Err:     err,
		}})
		return
	}

	t.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	t.writeMu.Unlock()
	if err != nil {
		t.logger.Warn("failed to send websocket message", "type", eventType, "error", err)
		t.emit(gen, Event{Type: EventError, Payload: ErrorPayload{
			Message: fmt.Sprintf("failed to send message: %v", err),
			Err:     err,
		}})
	}
}

// Disconnect closes the connection, cancels any pending reconnect and
// removes every listener. No further events are emitted until Connect is
// called again.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	conn := t.conn
	t.conn = nil
	t.attempts = 0
	t.schedule.Reset()
	t.setStateLocked(StateDisconnected)
	t.mu.Unlock()

	t.listeners.clear()

	if conn != nil {
		t.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		conn.Close()
	}
	t.logger.Debug("websocket disconnected")
}

// emit dispatches event unless the transport was torn down after gen.
func (t *Transport) emit(gen uint64, event Event) {
	t.mu.Lock()
	stale := gen != t.gen
	t.mu.Unlock()
	if stale {
		return
	}

	t.observer.ObserveEvent(event.Type)
	t.listeners.emit(event)
}

func (t *Transport) setStateLocked(s State) {
	if t.state == s {
		return
	}
	t.state = s
	t.observer.ObserveState(s)
}
