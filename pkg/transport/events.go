package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Built-in event types. Inbound frames use their own type strings.
const (
	EventConnection   = "connection"
	EventReconnecting = "reconnecting"
	EventError        = "error"
)

// Connection statuses carried by EventConnection.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// Event is delivered to listeners. Payload is a ConnectionPayload,
// ReconnectingPayload or ErrorPayload for built-in events and the raw JSON
// payload for inbound frames.
type Event struct {
	Type    string
	Payload any
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	raw, ok := e.Payload.(json.RawMessage)
	if !ok {
		var err error
		if raw, err = json.Marshal(e.Payload); err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", e.Type, err)
		}
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ConnectionPayload reports a connection status change.
type ConnectionPayload struct {
	Status string `json:"status"`
}

// ReconnectingPayload is emitted when a scheduled reconnect starts.
type ReconnectingPayload struct {
	Attempt       int           `json:"attempt"`
	NextAttemptIn time.Duration `json:"nextAttemptIn"`
	MaxAttempts   int           `json:"maxAttempts"`
}

// ErrorPayload reports a transport failure. Fatal is set once reconnection
// has been given up.
type ErrorPayload struct {
	Message string `json:"message"`
	Fatal   bool   `json:"fatal,omitempty"`
	Err     error  `json:"-"`
}

// Message is the wire frame exchanged with the server.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Listener handles one event. Listeners run on transport goroutines and
// must not block.
type Listener func(Event)

// Subscription identifies a registered listener.
type Subscription struct {
	event string
	id    uint64
	set   *listenerSet
}

// Unsubscribe removes the listener. It is safe to call during dispatch and
// more than once.
func (s Subscription) Unsubscribe() {
	if s.set != nil {
		s.set.remove(s.event, s.id)
	}
}

type listenerEntry struct {
	id      uint64
	fn      Listener
	removed atomic.Bool
}

// listenerSet fans events out to listeners keyed by event type.
type listenerSet struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID uint64
	byType map[string][]*listenerEntry
}

func newListenerSet(logger *slog.Logger) *listenerSet {
	return &listenerSet{
		logger: logger,
		byType: make(map[string][]*listenerEntry),
	}
}

func (s *listenerSet) add(event string, fn Listener) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.byType[event] = append(s.byType[event], &listenerEntry{id: s.nextID, fn: fn})
	return Subscription{event: event, id: s.nextID, set: s}
}

func (s *listenerSet) remove(event string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.byType[event]
	for i, e := range entries {
		if e.id != id {
			continue
		}
		e.removed.Store(true)
		// Copy so that snapshots held by a running dispatch stay intact.
		next := make([]*listenerEntry, 0, len(entries)-1)
		next = append(next, entries[:i]...)
		next = append(next, entries[i+1:]...)
		if len(next) == 0 {
			delete(s.byType, event)
		} else {
			s.byType[event] = next
		}
		return
	}
}

func (s *listenerSet) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entries := range s.byType {
		for _, e := range entries {
			e.removed.Store(true)
		}
	}
	s.byType = make(map[string][]*listenerEntry)
}

func (s *listenerSet) count(event string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byType[event])
}

// emit calls every listener of event.Type in registration order. A
// listener removed while the dispatch is running is skipped, and a
// panicking listener does not stop delivery to the others.
func (s *listenerSet) emit(event Event) {
	s.mu.RLock()
	entries := s.byType[event.Type]
	s.mu.RUnlock()

	for _, e := range entries {
		if e.removed.Load() {
			continue
		}
		s.call(e, event)
	}
}

func (s *listenerSet) call(e *listenerEntry, event Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("transport listener panicked",
				"event", event.Type,
				"panic", r,
			)
		}
	}()
	e.fn(event)
}
