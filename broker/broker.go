// Package broker fans bridge traffic out to observers such as the web
// traffic stream. Delivery never blocks the bridge: a subscriber whose
// buffer is full misses the event.
package broker

import (
	"log/slog"
	"sync"
	"time"
)

type Direction string

const (
	Inbound  Direction = "in"
	Outbound Direction = "out"
)

// AllSessions subscribes to the traffic of every session.
const AllSessions = "*"

// Traffic is one payload crossing the bridge. Inbound payloads are the raw
// text the document posted, outbound ones the command handed to the executor.
type Traffic struct {
	SessionID string    `json:"session_id"`
	Direction Direction `json:"direction"`
	Payload   string    `json:"payload"`
	Time      time.Time `json:"time"`
}

type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Traffic]struct{} // Map session id to hashset of Traffic channels
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan Traffic]struct{}),
	}
}

func (b *Broker) Subscribe(sessionID string, ch chan Traffic) {
	slog.Debug("Subscribing to bridge traffic", "session", sessionID)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan Traffic]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
}

func (b *Broker) Publish(t Traffic) {
	if t.Time.IsZero() {
		t.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	b.deliver(b.subs[t.SessionID], t)
	if t.SessionID != AllSessions {
		b.deliver(b.subs[AllSessions], t)
	}
}

func (b *Broker) deliver(subs map[chan Traffic]struct{}, t Traffic) {
	for ch := range subs {
		select {
		case ch <- t:
		default:
			slog.Warn("Dropped bridge traffic (buffer full)", "session", t.SessionID, "direction", t.Direction)
		}
	}
}

func (b *Broker) Unsubscribe(sessionID string, ch chan Traffic) {
	slog.Debug("Unsubscribing from bridge traffic", "session", sessionID)
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subs[sessionID]; ok {
		if _, exists := subs[ch]; exists {
			delete(subs, ch)
		} else {
			slog.Warn("Traffic channel not subscribed", "session", sessionID)
		}
		if len(subs) == 0 {
			delete(b.subs, sessionID)
		}
	}
}

// Subscribers counts the channels subscribed to sessionID.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}
