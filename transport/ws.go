package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/nativebridge/bridge"
	"github.com/mbocsi/nativebridge/broker"
)

var (
	ErrNoSessionHandler = errors.New("OnSession is not defined; the transport cannot set up connections")
	ErrTooManySessions  = errors.New("too many sessions")
	ErrTransportClosed  = errors.New("transport shut down")
)

// WSTransport serves embedded documents over websockets. Each accepted
// connection becomes a Session with its own bridge Connection, prepared by
// the OnSession callback before any message is read.
type WSTransport struct {
	upgrader  websocket.Upgrader
	sessions  *SessionRegistry
	onSession func(*bridge.Connection) error
	options   []bridge.Option
	tap       *broker.Broker

	name        string
	description string
	maxClients  int
	loopBuffer  int

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	active    int
}

func NewWSTransport(opts ...bridge.Option) *WSTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &WSTransport{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // The embedded document is served by the host itself
			},
		},
		sessions:   NewSessionRegistry(),
		options:    opts,
		name:       "Bridge WebSocket",
		maxClients: 16,
		loopBuffer: 64,
		ctx:        ctx,
		cancel:     cancel,
		connected:  true,
	}
}

// OnSession installs the setup run for every new session, typically topic
// handler registration.
func (t *WSTransport) OnSession(fn func(*bridge.Connection) error) {
	t.onSession = fn
}

// SetTap publishes every payload crossing the bridge to b. It must be called
// before the transport serves connections.
func (t *WSTransport) SetTap(b *broker.Broker) {
	t.tap = b
}

func (t *WSTransport) Tap() *broker.Broker {
	return t.tap
}

func (t *WSTransport) Sessions() *SessionRegistry {
	return t.sessions
}

func (t *WSTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.onSession == nil {
		slog.Error("Rejecting bridge connection", "error", ErrNoSessionHandler.Error())
		http.Error(w, ErrNoSessionHandler.Error(), http.StatusInternalServerError)
		return
	}

	if err := t.reserveSlot(); err != nil {
		slog.Warn("Rejecting bridge connection", "remote_addr", r.RemoteAddr, "error", err.Error())
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer t.releaseSlot()

	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	t.handleConnection(conn, r.RemoteAddr)
}

// reserveSlot claims one of the maxClients slots. A slot is held from before
// the upgrade until the connection is torn down.
func (t *WSTransport) reserveSlot() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return ErrTransportClosed
	}
	if t.active >= t.maxClients {
		return ErrTooManySessions
	}
	t.active++
	return nil
}

func (t *WSTransport) releaseSlot() {
	t.mu.Lock()
	t.active--
	t.mu.Unlock()
}

func (t *WSTransport) handleConnection(conn *websocket.Conn, remoteAddr string) {
	session := newSession(conn, remoteAddr, t.loopBuffer, t.tap)

	bc, err := bridge.NewConnection(session, t.options...)
	if err != nil {
		slog.Error("Failed to create bridge connection", "addr", remoteAddr, "error", err.Error())
		conn.Close()
		return
	}
	session.bridge = bc

	if err := t.onSession(bc); err != nil {
		slog.Error("Failed to set up bridge session", "addr", remoteAddr, "error", err.Error())
		conn.Close()
		return
	}

	go session.loop.Run(t.ctx)
	t.sessions.Store(session)
	slog.Info("Bridge session connected", "addr", remoteAddr, "id", session.Id)

	defer func() {
		t.sessions.Delete(session.Id)
		session.Close()
		slog.Info("Bridge session disconnected", "addr", remoteAddr, "id", session.Id)
	}()

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket connection error", "addr", remoteAddr, "error", err)
			}
			break
		}

		raw := string(messageBytes)
		slog.Debug("Bridge payload received", "id", session.Id, "size", len(raw))
		session.observe(broker.Inbound, raw)
		if err := session.loop.Post(func() { bc.Receive(raw) }); err != nil {
			break
		}
	}
}

// Shutdown stops every session loop and closes their connections.
func (t *WSTransport) Shutdown() error {
	slog.Info("Shutting down bridge transport")
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()

	t.cancel()
	var errs []error
	for _, s := range t.sessions.List() {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *WSTransport) Meta() TransportMetadata {
	t.mu.Lock()
	connected, maxClients := t.connected, t.maxClients
	t.mu.Unlock()
	return TransportMetadata{
		ID:          "ws-bridge",
		Name:        t.name,
		Description: t.description,
		Protocol:    "websocket",
		Sessions:    t.sessions.Len(),
		MaxSessions: maxClients,
		Connected:   connected,
	}
}

func (t *WSTransport) SetName(name string) {
	t.name = name
}

func (t *WSTransport) SetMaxClients(n int) {
	t.mu.Lock()
	t.maxClients = n
	t.mu.Unlock()
}

func (t *WSTransport) SetDescription(description string) {
	t.description = description
}
