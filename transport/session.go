package transport

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/nativebridge/bridge"
	"github.com/mbocsi/nativebridge/broker"
)

const writeWait = 10 * time.Second

// Session is one embedded document connected over a websocket. It is the
// Executor of its own bridge Connection, and every Receive and host-initiated
// Send for that Connection runs on the session's Loop.
type Session struct {
	Id          string
	RemoteAddr  string
	ConnectedAt time.Time

	conn *websocket.Conn
	wmu  sync.Mutex

	bridge *bridge.Connection
	loop   *bridge.Loop
	tap    *broker.Broker
}

type SessionInfo struct {
	Id          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Topics      []string  `json:"topics"`
}

func newSession(conn *websocket.Conn, remoteAddr string, buffer int, tap *broker.Broker) *Session {
	return &Session{
		Id:          generateSessionId("ws"),
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		conn:        conn,
		loop:        bridge.NewLoop(buffer),
		tap:         tap,
	}
}

func (s *Session) observe(direction broker.Direction, payload string) {
	if s.tap == nil {
		return
	}
	s.tap.Publish(broker.Traffic{SessionID: s.Id, Direction: direction, Payload: payload})
}

// ExecuteCommand writes command as one text frame. Delivery is best effort;
// failures are logged and dropped.
func (s *Session) ExecuteCommand(command string) {
	if s.conn == nil {
		slog.Warn("Dropping command for detached session", "id", s.Id)
		return
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(command)); err != nil {
		slog.Warn("Failed to write bridge command", "id", s.Id, "error", err.Error())
		return
	}
	slog.Debug("Sent bridge command", "to", s.Id, "size", len(command))
	s.observe(broker.Outbound, command)
}

// Send encodes payload and sends it on topic from the session loop. It must
// not be called from a topic handler of the same session; handlers reply
// through the Connection they are given.
func (s *Session) Send(topic string, payload any) error {
	return s.loop.Call(func() error { return s.bridge.Send(topic, payload) })
}

func (s *Session) SendRaw(topic string, data json.RawMessage) error {
	return s.loop.Call(func() error { return s.bridge.SendRaw(topic, data) })
}

func (s *Session) Topics() []string {
	return s.bridge.Registry().Topics()
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		Id:          s.Id,
		RemoteAddr:  s.RemoteAddr,
		ConnectedAt: s.ConnectedAt,
		Topics:      s.Topics(),
	}
}

func (s *Session) Close() error {
	s.loop.Close()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
