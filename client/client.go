// Package client is a Go stand-in for the embedded document: it connects to
// a bridge host over a websocket, sends envelopes, and dispatches the
// envelopes it receives by topic. Error envelopes are recognised by shape and
// reported separately.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/nativebridge/bridge"
	"github.com/mbocsi/nativebridge/proto"
)

var ErrNotConnected = errors.New("client is not connected")

type Client struct {
	conn *websocket.Conn
	wmu  sync.Mutex

	// Handlers
	handlerMu     sync.RWMutex
	topicHandlers map[string]func(json.RawMessage)
	errorHandler  func(topic string, errs []proto.ProtocolError)
}

func NewClient() *Client {
	return &Client{topicHandlers: make(map[string]func(json.RawMessage))}
}

func (c *Client) Connect(addr string) error {
	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("invalid WebSocket URL: %w", err)
	}

	// If no scheme is provided, assume ws://
	if u.Scheme == "" {
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to bridge: %w", err)
	}

	c.conn = conn
	slog.Info("Connected to bridge", "addr", u.String())
	return nil
}

// On registers fn for envelopes on topic that are not error lists.
func (c *Client) On(topic string, fn func(json.RawMessage)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.topicHandlers[topic] = fn
}

func (c *Client) OnErrors(fn func(topic string, errs []proto.ProtocolError)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.errorHandler = fn
}

// Send wraps payload in an envelope for topic.
func (c *Client) Send(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	envelope, err := proto.Envelope{Topic: topic, Data: data}.Marshal()
	if err != nil {
		return err
	}
	return c.SendText(string(envelope))
}

// SendText writes text unchanged, valid envelope or not.
func (c *Client) SendText(text string) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("failed to send WebSocket message: %w", err)
	}
	slog.Debug("Sent bridge payload", "size", len(text))
	return nil
}

// Run reads envelopes until the connection closes.
func (c *Client) Run() error {
	if c.conn == nil {
		return ErrNotConnected
	}

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection closed: %w", err)
		}
		c.dispatch(messageBytes)
	}
}

// dispatch accepts both raw envelopes and the script framing, so the client
// works whichever framing the host is configured with.
func (c *Client) dispatch(raw []byte) {
	var env proto.Envelope
	if err := json.Unmarshal(bridge.Unframe(raw), &env); err != nil {
		slog.Warn("Invalid envelope received", "error", err.Error(), "size", len(raw))
		return
	}
	slog.Debug("Envelope received", "topic", env.Topic, "size", len(env.Data))

	c.handlerMu.RLock()
	errorHandler := c.errorHandler
	handler, ok := c.topicHandlers[env.Topic]
	c.handlerMu.RUnlock()

	if errs, isErr := ParseErrors(env.Data); isErr {
		if errorHandler != nil {
			errorHandler(env.Topic, errs)
		} else {
			slog.Warn("Bridge reported errors", "topic", env.Topic, "errors", errs)
		}
		return
	}

	if !ok {
		slog.Warn("Topic not found in handlers: Ignoring envelope", "topic", env.Topic)
		return
	}
	handler(env.Data)
}

// ParseErrors reports whether data is an error list and returns its errors.
func ParseErrors(data json.RawMessage) ([]proto.ProtocolError, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || len(fields) != 1 {
		return nil, false
	}
	raw, ok := fields["errors"]
	if !ok {
		return nil, false
	}
	var list []proto.ProtocolError
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	return list, true
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	c.wmu.Lock()
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.wmu.Unlock()
	if err != nil {
		slog.Warn("Failed to send close message", "error", err)
	}

	return c.conn.Close()
}
