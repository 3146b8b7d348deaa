// Package bridge implements the topic-addressed message bus between a host
// application and an embedded document. A Connection routes inbound envelopes
// to per-topic handlers and frames outbound envelopes for an Executor.
//
// A Connection is not safe for concurrent use. Funnel every Send and Receive
// through one sequential executor, such as a Loop.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mbocsi/nativebridge/codec"
	"github.com/mbocsi/nativebridge/proto"
)

var (
	ErrBlankTopic  = errors.New("topic must not be blank")
	ErrNilHandler  = errors.New("handler must not be nil")
	ErrNilExecutor = errors.New("executor must not be nil")
)

type Connection struct {
	executor Executor
	registry *Registry
	codec    codec.Codec
	framing  Framing
	logger   *slog.Logger
}

type Option func(*Connection)

func WithCodec(c codec.Codec) Option {
	return func(conn *Connection) { conn.codec = c }
}

func WithFraming(f Framing) Option {
	return func(conn *Connection) { conn.framing = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(conn *Connection) { conn.logger = l }
}

// WithRegistry shares a registry between connections. Handlers registered
// through any of them become visible to all.
func WithRegistry(r *Registry) Option {
	return func(conn *Connection) { conn.registry = r }
}

func NewConnection(executor Executor, opts ...Option) (*Connection, error) {
	if executor == nil {
		return nil, ErrNilExecutor
	}
	c := &Connection{
		executor: executor,
		registry: NewRegistry(),
		codec:    codec.Default(),
		framing:  EventScript(DefaultEventName),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Connection) Registry() *Registry {
	return c.registry
}

func (c *Connection) Codec() codec.Codec {
	return c.codec
}

// Register binds a raw handler to topic. Most callers want Handle or
// HandleJSON, which decode the data member before invoking a typed callback.
func (c *Connection) Register(topic string, handler Handler) error {
	if strings.TrimSpace(topic) == "" {
		return ErrBlankTopic
	}
	if handler == nil {
		return ErrNilHandler
	}
	c.registry.Register(topic, handler)
	c.logger.Debug("Registered topic handler", "topic", topic)
	return nil
}

// Send encodes payload and hands the framed envelope to the executor. Encode
// failures are returned to the caller; there is no error topic to report them on.
func (c *Connection) Send(topic string, payload any) error {
	data, err := c.codec.Encode(payload)
	if err != nil {
		return fmt.Errorf("send %q: %w", topic, err)
	}
	return c.SendRaw(topic, data)
}

// SendRaw sends an already encoded data member. data must be valid JSON.
func (c *Connection) SendRaw(topic string, data json.RawMessage) error {
	envelope, err := proto.Envelope{Topic: topic, Data: data}.Marshal()
	if err != nil {
		return fmt.Errorf("send %q: %w", topic, err)
	}

	c.executor.ExecuteCommand(c.framing(envelope))
	c.logger.Debug("Sent message", "topic", topic, "size", len(data))
	return nil
}

// SendErrors reports errs on topic as a single error envelope.
func (c *Connection) SendErrors(topic string, errs ...proto.ProtocolError) error {
	c.logger.Warn("Sending protocol errors", "topic", topic, "codes", proto.NewErrorList(errs...).Codes())
	return c.Send(topic, proto.NewErrorList(errs...))
}

// Receive handles one inbound payload. It never fails outward: every problem
// is reported back across the boundary as an error envelope.
func (c *Connection) Receive(raw string) {
	doc, err := proto.ParseDocument(raw)
	if err != nil {
		c.logger.Debug("Unparseable payload received", "size", len(raw), "error", err)
		c.reportErrors(proto.ErrorTopic, proto.IllegalPayloadFormat())
		return
	}

	errs := Validate(doc, c.registry)
	if len(errs) > 0 {
		topic := proto.ErrorTopic
		if doc.HasTopic() {
			topic = doc.Topic()
		}
		c.reportErrors(topic, errs...)
		return
	}

	topic := doc.Topic()
	handler, ok := c.registry.Lookup(topic)
	if !ok {
		// registry changed between validation and dispatch
		c.reportErrors(topic, proto.MissingTopicHandler())
		return
	}

	c.logger.Debug("Message received", "topic", topic, "size", len(doc.Data()))
	handler(doc.Data())
}

func (c *Connection) reportErrors(topic string, errs ...proto.ProtocolError) {
	if err := c.SendErrors(topic, errs...); err != nil {
		c.logger.Error("Failed to send protocol errors", "topic", topic, "error", err)
	}
}

// Validate checks the envelope shape of doc. Missing topic and missing data
// are reported together; handler presence is only checked when a topic exists.
func Validate(doc proto.Document, registry *Registry) []proto.ProtocolError {
	var errs []proto.ProtocolError

	if !doc.Has(proto.FieldTopic) {
		errs = append(errs, proto.MissingFieldTopic())
	} else if _, ok := registry.Lookup(doc.Topic()); !ok {
		errs = append(errs, proto.MissingTopicHandler())
	}

	if !doc.Has(proto.FieldData) {
		errs = append(errs, proto.MissingFieldData())
	}

	return errs
}
