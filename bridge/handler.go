package bridge

import (
	"encoding/json"

	"github.com/mbocsi/nativebridge/proto"
)

// DecodeFunc turns the raw data member of an envelope into T.
type DecodeFunc[T any] func(data json.RawMessage) (T, error)

// Handle registers fn for topic. Each inbound message is decoded with decode
// first; if that fails, InvalidDataForTopicHandler is sent back on topic and
// fn is not called.
func Handle[T any](c *Connection, topic string, decode DecodeFunc[T], fn func(T, *Connection)) error {
	if decode == nil || fn == nil {
		return ErrNilHandler
	}
	return c.Register(topic, func(data json.RawMessage) {
		in, err := decode(data)
		if err != nil {
			c.logger.Debug("Topic data rejected by handler", "topic", topic, "error", err)
			c.reportErrors(topic, proto.InvalidDataForTopicHandler(topic))
			return
		}
		fn(in, c)
	})
}

// HandleJSON is Handle with the connection's codec as the decoder.
func HandleJSON[T any](c *Connection, topic string, fn func(T, *Connection)) error {
	return Handle(c, topic, func(data json.RawMessage) (T, error) {
		var in T
		err := c.codec.Decode(data, &in)
		return in, err
	}, fn)
}
