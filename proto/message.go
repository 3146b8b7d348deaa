package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

const (
	FieldTopic = "topic"
	FieldData  = "data"

	// ErrorTopic addresses errors that cannot be attributed to an inbound topic.
	ErrorTopic = "error"
)

var ErrNotAnObject = errors.New("payload is not a JSON object")

// Envelope is the wire unit exchanged in both directions. Field order is
// significant: topic is always marshalled before data.
type Envelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// Marshal writes the envelope without HTML escaping; <, > and & in the topic
// or data are kept as they are.
func (e Envelope) Marshal() ([]byte, error) {
	if len(e.Data) == 0 {
		e.Data = json.RawMessage("null")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Document is a parsed inbound payload that remembers which top-level fields
// were present, so validation can tell a missing field from a null one.
type Document map[string]json.RawMessage

func ParseDocument(raw string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		// "null" unmarshals into a nil map without error
		return nil, ErrNotAnObject
	}
	return doc, nil
}

func (d Document) Has(field string) bool {
	_, ok := d[field]
	return ok
}

// Topic returns the topic field as a string. Number and boolean topics are
// coerced to their literal text; a missing, null, object or array topic
// yields "".
func (d Document) Topic() string {
	raw, ok := d[FieldTopic]
	if !ok {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func (d Document) HasTopic() bool {
	return d.Has(FieldTopic) && strings.TrimSpace(d.Topic()) != ""
}

func (d Document) Data() json.RawMessage {
	return d[FieldData]
}
