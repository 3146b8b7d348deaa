// Package codec converts topic payloads between typed Go values and the JSON
// documents carried in an envelope's data field.
//
// Decoding is schema driven: struct fields tagged `bridge:"required"` must be
// present and non-null in the incoming object, unknown fields are ignored, and a value that
// implements Validator gets a final say after decoding.
//
//	type TextIn struct {
//		Text string `json:"text" bridge:"required"`
//	}
//
//	in, err := codec.DecodeJSON[TextIn](data)
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var (
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidShape  = errors.New("data does not match target shape")
	ErrInvalidTarget = errors.New("decode target must be a non-nil pointer")
)

// Codec encodes outbound payloads and decodes inbound ones.
// Implementations must be safe for concurrent use.
type Codec interface {
	Encode(v any) (json.RawMessage, error)
	Decode(data json.RawMessage, v any) error
}

// Validator is implemented by payload types with constraints beyond field
// presence.
type Validator interface {
	Validate() error
}

func Default() Codec {
	return JSON{}
}

type JSON struct{}

// Encode leaves <, > and & unescaped so the data member reads as written.
func (JSON) Encode(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (JSON) Decode(data json.RawMessage, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrInvalidTarget
	}

	target := rv.Type().Elem()
	for target.Kind() == reflect.Pointer {
		target = target.Elem()
	}

	if target.Kind() == reflect.Struct {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
			return fmt.Errorf("%w: expected object for %s", ErrInvalidShape, target.Name())
		}
		for _, name := range requiredFields(target) {
			if !hasField(fields, name) {
				return fmt.Errorf("%w: %q", ErrMissingField, name)
			}
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}

	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DecodeJSON decodes data into a fresh T with the JSON codec.
func DecodeJSON[T any](data json.RawMessage) (T, error) {
	var out T
	err := JSON{}.Decode(data, &out)
	return out, err
}

// encoding/json matches keys case-insensitively, so presence does too. A
// required field holding null counts as missing.
func hasField(fields map[string]json.RawMessage, name string) bool {
	if raw, ok := fields[name]; ok {
		return !isNull(raw)
	}
	for k, raw := range fields {
		if strings.EqualFold(k, name) {
			return !isNull(raw)
		}
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

var requiredCache sync.Map // reflect.Type -> []string

func requiredFields(t reflect.Type) []string {
	if cached, ok := requiredCache.Load(t); ok {
		return cached.([]string)
	}

	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("bridge") != "required" {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		names = append(names, name)
	}

	requiredCache.Store(t, names)
	return names
}
