package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const DefaultEventName = "nativebridge"

const scriptScheme = "javascript:"

// Executor delivers a fully framed outbound command to the far side. It does
// not interpret the command and nothing it does is reported back.
type Executor interface {
	ExecuteCommand(command string)
}

type ExecutorFunc func(command string)

func (f ExecutorFunc) ExecuteCommand(command string) {
	f(command)
}

// Framing wraps a serialized envelope into the command handed to the Executor.
type Framing func(envelope []byte) string

// EventScript frames the envelope as a script that dispatches a CustomEvent
// named eventName with the envelope as its detail.
func EventScript(eventName string) Framing {
	return func(envelope []byte) string {
		return fmt.Sprintf(scriptScheme+`window.dispatchEvent(
    new CustomEvent(%q, {
            "detail": %s
        }
    )
)`, eventName, envelope)
	}
}

// RawEnvelope hands the envelope JSON over unchanged, for executors whose far
// side dispatches the event itself.
func RawEnvelope(envelope []byte) string {
	return string(envelope)
}

// Unframe recovers the envelope from a command produced by EventScript or
// RawEnvelope. Commands of any other shape are returned unchanged.
func Unframe(command []byte) []byte {
	if !bytes.HasPrefix(command, []byte(scriptScheme)) {
		return command
	}
	_, detail, ok := strings.Cut(string(command), `"detail":`)
	if !ok {
		return command
	}
	var envelope json.RawMessage
	if err := json.NewDecoder(strings.NewReader(detail)).Decode(&envelope); err != nil {
		return command
	}
	return envelope
}
