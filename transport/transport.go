package transport

import (
	"github.com/google/uuid"
)

type TransportMetadata struct {
	ID          string
	Name        string // Human-friendly name, e.g. "Bridge WebSocket"
	Protocol    string // "websocket"
	Description string // Optional, short purpose/use case

	Sessions    int  // Current active sessions
	MaxSessions int  // Max allowed sessions
	Connected   bool // Whether the transport is accepting sessions
}

func generateSessionId(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
