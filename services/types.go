package services

import "encoding/json"

// TransportInfo represents transport connection information
type TransportInfo struct {
	Name        string `json:"name"`
	Protocol    string `json:"protocol"`
	Status      string `json:"status"`
	Sessions    int    `json:"sessions"`
	MaxSessions int    `json:"max_sessions"`
}

// MessageRequest is a host-initiated message to one session, or to every
// session when SessionID is empty.
type MessageRequest struct {
	SessionID string          `json:"session_id,omitempty"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
}

// ServiceError represents structured service layer errors
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"cause,omitempty"`
}

func (e ServiceError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e ServiceError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)
