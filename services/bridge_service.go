package services

import (
	"encoding/json"
	"log/slog"
	"slices"
	"strings"

	"github.com/mbocsi/nativebridge/transport"
)

// BridgeService is the host-side view of the connected documents shared by
// the web API and the MCP tools.
type BridgeService struct {
	transport *transport.WSTransport
}

func NewBridgeService(t *transport.WSTransport) *BridgeService {
	return &BridgeService{transport: t}
}

func (s *BridgeService) ListSessions() []transport.SessionInfo {
	sessions := s.transport.Sessions().List()
	infos := make([]transport.SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, session.Info())
	}
	return infos
}

func (s *BridgeService) GetSession(id string) (transport.SessionInfo, error) {
	session, ok := s.transport.Sessions().Get(id)
	if !ok {
		return transport.SessionInfo{}, ServiceError{Code: ErrCodeNotFound, Message: "session " + id + " not found"}
	}
	return session.Info(), nil
}

// ListTopics returns every topic handled by at least one session.
func (s *BridgeService) ListTopics() []string {
	topics := []string{}
	for _, session := range s.transport.Sessions().List() {
		topics = append(topics, session.Topics()...)
	}
	slices.Sort(topics)
	return slices.Compact(topics)
}

func (s *BridgeService) GetTransport() TransportInfo {
	meta := s.transport.Meta()
	status := "disconnected"
	if meta.Connected {
		status = "connected"
	}
	return TransportInfo{
		Name:        meta.Name,
		Protocol:    meta.Protocol,
		Status:      status,
		Sessions:    meta.Sessions,
		MaxSessions: meta.MaxSessions,
	}
}

// SendMessage delivers req to its session, or broadcasts it when no session
// is named. It returns the number of sessions the message was handed to.
func (s *BridgeService) SendMessage(req MessageRequest) (int, error) {
	if err := validateTopic(req.Topic); err != nil {
		return 0, err
	}
	data := req.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if !json.Valid(data) {
		return 0, ServiceError{Code: ErrCodeInvalidInput, Message: "data must be valid JSON"}
	}

	if req.SessionID != "" {
		session, ok := s.transport.Sessions().Get(req.SessionID)
		if !ok {
			return 0, ServiceError{Code: ErrCodeNotFound, Message: "session " + req.SessionID + " not found"}
		}
		if err := session.SendRaw(req.Topic, data); err != nil {
			return 0, ServiceError{Code: ErrCodeInternal, Message: "failed to send message", Cause: err}
		}
		return 1, nil
	}

	sent := 0
	for _, session := range s.transport.Sessions().List() {
		if err := session.SendRaw(req.Topic, data); err != nil {
			slog.Warn("There was an error broadcasting to a session", "topic", req.Topic, "id", session.Id, "error", err.Error())
			continue
		}
		sent++
	}
	slog.Debug("Message broadcast", "topic", req.Topic, "sessions", sent, "size", len(data))
	return sent, nil
}

func validateTopic(topic string) error {
	if strings.TrimSpace(topic) == "" {
		return ServiceError{Code: ErrCodeInvalidInput, Message: "topic is required"}
	}
	return nil
}
