package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mbocsi/nativebridge/broker"
	"github.com/mbocsi/nativebridge/services"
)

func (s *Server) HandleHome(w http.ResponseWriter, r *http.Request) {
	s.templates.Render(w, "bridge.html", s.options)
}

func (s *Server) HandleTransport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.GetTransport())
}

func (s *Server) HandleTopics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"topics": s.service.ListTopics()})
}

func (s *Server) HandleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.service.ListSessions()})
}

func (s *Server) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// HandleSendMessage sends {"topic":..,"data":..} to one session
func (s *Server) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req services.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleError(w, services.ServiceError{Code: services.ErrCodeInvalidInput, Message: "invalid request body", Cause: err})
		return
	}
	req.SessionID = chi.URLParam(r, "id")

	s.send(w, req)
}

// HandleBroadcast sends {"topic":..,"data":..} to every session
func (s *Server) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req services.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleError(w, services.ServiceError{Code: services.ErrCodeInvalidInput, Message: "invalid request body", Cause: err})
		return
	}
	req.SessionID = ""

	s.send(w, req)
}

// HandleTraffic streams bridge traffic as server-sent events. The optional
// session query parameter narrows the stream to one session.
func (s *Server) HandleTraffic(w http.ResponseWriter, r *http.Request) {
	tap := s.transport.Tap()
	if tap == nil {
		http.Error(w, "traffic stream disabled", http.StatusNotFound)
		return
	}

	session := r.URL.Query().Get("session")
	if session == "" {
		session = broker.AllSessions
	} else if _, err := s.service.GetSession(session); err != nil {
		s.handleError(w, err)
		return
	}

	client, ok := NewSSEClient(r.Context(), w, session)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if err := client.Stream(tap); err != nil {
		slog.Debug("Traffic stream closed", "session", session, "error", err.Error())
	}
}

func (s *Server) send(w http.ResponseWriter, req services.MessageRequest) {
	sent, err := s.service.SendMessage(req)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"topic": req.Topic, "sessions": sent})
}

// handleError maps service errors to HTTP status codes
func (s *Server) handleError(w http.ResponseWriter, err error) {
	slog.Error("Service error", "error", err)

	status := http.StatusInternalServerError
	var serviceErr services.ServiceError
	if errors.As(err, &serviceErr) {
		switch serviceErr.Code {
		case services.ErrCodeNotFound:
			status = http.StatusNotFound
		case services.ErrCodeInvalidInput:
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"code": serviceErr.Code, "error": serviceErr.Error()})
		return
	}
	writeJSON(w, status, map[string]string{"code": services.ErrCodeInternal, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write JSON response", "error", err.Error())
	}
}
