package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbocsi/nativebridge/services"
	"github.com/mbocsi/nativebridge/transport"
)

type Options struct {
	Title      string
	BridgePath string
	EventName  string
}

// Server serves the bridge page, the websocket endpoint the page connects
// to, and a small JSON API for inspecting sessions and pushing messages.
type Server struct {
	transport *transport.WSTransport
	service   *services.BridgeService
	templates *Templates
	options   Options
	server    *http.Server
}

func NewServer(t *transport.WSTransport, service *services.BridgeService, opts Options) *Server {
	if opts.Title == "" {
		opts.Title = "Native Bridge"
	}
	return &Server{
		transport: t,
		service:   service,
		templates: NewTemplates(),
		options:   opts,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.HandleHome)
	r.Get(s.options.BridgePath, s.transport.ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		r.Get("/transport", s.HandleTransport)
		r.Get("/topics", s.HandleTopics)
		r.Get("/sessions", s.HandleSessions)
		r.Get("/sessions/{id}", s.HandleSessionDetail)
		r.Post("/sessions/{id}/messages", s.HandleSendMessage)
		r.Post("/messages", s.HandleBroadcast)
		r.Get("/traffic", s.HandleTraffic)
	})
	return r
}

// Start blocks serving addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	slog.Info("Starting bridge web server", "addr", addr)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down bridge web server")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
