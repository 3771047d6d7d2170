package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-helpdesk/internal/commands"
	"github.com/goliatone/go-helpdesk/internal/notifications"
	"github.com/goliatone/go-helpdesk/pkg/config"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/logger"
	"github.com/goliatone/go-helpdesk/pkg/storage"
	"github.com/goliatone/go-helpdesk/pkg/stream"
)

// Dependencies wires storage and infrastructure into the server.
type Dependencies struct {
	Config   config.Config
	Storage  storage.Providers
	Logger   logger.Logger
	Sessions *SessionStore
}

// Server exposes the notification stream, the polling endpoints, and the
// admin diagnostics over HTTP.
type Server struct {
	cfg           config.Config
	logger        logger.Logger
	registry      *stream.Registry
	broadcaster   *stream.Broadcaster
	notifications *notifications.Service
	catalog       *commands.Catalog
	sessions      *SessionStore
}

// New assembles the server: one registry per process, shared by the
// streaming endpoint and the broadcaster.
func New(deps Dependencies) (*Server, error) {
	if deps.Storage.Notifications == nil {
		return nil, errors.New("server: notification storage is required")
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Sessions == nil {
		deps.Sessions = NewSessionStore()
	}

	registry := stream.NewRegistry()
	broadcaster := stream.NewBroadcaster(registry, deps.Logger)

	var notifier stream.Notifier = broadcaster
	if !deps.Config.Stream.Enabled {
		notifier = &stream.NopNotifier{}
	}

	svc, err := notifications.NewService(notifications.Dependencies{
		Repository: deps.Storage.Notifications,
		Notifier:   notifier,
		Logger:     deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	catalog, err := commands.NewCatalog(commands.Dependencies{
		Notifications: svc,
		Logger:        deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:           deps.Config,
		logger:        deps.Logger,
		registry:      registry,
		broadcaster:   broadcaster,
		notifications: svc,
		catalog:       catalog,
		sessions:      deps.Sessions,
	}, nil
}

// Notifications exposes the notification service for host integrations
// (ticket workflows create notifications through it).
func (s *Server) Notifications() *notifications.Service {
	return s.notifications
}

// Registry exposes the connection registry for diagnostics.
func (s *Server) Registry() *stream.Registry {
	return s.registry
}

// Sessions exposes the session provider so hosts can seed users.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.RequireAuth)

		r.Get("/user", s.handleCurrentUser)

		r.Get("/notifications", s.handleListNotifications)
		r.Get("/notifications/unread-count", s.handleUnreadCount)
		r.Get("/notifications/stream", s.handleStream)
		r.Post("/notifications/{id}/read", s.handleMarkRead(true))
		r.Post("/notifications/{id}/unread", s.handleMarkRead(false))
		r.Post("/notifications/mark-all-read", s.handleMarkAllRead)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.RequireAuth, s.RequireAdmin)

		r.Get("/stream/debug", s.handleStreamDebug)
		r.Post("/stream/test", s.handleStreamTest)
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
