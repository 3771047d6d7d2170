package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-helpdesk/internal/commands"
	"github.com/goliatone/go-helpdesk/internal/notifications"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/store"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request"})
		return
	}

	user := s.sessions.UserByEmail(req.Email)
	if user == nil {
		respondJSON(w, http.StatusUnauthorized, map[string]any{"error": "user not found"})
		return
	}

	sessionID := s.sessions.Create(user)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Expires:  time.Now().Add(24 * time.Hour),
		HttpOnly: true,
		Path:     "/",
	})

	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		s.sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:    SessionCookieName,
		Value:   "",
		Path:    "/",
		Expires: time.Now().Add(-time.Hour),
	})
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, UserFrom(r.Context()))
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	filters := notifications.ListFilters{
		UnreadOnly: r.URL.Query().Get("unread_only") == "true",
	}
	opts := store.ListOptions{Limit: 50}

	result, err := s.notifications.List(r.Context(), user.ID, opts, filters)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	count, err := s.notifications.UnreadCount(r.Context(), user.ID)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"items":        result.Items,
		"total":        result.Total,
		"unread_count": count,
	})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	count, err := s.notifications.UnreadCount(r.Context(), user.ID)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (s *Server) handleMarkRead(read bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		id := chi.URLParam(r, "id")
		if id == "" {
			respondJSON(w, http.StatusBadRequest, map[string]any{"error": "id required"})
			return
		}

		err := s.catalog.MarkRead.Execute(r.Context(), commands.MarkRead{
			UserID: user.ID,
			IDs:    []string{id},
			Read:   read,
		})
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if err := s.catalog.MarkAllRead.Execute(r.Context(), commands.MarkAllRead{UserID: user.ID}); err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleStreamDebug reports the open connection table. Admin only.
func (s *Server) handleStreamDebug(w http.ResponseWriter, r *http.Request) {
	info := s.registry.DebugInfo()
	respondJSON(w, http.StatusOK, map[string]any{
		"totalConnections": info.TotalConnections,
		"connections":      info.Connections,
		"serverTime":       time.Now().UTC(),
	})
}

// handleStreamTest synthesizes one notification for the caller so the
// pipeline can be exercised end to end. Admin only.
func (s *Server) handleStreamTest(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if err := s.catalog.SendTest.Execute(r.Context(), commands.SendTest{UserID: user.ID}); err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func decodeJSON(r *http.Request, into any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(into)
}
