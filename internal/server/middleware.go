package server

import (
	"context"
	"net/http"
)

// SessionCookieName carries the session id between requests.
const SessionCookieName = "session_id"

type contextKey string

const userContextKey contextKey = "user"

// RequireAuth rejects requests without a valid session before any stream
// or notification state is touched.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			respondJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		user := s.sessions.Resolve(cookie.Value)
		if user == nil {
			respondJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid session"})
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates the diagnostic endpoints.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user == nil || !user.IsAdmin {
			respondJSON(w, http.StatusForbidden, map[string]any{"error": "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserFrom retrieves the authenticated user from the request context.
func UserFrom(ctx context.Context) *User {
	user, ok := ctx.Value(userContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}
