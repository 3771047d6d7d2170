package server

import (
	"sync"

	"github.com/google/uuid"
)

// User is the identity consumed by the notification endpoints. The real
// helpdesk resolves users from its own account store; this provider stands
// in for it behind the same lookup surface.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"admin"`
}

// SessionStore is a cookie-backed demo session provider.
type SessionStore struct {
	mu       sync.RWMutex
	users    map[string]*User // by email
	sessions map[string]*User // by session id
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		users:    make(map[string]*User),
		sessions: make(map[string]*User),
	}
}

// AddUser registers a known user; returns the stored record.
func (s *SessionStore) AddUser(user User) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	stored := user
	s.users[user.Email] = &stored
	return &stored
}

// UserByEmail looks up a registered user.
func (s *SessionStore) UserByEmail(email string) *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[email]
}

// Create opens a new session for the user and returns its id.
func (s *SessionStore) Create(user *User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionID := uuid.New().String()
	s.sessions[sessionID] = user
	return sessionID
}

// Resolve returns the user owning the session, or nil.
func (s *SessionStore) Resolve(sessionID string) *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

// Delete drops the session.
func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
