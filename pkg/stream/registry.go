package stream

import (
	"sync"
	"time"
)

// Sink is the write-capable handle for one live client connection. Writes
// must be safe to call from multiple goroutines; a returned error means the
// transport is gone and the connection should be evicted.
type Sink interface {
	Send(Event) error
}

// Connection associates a sink with its owning user.
type Connection struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	sink      Sink
}

// Registry is the process-wide table of open notification streams. It is
// constructed once at startup and injected into the streaming endpoint
// (insert/delete) and the broadcaster (iterate); nothing else touches it.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewRegistry returns an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Add registers a sink under the caller-supplied connection id. Uniqueness
// is the caller's responsibility; ids are generated with uuid.New at the
// endpoint. The entry is visible to broadcasts immediately.
func (r *Registry) Add(id, userID string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &Connection{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		sink:      sink,
	}
}

// Remove deletes the connection if present; removing an unknown id is a
// no-op. Called on transport close and when a broadcast write fails.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Len reports the number of open connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ConnectionsFor snapshots the connections owned by a user. The returned
// slice is safe to iterate without holding the registry lock.
func (r *Registry) ConnectionsFor(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matches []*Connection
	for _, conn := range r.conns {
		if conn.UserID == userID {
			matches = append(matches, conn)
		}
	}
	return matches
}

// ConnectionInfo is the diagnostic view of one open connection.
type ConnectionInfo struct {
	ConnectionID string    `json:"connectionId"`
	UserID       string    `json:"userId"`
	CreatedAt    time.Time `json:"createdAt"`
	AgeMinutes   float64   `json:"ageMinutes"`
}

// DebugInfo summarizes the registry for the admin debug endpoint. The
// caller is responsible for gating access by role.
type DebugInfo struct {
	TotalConnections int              `json:"totalConnections"`
	Connections      []ConnectionInfo `json:"connections"`
}

// DebugInfo returns the current connection table snapshot.
func (r *Registry) DebugInfo() DebugInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := time.Now().UTC()
	info := DebugInfo{
		TotalConnections: len(r.conns),
		Connections:      make([]ConnectionInfo, 0, len(r.conns)),
	}
	for _, conn := range r.conns {
		info.Connections = append(info.Connections, ConnectionInfo{
			ConnectionID: conn.ID,
			UserID:       conn.UserID,
			CreatedAt:    conn.CreatedAt,
			AgeMinutes:   now.Sub(conn.CreatedAt).Minutes(),
		})
	}
	return info
}
