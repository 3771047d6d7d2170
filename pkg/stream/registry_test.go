package stream

import (
	"fmt"
	"sync"
	"testing"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Send(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) recorded() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestRegistryAddRemoveBookkeeping(t *testing.T) {
	registry := NewRegistry()

	for i := 0; i < 5; i++ {
		registry.Add(fmt.Sprintf("conn-%d", i), "user-1", &recordingSink{})
	}
	if got := registry.Len(); got != 5 {
		t.Fatalf("expected 5 connections, got %d", got)
	}

	registry.Remove("conn-1")
	registry.Remove("conn-3")
	registry.Remove("conn-3") // repeat remove is a no-op
	registry.Remove("never-added")

	info := registry.DebugInfo()
	if info.TotalConnections != 3 {
		t.Fatalf("expected 3 connections after removals, got %d", info.TotalConnections)
	}
	for _, conn := range info.Connections {
		if conn.ConnectionID == "conn-1" || conn.ConnectionID == "conn-3" {
			t.Fatalf("removed connection %s still listed", conn.ConnectionID)
		}
		if conn.AgeMinutes < 0 {
			t.Fatalf("connection age must not be negative, got %f", conn.AgeMinutes)
		}
	}
}

func TestRegistryConnectionsForFiltersByOwner(t *testing.T) {
	registry := NewRegistry()
	registry.Add("a", "alice", &recordingSink{})
	registry.Add("b", "alice", &recordingSink{})
	registry.Add("c", "bob", &recordingSink{})

	conns := registry.ConnectionsFor("alice")
	if len(conns) != 2 {
		t.Fatalf("expected 2 connections for alice, got %d", len(conns))
	}
	for _, conn := range conns {
		if conn.UserID != "alice" {
			t.Fatalf("connection %s owned by %s leaked into alice's set", conn.ID, conn.UserID)
		}
	}
	if conns := registry.ConnectionsFor("carol"); len(conns) != 0 {
		t.Fatalf("expected no connections for carol, got %d", len(conns))
	}
}

func TestRegistryConcurrentMutation(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			registry.Add(id, "user", &recordingSink{})
			registry.DebugInfo()
			if i%2 == 0 {
				registry.Remove(id)
			}
		}(i)
	}
	wg.Wait()
	if got := registry.Len(); got != 16 {
		t.Fatalf("expected 16 surviving connections, got %d", got)
	}
}
