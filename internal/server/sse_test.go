package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-helpdesk/internal/notifications"
	"github.com/goliatone/go-helpdesk/pkg/domain"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/logger"
	"github.com/goliatone/go-helpdesk/pkg/stream"
)

// streamReader consumes SSE frames from an open stream response.
type streamReader struct {
	cancel context.CancelFunc
	events chan stream.Event
}

func openStream(t *testing.T, ts *httptest.Server, cookie *http.Cookie) *streamReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/notifications/stream", nil)
	if err != nil {
		cancel()
		t.Fatalf("stream request: %v", err)
	}
	req.AddCookie(cookie)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("open stream: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		cancel()
		t.Fatalf("stream status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		cancel()
		t.Fatalf("stream content type %q", got)
	}

	reader := &streamReader{cancel: cancel, events: make(chan stream.Event, 16)}
	go func() {
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Bytes()
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			event, err := stream.DecodeEvent(bytes.TrimPrefix(line, []byte("data: ")))
			if err != nil {
				continue
			}
			reader.events <- event
		}
		close(reader.events)
	}()
	t.Cleanup(cancel)
	return reader
}

func (r *streamReader) next(t *testing.T, want stream.EventType) stream.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case event, ok := <-r.events:
			if !ok {
				t.Fatalf("stream closed while waiting for %s", want)
			}
			if event.Type == stream.EventHeartbeat && want != stream.EventHeartbeat {
				continue
			}
			if event.Type != want {
				t.Fatalf("got event %s, want %s", event.Type, want)
			}
			return event
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func waitForRegistry(t *testing.T, srv *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Registry().Len() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("registry size %d, want %d", srv.Registry().Len(), want)
}

func TestStreamHandshakeAndHeartbeat(t *testing.T) {
	srv, ts := newTestServer(t)
	cookie := login(t, ts, "alice@example.com")

	reader := openStream(t, ts, cookie)
	connected := reader.next(t, stream.EventConnected)

	var payload struct {
		ConnectionID string `json:"connectionId"`
	}
	if err := json.Unmarshal(connected.Data, &payload); err != nil {
		t.Fatalf("decode connected payload: %v", err)
	}
	if payload.ConnectionID == "" {
		t.Fatalf("connected event missing connection id")
	}
	if connected.Timestamp.IsZero() {
		t.Fatalf("connected event missing timestamp")
	}

	waitForRegistry(t, srv, 1)
	reader.next(t, stream.EventHeartbeat)
}

func TestBroadcastReachesEveryTabOfTheSameUser(t *testing.T) {
	srv, ts := newTestServer(t)
	alice := login(t, ts, "alice@example.com")
	bob := login(t, ts, "bob@example.com")

	tabA := openStream(t, ts, alice)
	tabB := openStream(t, ts, alice)
	bobTab := openStream(t, ts, bob)
	tabA.next(t, stream.EventConnected)
	tabB.next(t, stream.EventConnected)
	bobTab.next(t, stream.EventConnected)
	waitForRegistry(t, srv, 3)

	aliceID := srv.Sessions().UserByEmail("alice@example.com").ID
	record, err := srv.Notifications().Create(context.Background(), notifications.CreateInput{
		UserID:   aliceID,
		Type:     domain.NotificationCommentAdded,
		Title:    "New comment",
		Message:  "Bob replied",
		TicketID: "TICKET-3",
	})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}

	for name, reader := range map[string]*streamReader{"tabA": tabA, "tabB": tabB} {
		event := reader.next(t, stream.EventNotification)
		var got domain.Notification
		if err := json.Unmarshal(event.Data, &got); err != nil {
			t.Fatalf("%s: decode notification: %v", name, err)
		}
		if got.ID != record.ID || got.Title != record.Title {
			t.Fatalf("%s: payload mismatch: %+v", name, got)
		}

		count := reader.next(t, stream.EventUnreadCount)
		var badge struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(count.Data, &badge); err != nil {
			t.Fatalf("%s: decode count: %v", name, err)
		}
		if badge.Count != 1 {
			t.Fatalf("%s: unread count %d, want 1", name, badge.Count)
		}
	}

	// Bob's stream must stay quiet apart from heartbeats.
	select {
	case event := <-bobTab.events:
		if event.Type == stream.EventNotification || event.Type == stream.EventUnreadCount {
			t.Fatalf("bob received alice's event %s", event.Type)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestLateBroadcastAfterStreamCloseEvicts(t *testing.T) {
	recorder := httptest.NewRecorder()
	sink := &flushSink{writer: recorder, flusher: recorder}

	registry := stream.NewRegistry()
	registry.Add("conn-1", "alice", sink)
	broadcaster := stream.NewBroadcaster(registry, &logger.Nop{})

	// The handler has returned: net/http owns the response writer again,
	// so a broadcaster holding a pre-disconnect registry snapshot must be
	// turned away instead of writing.
	sink.Close()

	if delivered := broadcaster.NotifyUser("alice", map[string]string{"title": "late"}); delivered != 0 {
		t.Fatalf("delivered %d writes to a closed stream", delivered)
	}
	if registry.Len() != 0 {
		t.Fatalf("closed connection still registered")
	}
	if recorder.Body.Len() != 0 {
		t.Fatalf("closed sink wrote to the response writer: %q", recorder.Body.String())
	}
	if err := sink.Send(stream.Event{Type: stream.EventHeartbeat}); err == nil {
		t.Fatalf("expected error from send on closed sink")
	}
}

func TestClientDisconnectCleansRegistry(t *testing.T) {
	srv, ts := newTestServer(t)
	cookie := login(t, ts, "alice@example.com")

	reader := openStream(t, ts, cookie)
	reader.next(t, stream.EventConnected)
	waitForRegistry(t, srv, 1)

	// Simulated network drop: the test never calls Remove itself.
	reader.cancel()
	waitForRegistry(t, srv, 0)
}
