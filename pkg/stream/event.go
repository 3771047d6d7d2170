package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EventType enumerates the payload kinds carried over a notification stream.
type EventType string

const (
	// EventConnected is emitted once per connection, right after registration.
	EventConnected EventType = "connected"
	// EventHeartbeat is the periodic liveness signal.
	EventHeartbeat EventType = "heartbeat"
	// EventNotification carries a newly created notification.
	EventNotification EventType = "notification"
	// EventUnreadCount carries the refreshed unread badge count.
	EventUnreadCount EventType = "unread_count"
	// EventUnknown absorbs tags introduced by newer servers. Consumers log
	// and ignore it instead of failing.
	EventUnknown EventType = "unknown"
)

// ParseEventType normalizes a wire tag into the closed set. Aliases emitted
// by earlier stream revisions (ping, notification_created,
// unread_count_changed, notification_read) map onto their canonical
// counterparts; anything else becomes EventUnknown.
func ParseEventType(tag string) EventType {
	switch tag {
	case "connected":
		return EventConnected
	case "heartbeat", "ping":
		return EventHeartbeat
	case "notification", "notification_created":
		return EventNotification
	case "unread_count", "unread_count_changed", "notification_read":
		return EventUnreadCount
	default:
		return EventUnknown
	}
}

// Event is a single stream frame payload.
type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent builds an event of the given type, serializing the payload.
func NewEvent(kind EventType, payload any) (Event, error) {
	event := Event{Type: kind, Timestamp: time.Now().UTC()}
	if payload == nil {
		return event, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("stream: marshal %s payload: %w", kind, err)
	}
	event.Data = data
	return event, nil
}

// Encode renders the event as a server-sent-events frame: a single
// "data: <json>" line followed by a blank line.
func (e Event) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("stream: encode event: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(body) + 8)
	buf.WriteString("data: ")
	buf.Write(body)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// DecodeEvent parses the JSON body of a frame, normalizing the type tag.
func DecodeEvent(body []byte) (Event, error) {
	var wire struct {
		Type      string          `json:"type"`
		Data      json.RawMessage `json:"data"`
		Timestamp time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return Event{}, fmt.Errorf("stream: decode event: %w", err)
	}
	return Event{
		Type:      ParseEventType(wire.Type),
		Data:      wire.Data,
		Timestamp: wire.Timestamp,
	}, nil
}
