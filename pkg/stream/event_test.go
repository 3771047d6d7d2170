package stream

import (
	"bytes"
	"testing"
)

func TestParseEventTypeNormalizesAliases(t *testing.T) {
	cases := map[string]EventType{
		"connected":            EventConnected,
		"heartbeat":            EventHeartbeat,
		"ping":                 EventHeartbeat,
		"notification":         EventNotification,
		"notification_created": EventNotification,
		"unread_count":         EventUnreadCount,
		"unread_count_changed": EventUnreadCount,
		"notification_read":    EventUnreadCount,
		"presence_changed":     EventUnknown,
		"":                     EventUnknown,
	}
	for tag, want := range cases {
		if got := ParseEventType(tag); got != want {
			t.Fatalf("ParseEventType(%q) = %s, want %s", tag, got, want)
		}
	}
}

func TestEncodeProducesSSEFrame(t *testing.T) {
	event, err := NewEvent(EventHeartbeat, nil)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	frame, err := event.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(frame, []byte("data: ")) {
		t.Fatalf("frame missing data prefix: %q", frame)
	}
	if !bytes.HasSuffix(frame, []byte("\n\n")) {
		t.Fatalf("frame missing terminating blank line: %q", frame)
	}

	decoded, err := DecodeEvent(bytes.TrimSuffix(bytes.TrimPrefix(frame, []byte("data: ")), []byte("\n\n")))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if decoded.Type != EventHeartbeat {
		t.Fatalf("decoded type %s, want heartbeat", decoded.Type)
	}
	if decoded.Timestamp.IsZero() {
		t.Fatalf("decoded event lost its timestamp")
	}
}

func TestDecodeEventKeepsUnknownTagsNonFatal(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"type":"presence_changed","data":{"who":"bob"},"timestamp":"2026-01-02T15:04:05Z"}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if event.Type != EventUnknown {
		t.Fatalf("expected unknown type, got %s", event.Type)
	}
	if len(event.Data) == 0 {
		t.Fatalf("unknown event dropped its payload")
	}
}
