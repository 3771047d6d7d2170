package stream

import (
	"github.com/goliatone/go-helpdesk/pkg/interfaces/logger"
)

// Notifier abstracts push delivery for services that create or mutate
// notifications. The return value is the number of streams written.
type Notifier interface {
	NotifyUser(userID string, payload any) int
	UnreadCount(userID string, count int) int
}

// NopNotifier discards events; used when realtime delivery is disabled.
type NopNotifier struct{}

var _ Notifier = (*NopNotifier)(nil)

func (n *NopNotifier) NotifyUser(userID string, payload any) int  { return 0 }
func (n *NopNotifier) UnreadCount(userID string, count int) int   { return 0 }

// Broadcaster fans events out to every registry connection a user owns.
// Delivery is at-most-once and best-effort: there is no acknowledgment, no
// retry, and no buffering for users without open connections.
type Broadcaster struct {
	registry *Registry
	logger   logger.Logger
}

var _ Notifier = (*Broadcaster)(nil)

// NewBroadcaster binds a broadcaster to the given registry.
func NewBroadcaster(registry *Registry, lgr logger.Logger) *Broadcaster {
	if lgr == nil {
		lgr = &logger.Nop{}
	}
	return &Broadcaster{registry: registry, logger: lgr}
}

// NotifyUser pushes a notification payload to each of the user's open
// streams. A failed write evicts that connection from the registry instead
// of propagating as an error.
func (b *Broadcaster) NotifyUser(userID string, payload any) int {
	event, err := NewEvent(EventNotification, payload)
	if err != nil {
		b.logger.Warn("drop notification broadcast", logger.F("user_id", userID), logger.F("error", err))
		return 0
	}
	return b.send(userID, event)
}

// UnreadCount pushes the refreshed unread badge count to the user's streams.
func (b *Broadcaster) UnreadCount(userID string, count int) int {
	event, err := NewEvent(EventUnreadCount, map[string]int{"count": count})
	if err != nil {
		b.logger.Warn("drop unread count broadcast", logger.F("user_id", userID), logger.F("error", err))
		return 0
	}
	return b.send(userID, event)
}

func (b *Broadcaster) send(userID string, event Event) int {
	delivered := 0
	for _, conn := range b.registry.ConnectionsFor(userID) {
		if err := conn.sink.Send(event); err != nil {
			// Dead transport; the close signal has not fired yet.
			b.registry.Remove(conn.ID)
			b.logger.Debug("evict stale connection",
				logger.F("connection_id", conn.ID),
				logger.F("user_id", conn.UserID),
				logger.F("error", err))
			continue
		}
		delivered++
	}
	b.logger.Debug("broadcast",
		logger.F("type", event.Type),
		logger.F("user_id", userID),
		logger.F("recipients", delivered))
	return delivered
}
