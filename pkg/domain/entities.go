package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecordMeta captures identifiers and audit fields shared across entities.
type RecordMeta struct {
	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
	DeletedAt time.Time `bun:",soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureID assigns a UUID when the struct is about to be persisted.
func (m *RecordMeta) EnsureID() {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
}

// JSONMap persists arbitrary metadata fields as JSON.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if m == nil {
		return errors.New("JSONMap: Scan on nil pointer")
	}
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("JSONMap: unsupported type %T", value)
	}
}

// Notification stores a single in-app helpdesk notification. Rows are the
// payload source for both push delivery and the polling fallback.
type Notification struct {
	bun.BaseModel `bun:"table:helpdesk_notifications"`
	RecordMeta

	UserID    string    `bun:",nullzero,notnull" json:"user_id"`
	Type      string    `bun:",nullzero,notnull" json:"type"`
	Title     string    `bun:",nullzero" json:"title"`
	Message   string    `bun:",nullzero" json:"message"`
	Unread    bool      `bun:",nullzero" json:"unread"`
	ReadAt    time.Time `bun:",nullzero" json:"read_at,omitempty"`
	ActorID   string    `bun:",nullzero" json:"actor_id,omitempty"`
	TicketID  string    `bun:",nullzero" json:"ticket_id,omitempty"`
	CommentID string    `bun:",nullzero" json:"comment_id,omitempty"`
	Metadata  JSONMap   `bun:"type:jsonb,nullzero" json:"metadata,omitempty"`
}

// Notification type constants used by ticket workflows.
const (
	NotificationTicketAssigned = "ticket_assigned"
	NotificationCommentAdded   = "comment_added"
	NotificationMention        = "mention"
	NotificationStatusChanged  = "status_changed"
	NotificationTest           = "test"
)
