package store

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-helpdesk/pkg/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a record cannot be located.
var ErrNotFound = errors.New("store: not found")

// ListOptions capture pagination and filtering knobs common to repositories.
type ListOptions struct {
	Limit              int
	Offset             int
	Since              time.Time
	Until              time.Time
	UnreadOnly         bool
	IncludeSoftDeleted bool
}

// ListResult bundles records and totals.
type ListResult[T any] struct {
	Items []T
	Total int
}

// Repository defines base CRUD helpers reused by entity-specific interfaces.
type Repository[T any] interface {
	Create(ctx context.Context, record *T) error
	Update(ctx context.Context, record *T) error
	GetByID(ctx context.Context, id uuid.UUID) (*T, error)
	List(ctx context.Context, opts ListOptions) (ListResult[T], error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// NotificationRepository persists helpdesk notifications and powers both the
// polling endpoints and the unread badge.
type NotificationRepository interface {
	Repository[domain.Notification]
	ListByUser(ctx context.Context, userID string, opts ListOptions) (ListResult[domain.Notification], error)
	MarkRead(ctx context.Context, id uuid.UUID, read bool) error
	MarkAllRead(ctx context.Context, userID string) error
	CountUnread(ctx context.Context, userID string) (int, error)
}
