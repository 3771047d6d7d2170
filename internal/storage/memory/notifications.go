package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-helpdesk/pkg/domain"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/store"
	"github.com/google/uuid"
)

// NotificationRepository keeps notifications in process memory. Used by
// tests and by the demo server when no DSN is configured.
type NotificationRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]domain.Notification
}

var _ store.NotificationRepository = (*NotificationRepository)(nil)

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		records: make(map[uuid.UUID]domain.Notification),
	}
}

func (r *NotificationRepository) Create(ctx context.Context, record *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record.EnsureID()
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	r.records[record.ID] = *record
	return nil
}

func (r *NotificationRepository) Update(ctx context.Context, record *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == uuid.Nil {
		return store.ErrNotFound
	}
	if _, ok := r.records[record.ID]; !ok {
		return store.ErrNotFound
	}
	record.UpdatedAt = time.Now().UTC()
	r.records[record.ID] = *record
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok || !record.DeletedAt.IsZero() {
		return nil, store.ErrNotFound
	}
	copy := record
	return &copy, nil
}

func (r *NotificationRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Notification], error) {
	return r.listWhere(opts, nil)
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, opts store.ListOptions) (store.ListResult[domain.Notification], error) {
	return r.listWhere(opts, func(n domain.Notification) bool {
		return n.UserID == userID
	})
}

func (r *NotificationRepository) listWhere(opts store.ListOptions, match func(domain.Notification) bool) (store.ListResult[domain.Notification], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filtered []domain.Notification
	for _, record := range r.records {
		if !opts.IncludeSoftDeleted && !record.DeletedAt.IsZero() {
			continue
		}
		if !opts.Since.IsZero() && record.CreatedAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && record.CreatedAt.After(opts.Until) {
			continue
		}
		if opts.UnreadOnly && !record.Unread {
			continue
		}
		if match != nil && !match(record) {
			continue
		}
		filtered = append(filtered, record)
	}

	// Newest first: the notification center shows recent activity on top.
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	total := len(filtered)
	start := opts.Offset
	if start > total {
		start = total
	}
	end := total
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return store.ListResult[domain.Notification]{Items: filtered[start:end], Total: total}, nil
}

func (r *NotificationRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return store.ErrNotFound
	}
	if record.DeletedAt.IsZero() {
		record.DeletedAt = time.Now().UTC()
	}
	r.records[id] = record
	return nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID, read bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok || !record.DeletedAt.IsZero() {
		return store.ErrNotFound
	}
	record.Unread = !read
	if read {
		record.ReadAt = time.Now().UTC()
	} else {
		record.ReadAt = time.Time{}
	}
	record.UpdatedAt = time.Now().UTC()
	r.records[id] = record
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for id, record := range r.records {
		if record.UserID != userID || !record.Unread || !record.DeletedAt.IsZero() {
			continue
		}
		record.Unread = false
		record.ReadAt = now
		record.UpdatedAt = now
		r.records[id] = record
	}
	return nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, record := range r.records {
		if record.UserID == userID && record.Unread && record.DeletedAt.IsZero() {
			count++
		}
	}
	return count, nil
}
