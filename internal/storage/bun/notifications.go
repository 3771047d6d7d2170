package bunrepo

import (
	"context"
	"time"

	"github.com/goliatone/go-helpdesk/pkg/domain"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NotificationRepository persists notifications through bun.
type NotificationRepository struct {
	repo repository.Repository[*domain.Notification]
	db   *bun.DB
}

var _ store.NotificationRepository = (*NotificationRepository)(nil)

func NewNotificationRepository(db *bun.DB) *NotificationRepository {
	handlers := repository.ModelHandlers[*domain.Notification]{
		NewRecord:          func() *domain.Notification { return &domain.Notification{} },
		GetID:              func(n *domain.Notification) uuid.UUID { return n.ID },
		SetID:              func(n *domain.Notification, id uuid.UUID) { n.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(n *domain.Notification) string { return n.ID.String() },
	}
	return &NotificationRepository{
		repo: repository.MustNewRepository[*domain.Notification](db, handlers),
		db:   db,
	}
}

func (r *NotificationRepository) Create(ctx context.Context, record *domain.Notification) error {
	record.EnsureID()
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	_, err := r.repo.Create(ctx, record)
	return mapError(err)
}

func (r *NotificationRepository) Update(ctx context.Context, record *domain.Notification) error {
	record.UpdatedAt = time.Now().UTC()
	_, err := r.repo.Update(ctx, record)
	return mapError(err)
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	record, err := r.repo.Get(ctx, withID(id), withoutDeleted())
	if err != nil {
		return nil, mapError(err)
	}
	return record, nil
}

func (r *NotificationRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Notification], error) {
	return r.collect(ctx, withListOptions(opts))
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, opts store.ListOptions) (store.ListResult[domain.Notification], error) {
	return r.collect(ctx, withUser(userID), withListOptions(opts))
}

func (r *NotificationRepository) collect(ctx context.Context, criteria ...repository.SelectCriteria) (store.ListResult[domain.Notification], error) {
	records, total, err := r.repo.List(ctx, criteria...)
	if err != nil {
		return store.ListResult[domain.Notification]{}, mapError(err)
	}
	items := make([]domain.Notification, len(records))
	for i, rec := range records {
		items[i] = *rec
	}
	return store.ListResult[domain.Notification]{Items: items, Total: total}, nil
}

func (r *NotificationRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	record, err := r.repo.Get(ctx, withID(id))
	if err != nil {
		return mapError(err)
	}
	record.DeletedAt = time.Now().UTC()
	_, err = r.repo.Update(ctx, record)
	return mapError(err)
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID, read bool) error {
	record, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	record.Unread = !read
	if read {
		record.ReadAt = time.Now().UTC()
	} else {
		record.ReadAt = time.Time{}
	}
	return r.Update(ctx, record)
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	_, err := r.db.
		NewUpdate().
		Model((*domain.Notification)(nil)).
		Set("unread = ?", false).
		Set("read_at = ?", now).
		Set("updated_at = ?", now).
		Where("user_id = ?", userID).
		Where("unread = TRUE").
		Where("deleted_at IS NULL").
		Exec(ctx)
	return mapError(err)
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	count, err := r.db.
		NewSelect().
		Model((*domain.Notification)(nil)).
		Where("user_id = ?", userID).
		Where("unread = TRUE").
		Where("deleted_at IS NULL").
		Count(ctx)
	return count, mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if repository.IsRecordNotFound(err) {
		return store.ErrNotFound
	}
	return err
}
