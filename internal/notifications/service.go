package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-helpdesk/pkg/domain"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/logger"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/store"
	"github.com/goliatone/go-helpdesk/pkg/stream"
	"github.com/google/uuid"
)

// CreateInput captures the fields required to record a new notification.
type CreateInput struct {
	UserID    string
	Type      string
	Title     string
	Message   string
	ActorID   string
	TicketID  string
	CommentID string
	Metadata  domain.JSONMap
}

// ListFilters refine notification queries.
type ListFilters struct {
	UnreadOnly bool
	Before     time.Time // created at or before this instant
}

// Dependencies wires the repository and realtime push into the service.
type Dependencies struct {
	Repository store.NotificationRepository
	Notifier   stream.Notifier
	Logger     logger.Logger
}

// Service manages notification CRUD and pushes realtime updates to any
// open streams the target user has. Push delivery is best-effort: a user
// with no open connections simply catches up via the polling endpoints.
type Service struct {
	repo     store.NotificationRepository
	notifier stream.Notifier
	logger   logger.Logger
}

var errRepositoryRequired = errors.New("notifications: repository is required")

// NewService constructs the notification service.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Repository == nil {
		return nil, errRepositoryRequired
	}
	if deps.Notifier == nil {
		deps.Notifier = &stream.NopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	return &Service{
		repo:     deps.Repository,
		notifier: deps.Notifier,
		logger:   deps.Logger,
	}, nil
}

// Create inserts a notification and pushes it, plus the refreshed unread
// count, to the recipient's open streams.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Notification, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}
	record := &domain.Notification{
		UserID:    strings.TrimSpace(input.UserID),
		Type:      input.Type,
		Title:     input.Title,
		Message:   input.Message,
		ActorID:   input.ActorID,
		TicketID:  input.TicketID,
		CommentID: input.CommentID,
		Metadata:  cloneJSON(input.Metadata),
		Unread:    true,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	s.notifier.NotifyUser(record.UserID, record)
	s.pushUnreadCount(ctx, record.UserID)
	return record, nil
}

// List returns notifications for the given user applying the filters.
// Filters travel with the query so pagination and totals reflect the
// matching set, not whatever happens to share a page with it.
func (s *Service) List(ctx context.Context, userID string, opts store.ListOptions, filters ListFilters) (store.ListResult[domain.Notification], error) {
	opts.UnreadOnly = filters.UnreadOnly
	if !filters.Before.IsZero() {
		opts.Until = filters.Before
	}
	return s.repo.ListByUser(ctx, strings.TrimSpace(userID), opts)
}

// MarkRead toggles the unread flag for the provided items. IDs that do not
// belong to the user are ignored to avoid leaking existence checks.
func (s *Service) MarkRead(ctx context.Context, userID string, ids []uuid.UUID, read bool) error {
	userID = strings.TrimSpace(userID)
	changed := false
	for _, id := range ids {
		record, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return err
		}
		if record.UserID != userID {
			continue
		}
		if err := s.repo.MarkRead(ctx, id, read); err != nil {
			return err
		}
		changed = true
	}
	if changed {
		s.pushUnreadCount(ctx, userID)
	}
	return nil
}

// MarkAllRead clears the unread flag on every notification the user owns.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	s.pushUnreadCount(ctx, userID)
	return nil
}

// UnreadCount returns the unread badge count for the given user.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, strings.TrimSpace(userID))
}

func (s *Service) pushUnreadCount(ctx context.Context, userID string) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Warn("count unread for push failed",
			logger.F("user_id", userID),
			logger.F("error", err))
		return
	}
	s.notifier.UnreadCount(userID, count)
}

func validateCreateInput(input CreateInput) error {
	if strings.TrimSpace(input.UserID) == "" {
		return errors.New("notifications: user_id is required")
	}
	if strings.TrimSpace(input.Type) == "" {
		return errors.New("notifications: type is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return errors.New("notifications: title is required")
	}
	return nil
}

func cloneJSON(src domain.JSONMap) domain.JSONMap {
	if len(src) == 0 {
		return nil
	}
	out := make(domain.JSONMap, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}
