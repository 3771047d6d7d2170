package commands

import (
	"context"
	"errors"
	"strings"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-helpdesk/internal/notifications"
	"github.com/goliatone/go-helpdesk/pkg/domain"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/logger"
	"github.com/google/uuid"
)

// Catalog exposes go-command compatible handlers for host transports.
type Catalog struct {
	CreateNotification command.Commander[CreateNotification]
	MarkRead           command.Commander[MarkRead]
	MarkAllRead        command.Commander[MarkAllRead]
	SendTest           command.Commander[SendTest]
}

type notificationService interface {
	Create(ctx context.Context, input notifications.CreateInput) (*domain.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []uuid.UUID, read bool) error
	MarkAllRead(ctx context.Context, userID string) error
}

// Dependencies wires services into the command catalog.
type Dependencies struct {
	Notifications notificationService
	Logger        logger.Logger
}

// NewCatalog builds the command catalog using the supplied dependencies.
func NewCatalog(deps Dependencies) (*Catalog, error) {
	if deps.Notifications == nil {
		return nil, errors.New("commands: notification service is required")
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	return &Catalog{
		CreateNotification: createNotificationCommand{svc: deps.Notifications},
		MarkRead:           markReadCommand{svc: deps.Notifications},
		MarkAllRead:        markAllReadCommand{svc: deps.Notifications},
		SendTest:           sendTestCommand{svc: deps.Notifications},
	}, nil
}

// CreateNotification is the payload for recording a new notification.
type CreateNotification struct {
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ActorID   string         `json:"actor_id"`
	TicketID  string         `json:"ticket_id"`
	CommentID string         `json:"comment_id"`
	Metadata  map[string]any `json:"metadata"`
}

type createNotificationCommand struct {
	svc notificationService
}

func (c createNotificationCommand) Execute(ctx context.Context, msg CreateNotification) error {
	_, err := c.svc.Create(ctx, notifications.CreateInput{
		UserID:    msg.UserID,
		Type:      msg.Type,
		Title:     msg.Title,
		Message:   msg.Message,
		ActorID:   msg.ActorID,
		TicketID:  msg.TicketID,
		CommentID: msg.CommentID,
		Metadata:  domain.JSONMap(msg.Metadata),
	})
	return err
}

// MarkRead toggles the unread flag on the given notifications.
type MarkRead struct {
	UserID string   `json:"user_id"`
	IDs    []string `json:"ids"`
	Read   bool     `json:"read"`
}

type markReadCommand struct {
	svc notificationService
}

func (c markReadCommand) Execute(ctx context.Context, msg MarkRead) error {
	ids := make([]uuid.UUID, 0, len(msg.IDs))
	for _, raw := range msg.IDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return errors.New("commands: invalid notification id")
		}
		ids = append(ids, id)
	}
	return c.svc.MarkRead(ctx, msg.UserID, ids, msg.Read)
}

// MarkAllRead clears the unread flag for every notification a user owns.
type MarkAllRead struct {
	UserID string `json:"user_id"`
}

type markAllReadCommand struct {
	svc notificationService
}

func (c markAllReadCommand) Execute(ctx context.Context, msg MarkAllRead) error {
	return c.svc.MarkAllRead(ctx, msg.UserID)
}

// SendTest synthesizes one notification for the caller so admins can
// exercise the delivery pipeline end to end.
type SendTest struct {
	UserID string `json:"user_id"`
}

type sendTestCommand struct {
	svc notificationService
}

func (c sendTestCommand) Execute(ctx context.Context, msg SendTest) error {
	_, err := c.svc.Create(ctx, notifications.CreateInput{
		UserID:  msg.UserID,
		Type:    domain.NotificationTest,
		Title:   "Test notification",
		Message: "This is a test of the notification stream.",
	})
	return err
}
