package notifications

import (
	"context"
	"sync"
	"testing"

	"github.com/goliatone/go-helpdesk/internal/storage/memory"
	"github.com/goliatone/go-helpdesk/pkg/domain"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/logger"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/store"
	"github.com/goliatone/go-helpdesk/pkg/stream"
	"github.com/google/uuid"
)

type capturedPush struct {
	mu            sync.Mutex
	notifications []any
	unreadCounts  []int
}

func (c *capturedPush) NotifyUser(userID string, payload any) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, payload)
	return 1
}

func (c *capturedPush) UnreadCount(userID string, count int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unreadCounts = append(c.unreadCounts, count)
	return 1
}

func newTestService(t *testing.T, repo store.NotificationRepository, notifier stream.Notifier) *Service {
	t.Helper()
	svc, err := NewService(Dependencies{
		Repository: repo,
		Notifier:   notifier,
		Logger:     &logger.Nop{},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreatePersistsAndPushes(t *testing.T) {
	ctx := context.Background()
	push := &capturedPush{}
	svc := newTestService(t, memory.NewNotificationRepository(), push)

	record, err := svc.Create(ctx, CreateInput{
		UserID:   "user-1",
		Type:     domain.NotificationTicketAssigned,
		Title:    "Ticket assigned",
		Message:  "TICKET-9 is now yours",
		TicketID: "TICKET-9",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.ID == uuid.Nil {
		t.Fatalf("expected persisted notification")
	}
	if !record.Unread {
		t.Fatalf("new notifications must start unread")
	}
	if len(push.notifications) != 1 {
		t.Fatalf("expected 1 notification push, got %d", len(push.notifications))
	}
	if len(push.unreadCounts) != 1 || push.unreadCounts[0] != 1 {
		t.Fatalf("expected unread count push of 1, got %v", push.unreadCounts)
	}
}

func TestCreateRejectsIncompleteInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewNotificationRepository(), &stream.NopNotifier{})

	cases := []CreateInput{
		{Type: domain.NotificationTest, Title: "No user"},
		{UserID: "user-1", Title: "No type"},
		{UserID: "user-1", Type: domain.NotificationTest},
	}
	for i, input := range cases {
		if _, err := svc.Create(ctx, input); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestMarkReadChecksOwnershipAndPushesCount(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewNotificationRepository()
	push := &capturedPush{}
	svc := newTestService(t, repo, push)

	mine, err := svc.Create(ctx, CreateInput{UserID: "user-1", Type: domain.NotificationMention, Title: "Mention"})
	if err != nil {
		t.Fatalf("create mine: %v", err)
	}
	theirs, err := svc.Create(ctx, CreateInput{UserID: "user-2", Type: domain.NotificationMention, Title: "Mention"})
	if err != nil {
		t.Fatalf("create theirs: %v", err)
	}

	pushesBefore := len(push.unreadCounts)
	if err := svc.MarkRead(ctx, "user-1", []uuid.UUID{mine.ID, theirs.ID, uuid.New()}, true); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	count, err := svc.UnreadCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 unread for user-1, got %d", count)
	}
	count, err = svc.UnreadCount(ctx, "user-2")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 1 {
		t.Fatalf("user-2's notification was read through user-1's call")
	}
	if len(push.unreadCounts) != pushesBefore+1 {
		t.Fatalf("expected one unread push after mark read, got %d", len(push.unreadCounts)-pushesBefore)
	}
	if last := push.unreadCounts[len(push.unreadCounts)-1]; last != 0 {
		t.Fatalf("expected pushed count 0, got %d", last)
	}
}

func TestListUnreadOnlyPaginatesTheMatchingSet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewNotificationRepository(), &capturedPush{})

	unread, err := svc.Create(ctx, CreateInput{
		UserID: "user-1",
		Type:   domain.NotificationMention,
		Title:  "Mention",
	})
	if err != nil {
		t.Fatalf("create unread: %v", err)
	}
	var readIDs []uuid.UUID
	for i := 0; i < 4; i++ {
		record, err := svc.Create(ctx, CreateInput{
			UserID: "user-1",
			Type:   domain.NotificationCommentAdded,
			Title:  "Comment",
		})
		if err != nil {
			t.Fatalf("create read %d: %v", i, err)
		}
		readIDs = append(readIDs, record.ID)
	}
	if err := svc.MarkRead(ctx, "user-1", readIDs, true); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	// A page smaller than the read set must still surface the unread item,
	// with the total counting matches, not the page.
	result, err := svc.List(ctx, "user-1", store.ListOptions{Limit: 2}, ListFilters{UnreadOnly: true})
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("expected total 1 matching item, got %d", result.Total)
	}
	if len(result.Items) != 1 || result.Items[0].ID != unread.ID {
		t.Fatalf("expected the unread notification back, got %+v", result.Items)
	}
}

func TestMarkAllReadAndListFilters(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.NewNotificationRepository(), &capturedPush{})

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, CreateInput{
			UserID: "user-1",
			Type:   domain.NotificationCommentAdded,
			Title:  "Comment",
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := svc.MarkAllRead(ctx, "user-1"); err != nil {
		t.Fatalf("mark all read: %v", err)
	}

	result, err := svc.List(ctx, "user-1", store.ListOptions{Limit: 10}, ListFilters{UnreadOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Total != 0 {
		t.Fatalf("expected no unread items, got %d", result.Total)
	}

	result, err = svc.List(ctx, "user-1", store.ListOptions{Limit: 10}, ListFilters{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("expected 3 items, got %d", result.Total)
	}
}
