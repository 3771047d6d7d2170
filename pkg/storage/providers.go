package storage

import (
	"context"
	"database/sql"

	bunrepo "github.com/goliatone/go-helpdesk/internal/storage/bun"
	"github.com/goliatone/go-helpdesk/internal/storage/memory"
	"github.com/goliatone/go-helpdesk/pkg/domain"
	"github.com/goliatone/go-helpdesk/pkg/interfaces/store"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// Providers exposes the repositories needed by services.
type Providers struct {
	Notifications store.NotificationRepository
	Transaction   store.TransactionManager
}

// NewMemoryProviders returns repositories backed by in-memory maps.
func NewMemoryProviders() Providers {
	return Providers{
		Notifications: memory.NewNotificationRepository(),
		Transaction:   &store.NopTransactionManager{},
	}
}

// NewBunProviders wires bun-backed repositories using go-repository-bun.
// The caller owns the *bun.DB lifecycle.
func NewBunProviders(db *bun.DB) Providers {
	if db == nil {
		panic("storage: bun DB is required")
	}

	// Register models so go-persistence-bun migrations can pick them up.
	persistence.RegisterModel(
		(*domain.Notification)(nil),
	)

	return Providers{
		Notifications: bunrepo.NewNotificationRepository(db),
		Transaction:   &bunTxManager{db: db},
	}
}

type bunTxManager struct {
	db *bun.DB
}

func (m *bunTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx)
	})
}
