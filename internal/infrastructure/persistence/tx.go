package persistence

import (
	"context"
	"errors"

	appbilling "github.com/crm/backend/internal/application/billing"
	"github.com/crm/backend/internal/domain/shared"
	"gorm.io/gorm"
)

type txContextKey struct{}

// GormTxManager runs closures inside a database transaction. The
// transaction handle travels in the context; repositories pick it up
// through dbFrom so every call inside the closure joins the same
// transaction.
type GormTxManager struct {
	db *gorm.DB
}

// NewGormTxManager creates a new GormTxManager
func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

// WithinTx runs fn inside a transaction. Nested calls join the
// transaction already bound to the context instead of opening another.
func (m *GormTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// dbFrom returns the transaction bound to ctx, or the base connection
func dbFrom(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return base.WithContext(ctx)
}

// saveError maps duplicate-key violations onto the retryable conflict
// error. Document numbers come from a max-scan, so two concurrent
// creations can compose the same number; the unique index rejects the
// loser and the service regenerates on retry.
func saveError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.ErrConcurrencyConflict
	}
	return err
}

// Ensure GormTxManager implements TxManager
var _ appbilling.TxManager = (*GormTxManager)(nil)
