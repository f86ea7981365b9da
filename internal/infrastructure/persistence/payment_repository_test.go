package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/billing"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSavedPayment(t *testing.T, db *gorm.DB, tenantID, invoiceID uuid.UUID, amount string) *billing.Payment {
	t.Helper()
	repo := NewGormPaymentRepository(db)

	number, err := repo.GeneratePaymentNumber(context.Background(), tenantID)
	require.NoError(t, err)

	p, err := billing.NewPayment(tenantID, number, invoiceID, uuid.New(),
		decimal.RequireFromString(amount), valueobject.USD, billing.PaymentMethodBankTransfer,
		time.Now(), uuid.New())
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), p))
	return p
}

func TestGormPaymentRepository_SumByInvoice(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	invoiceID := uuid.New()

	t.Run("returns zero for an invoice with no payments", func(t *testing.T) {
		sum, err := repo.SumByInvoice(ctx, tenantID, invoiceID)
		require.NoError(t, err)
		assert.True(t, sum.IsZero())
	})

	t.Run("sums only this invoice's payments", func(t *testing.T) {
		newSavedPayment(t, db, tenantID, invoiceID, "100.25")
		newSavedPayment(t, db, tenantID, invoiceID, "50.25")
		newSavedPayment(t, db, tenantID, uuid.New(), "999")

		sum, err := repo.SumByInvoice(ctx, tenantID, invoiceID)
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.RequireFromString("150.5")), "got %s", sum)
	})

	t.Run("excludes soft-deleted payments", func(t *testing.T) {
		freshInvoice := uuid.New()
		kept := newSavedPayment(t, db, tenantID, freshInvoice, "75.5")
		removed := newSavedPayment(t, db, tenantID, freshInvoice, "25")

		require.NoError(t, repo.Delete(ctx, tenantID, removed.ID))

		sum, err := repo.SumByInvoice(ctx, tenantID, freshInvoice)
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.RequireFromString("75.5")), "got %s", sum)

		payments, err := repo.FindByInvoice(ctx, tenantID, freshInvoice)
		require.NoError(t, err)
		require.Len(t, payments, 1)
		assert.Equal(t, kept.ID, payments[0].ID)
	})
}

func TestGormPaymentRepository_Delete(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("deleted payment is no longer findable", func(t *testing.T) {
		p := newSavedPayment(t, db, tenantID, uuid.New(), "10")

		require.NoError(t, repo.Delete(ctx, tenantID, p.ID))

		_, err := repo.FindByIDForTenant(ctx, tenantID, p.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("deleting a missing payment reports not found", func(t *testing.T) {
		err := repo.Delete(ctx, tenantID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormTxManager_WithinTx(t *testing.T) {
	db := setupBillingTestDB(t)
	paymentRepo := NewGormPaymentRepository(db)
	tx := NewGormTxManager(db)
	ctx := context.Background()
	tenantID := uuid.New()
	invoiceID := uuid.New()

	t.Run("rolls back everything when the closure fails", func(t *testing.T) {
		boom := errors.New("boom")
		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			p, err := billing.NewPayment(tenantID, "PAY-2026-001", invoiceID, uuid.New(),
				decimal.NewFromInt(10), valueobject.USD, billing.PaymentMethodCash,
				time.Now(), uuid.New())
			require.NoError(t, err)
			require.NoError(t, paymentRepo.Save(ctx, p))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		sum, err := paymentRepo.SumByInvoice(ctx, tenantID, invoiceID)
		require.NoError(t, err)
		assert.True(t, sum.IsZero())
	})

	t.Run("commits when the closure succeeds", func(t *testing.T) {
		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			p, err := billing.NewPayment(tenantID, "PAY-2026-002", invoiceID, uuid.New(),
				decimal.NewFromInt(10), valueobject.USD, billing.PaymentMethodCash,
				time.Now(), uuid.New())
			if err != nil {
				return err
			}
			return paymentRepo.Save(ctx, p)
		})
		require.NoError(t, err)

		sum, err := paymentRepo.SumByInvoice(ctx, tenantID, invoiceID)
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.NewFromInt(10)))
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		err := tx.WithinTx(ctx, func(outer context.Context) error {
			return tx.WithinTx(outer, func(inner context.Context) error {
				p, err := billing.NewPayment(tenantID, "PAY-2026-003", invoiceID, uuid.New(),
					decimal.NewFromInt(5), valueobject.USD, billing.PaymentMethodCash,
					time.Now(), uuid.New())
				if err != nil {
					return err
				}
				return paymentRepo.Save(inner, p)
			})
		})
		require.NoError(t, err)
	})
}
