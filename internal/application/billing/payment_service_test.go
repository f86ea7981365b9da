package billing

import (
	"context"
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/billing"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testInvoice(t *testing.T, tenantID uuid.UUID) *billing.Invoice {
	t.Helper()
	li, err := billing.NewLineItem(uuid.New(), "Service retainer",
		decimal.NewFromInt(2), decimal.RequireFromString("100.00"), decimal.Zero, 1)
	require.NoError(t, err)
	li2, err := billing.NewLineItem(uuid.New(), "Setup fee",
		decimal.NewFromInt(1), decimal.RequireFromString("50.00"), decimal.NewFromInt(10), 2)
	require.NoError(t, err)

	inv, err := billing.NewInvoice(tenantID, "INV-2026-001", uuid.New(), nil, nil,
		billing.LineItems{*li, *li2},
		decimal.RequireFromString("10.00"), decimal.Zero, "",
		time.Now().Add(30*24*time.Hour), uuid.New())
	require.NoError(t, err)
	require.NoError(t, inv.Send())
	inv.ClearDomainEvents()
	return inv
}

func newPaymentServiceFixture(t *testing.T) (*PaymentService, *MockInvoiceRepository, *MockPaymentRepository, *MockActivityLogger, *MockEventPublisher) {
	t.Helper()
	invoiceRepo := new(MockInvoiceRepository)
	paymentRepo := new(MockPaymentRepository)
	activity := new(MockActivityLogger)
	eventBus := new(MockEventPublisher)
	svc := NewPaymentService(invoiceRepo, paymentRepo, &MockTxManager{}, activity, eventBus, zap.NewNop())
	return svc, invoiceRepo, paymentRepo, activity, eventBus
}

func TestApplyPayment(t *testing.T) {
	tenantID := uuid.New()
	ctx := context.Background()

	t.Run("partial payment recomputes invoice", func(t *testing.T) {
		svc, invoiceRepo, paymentRepo, activity, eventBus := newPaymentServiceFixture(t)
		inv := testInvoice(t, tenantID)

		invoiceRepo.On("FindByIDForUpdate", ctx, tenantID, inv.ID).Return(inv, nil)
		paymentRepo.On("SumByInvoice", ctx, tenantID, inv.ID).Return(decimal.Zero, nil)
		paymentRepo.On("GeneratePaymentNumber", ctx, tenantID).Return("PAY-2026-001", nil)
		paymentRepo.On("Save", ctx, mock.AnythingOfType("*billing.Payment")).Return(nil)
		invoiceRepo.On("Save", ctx, inv).Return(nil)
		eventBus.On("Publish", ctx, mock.Anything).Return(nil)
		activity.On("LogActivity", ctx, mock.AnythingOfType("billing.Activity")).Return(nil)

		payment, err := svc.ApplyPayment(ctx, ApplyPaymentCommand{
			TenantID:  tenantID,
			ActorID:   uuid.New(),
			InvoiceID: inv.ID,
			Amount:    decimal.RequireFromString("100.00"),
			Method:    billing.PaymentMethodBankTransfer,
		})
		require.NoError(t, err)

		assert.Equal(t, "PAY-2026-001", payment.PaymentNumber)
		assert.Equal(t, billing.InvoiceStatusPartiallyPaid, inv.Status)
		assert.Equal(t, "100.00", inv.PaidAmount.StringFixed(2))
		assert.Equal(t, "135.00", inv.BalanceAmount.StringFixed(2))
		invoiceRepo.AssertExpectations(t)
		paymentRepo.AssertExpectations(t)
	})

	t.Run("final payment marks invoice paid", func(t *testing.T) {
		svc, invoiceRepo, paymentRepo, activity, eventBus := newPaymentServiceFixture(t)
		inv := testInvoice(t, tenantID)

		invoiceRepo.On("FindByIDForUpdate", ctx, tenantID, inv.ID).Return(inv, nil)
		paymentRepo.On("SumByInvoice", ctx, tenantID, inv.ID).Return(decimal.RequireFromString("100.00"), nil)
		paymentRepo.On("GeneratePaymentNumber", ctx, tenantID).Return("PAY-2026-002", nil)
		paymentRepo.On("Save", ctx, mock.AnythingOfType("*billing.Payment")).Return(nil)
		invoiceRepo.On("Save", ctx, inv).Return(nil)
		eventBus.On("Publish", ctx, mock.Anything).Return(nil)
		activity.On("LogActivity", ctx, mock.AnythingOfType("billing.Activity")).Return(nil)

		_, err := svc.ApplyPayment(ctx, ApplyPaymentCommand{
			TenantID:  tenantID,
			ActorID:   uuid.New(),
			InvoiceID: inv.ID,
			Amount:    decimal.RequireFromString("135.00"),
			Method:    billing.PaymentMethodCreditCard,
		})
		require.NoError(t, err)

		assert.Equal(t, billing.InvoiceStatusPaid, inv.Status)
		assert.NotNil(t, inv.PaidAt)
		assert.Equal(t, "0.00", inv.BalanceAmount.StringFixed(2))
	})

	t.Run("overpayment rejected against locked sum", func(t *testing.T) {
		svc, invoiceRepo, paymentRepo, _, _ := newPaymentServiceFixture(t)
		inv := testInvoice(t, tenantID)

		invoiceRepo.On("FindByIDForUpdate", ctx, tenantID, inv.ID).Return(inv, nil)
		paymentRepo.On("SumByInvoice", ctx, tenantID, inv.ID).Return(decimal.RequireFromString("200.00"), nil)

		_, err := svc.ApplyPayment(ctx, ApplyPaymentCommand{
			TenantID:  tenantID,
			ActorID:   uuid.New(),
			InvoiceID: inv.ID,
			Amount:    decimal.RequireFromString("35.01"),
			Method:    billing.PaymentMethodCash,
		})
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeOverpaymentRejected))
		assert.Equal(t, billing.InvoiceStatusSent, inv.Status)
		paymentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("cancelled invoice refuses payment", func(t *testing.T) {
		svc, invoiceRepo, paymentRepo, _, _ := newPaymentServiceFixture(t)
		inv := testInvoice(t, tenantID)
		require.NoError(t, inv.Cancel("duplicate"))

		invoiceRepo.On("FindByIDForUpdate", ctx, tenantID, inv.ID).Return(inv, nil)

		_, err := svc.ApplyPayment(ctx, ApplyPaymentCommand{
			TenantID:  tenantID,
			ActorID:   uuid.New(),
			InvoiceID: inv.ID,
			Amount:    decimal.NewFromInt(10),
			Method:    billing.PaymentMethodCash,
		})
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidTransition))
		paymentRepo.AssertNotCalled(t, "SumByInvoice", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("transient failure retried once", func(t *testing.T) {
		svc, invoiceRepo, paymentRepo, activity, eventBus := newPaymentServiceFixture(t)
		inv := testInvoice(t, tenantID)

		invoiceRepo.On("FindByIDForUpdate", ctx, tenantID, inv.ID).
			Return(nil, shared.ErrTransientFailure).Once()
		invoiceRepo.On("FindByIDForUpdate", ctx, tenantID, inv.ID).Return(inv, nil).Once()
		paymentRepo.On("SumByInvoice", ctx, tenantID, inv.ID).Return(decimal.Zero, nil)
		paymentRepo.On("GeneratePaymentNumber", ctx, tenantID).Return("PAY-2026-003", nil)
		paymentRepo.On("Save", ctx, mock.AnythingOfType("*billing.Payment")).Return(nil)
		invoiceRepo.On("Save", ctx, inv).Return(nil)
		eventBus.On("Publish", ctx, mock.Anything).Return(nil)
		activity.On("LogActivity", ctx, mock.AnythingOfType("billing.Activity")).Return(nil)

		payment, err := svc.ApplyPayment(ctx, ApplyPaymentCommand{
			TenantID:  tenantID,
			ActorID:   uuid.New(),
			InvoiceID: inv.ID,
			Amount:    decimal.NewFromInt(50),
			Method:    billing.PaymentMethodCheck,
		})
		require.NoError(t, err)
		assert.Equal(t, "PAY-2026-003", payment.PaymentNumber)
		invoiceRepo.AssertExpectations(t)
	})

	t.Run("business rejection is not retried", func(t *testing.T) {
		svc, invoiceRepo, paymentRepo, _, _ := newPaymentServiceFixture(t)
		inv := testInvoice(t, tenantID)

		invoiceRepo.On("FindByIDForUpdate", ctx, tenantID, inv.ID).Return(inv, nil).Once()
		paymentRepo.On("SumByInvoice", ctx, tenantID, inv.ID).Return(decimal.RequireFromString("235.00"), nil).Once()

		_, err := svc.ApplyPayment(ctx, ApplyPaymentCommand{
			TenantID:  tenantID,
			ActorID:   uuid.New(),
			InvoiceID: inv.ID,
			Amount:    decimal.NewFromInt(1),
			Method:    billing.PaymentMethodCash,
		})
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeOverpaymentRejected))
		invoiceRepo.AssertExpectations(t)
		paymentRepo.AssertExpectations(t)
	})
}

func TestDeletePayment(t *testing.T) {
	tenantID := uuid.New()
	ctx := context.Background()

	t.Run("removing the only payment reverts status", func(t *testing.T) {
		svc, invoiceRepo, paymentRepo, activity, eventBus := newPaymentServiceFixture(t)
		inv := testInvoice(t, tenantID)
		require.NoError(t, inv.Recompute(decimal.RequireFromString("100.00"), time.Now()))
		inv.ClearDomainEvents()

		payment, err := billing.NewPayment(tenantID, "PAY-2026-001", inv.ID, inv.CustomerID,
			decimal.RequireFromString("100.00"), "", billing.PaymentMethodCash, time.Now(), uuid.New())
		require.NoError(t, err)

		paymentRepo.On("FindByIDForTenant", ctx, tenantID, payment.ID).Return(payment, nil)
		invoiceRepo.On("FindByIDForUpdate", ctx, tenantID, inv.ID).Return(inv, nil)
		paymentRepo.On("Delete", ctx, tenantID, payment.ID).Return(nil)
		paymentRepo.On("SumByInvoice", ctx, tenantID, inv.ID).Return(decimal.Zero, nil)
		invoiceRepo.On("Save", ctx, inv).Return(nil)
		eventBus.On("Publish", ctx, mock.Anything).Return(nil)
		activity.On("LogActivity", ctx, mock.AnythingOfType("billing.Activity")).Return(nil)

		err = svc.DeletePayment(ctx, tenantID, payment.ID, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusSent, inv.Status)
		assert.Equal(t, "235.00", inv.BalanceAmount.StringFixed(2))
	})
}
