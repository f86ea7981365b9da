package billing

import (
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayment(t *testing.T) {
	tenantID := uuid.New()
	invoiceID := uuid.New()
	customerID := uuid.New()

	t.Run("valid payment", func(t *testing.T) {
		p, err := NewPayment(tenantID, "PAY-2026-001", invoiceID, customerID,
			decimal.RequireFromString("100.00"), "", PaymentMethodBankTransfer,
			time.Now(), uuid.New())
		require.NoError(t, err)
		assert.Equal(t, "PAY-2026-001", p.PaymentNumber)
		assert.Equal(t, invoiceID, p.InvoiceID)
		assert.Equal(t, "100.00", p.Amount.StringFixed(2))

		events := p.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypePaymentReceived, events[0].EventType())
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		_, err := NewPayment(tenantID, "PAY-2026-001", invoiceID, customerID,
			decimal.Zero, "", PaymentMethodCash, time.Now(), uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidAmount))
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		_, err := NewPayment(tenantID, "PAY-2026-001", invoiceID, customerID,
			decimal.RequireFromString("-10.00"), "", PaymentMethodCash, time.Now(), uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidAmount))
	})

	t.Run("unknown method rejected", func(t *testing.T) {
		_, err := NewPayment(tenantID, "PAY-2026-001", invoiceID, customerID,
			decimal.NewFromInt(10), "", PaymentMethod("BARTER"), time.Now(), uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidInput))
	})

	t.Run("optional fields via builders", func(t *testing.T) {
		receivedBy := uuid.New()
		p, err := NewPayment(tenantID, "PAY-2026-002", invoiceID, customerID,
			decimal.NewFromInt(50), "", PaymentMethodCheck, time.Now(), uuid.New())
		require.NoError(t, err)

		p.WithTransactionID("txn-123").
			WithReferenceNumber("CHK-9981").
			WithNotes("First installment").
			WithReceivedBy(receivedBy)

		assert.Equal(t, "txn-123", p.TransactionID)
		assert.Equal(t, "CHK-9981", p.ReferenceNumber)
		assert.Equal(t, "First installment", p.Notes)
		require.NotNil(t, p.ReceivedBy)
		assert.Equal(t, receivedBy, *p.ReceivedBy)
	})
}

func TestPaymentMethodIsValid(t *testing.T) {
	for _, m := range []PaymentMethod{
		PaymentMethodCash, PaymentMethodCreditCard, PaymentMethodBankTransfer,
		PaymentMethodCheck, PaymentMethodOther,
	} {
		assert.True(t, m.IsValid(), "method %s", m)
	}
	assert.False(t, PaymentMethod("").IsValid())
	assert.False(t, PaymentMethod("WIRE").IsValid())
}
