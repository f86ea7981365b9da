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

func newTestQuote(t *testing.T) *Quote {
	t.Helper()
	items := LineItems{
		mustLineItem(t, "2", "100.00", "0", 1),
		mustLineItem(t, "1", "50.00", "10", 2),
	}
	q, err := NewQuote(
		uuid.New(),
		"QT-2026-001",
		uuid.New(),
		nil,
		items,
		decimal.RequireFromString("10.00"),
		decimal.Zero,
		"",
		nil,
		uuid.New(),
	)
	require.NoError(t, err)
	return q
}

func TestNewQuote(t *testing.T) {
	q := newTestQuote(t)

	assert.Equal(t, QuoteStatusDraft, q.Status)
	assert.Equal(t, "225.00", q.SubTotal.StringFixed(2))
	assert.Equal(t, "235.00", q.TotalAmount.StringFixed(2))
	assert.Nil(t, q.ConvertedToInvoiceID)

	events := q.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeQuoteCreated, events[0].EventType())
}

func TestNewQuoteValidation(t *testing.T) {
	tenantID := uuid.New()
	customerID := uuid.New()
	items := LineItems{mustLineItem(t, "1", "10.00", "0", 1)}

	t.Run("empty line items rejected", func(t *testing.T) {
		_, err := NewQuote(tenantID, "QT-2026-001", customerID, nil, LineItems{},
			decimal.Zero, decimal.Zero, "", nil, uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidInput))
	})

	t.Run("negative tax rejected", func(t *testing.T) {
		_, err := NewQuote(tenantID, "QT-2026-001", customerID, nil, items,
			decimal.NewFromInt(-1), decimal.Zero, "", nil, uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidAmount))
	})

	t.Run("discount exceeding total rejected", func(t *testing.T) {
		_, err := NewQuote(tenantID, "QT-2026-001", customerID, nil, items,
			decimal.Zero, decimal.NewFromInt(100), "", nil, uuid.New())
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidAmount))
	})
}

func TestQuoteStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from    QuoteStatus
		to      QuoteStatus
		allowed bool
	}{
		{QuoteStatusDraft, QuoteStatusSent, true},
		{QuoteStatusDraft, QuoteStatusRejected, true},
		{QuoteStatusDraft, QuoteStatusAccepted, false},
		{QuoteStatusDraft, QuoteStatusExpired, false},
		{QuoteStatusSent, QuoteStatusAccepted, true},
		{QuoteStatusSent, QuoteStatusRejected, true},
		{QuoteStatusSent, QuoteStatusExpired, true},
		{QuoteStatusSent, QuoteStatusDraft, false},
		{QuoteStatusAccepted, QuoteStatusConverted, true},
		{QuoteStatusAccepted, QuoteStatusRejected, false},
		{QuoteStatusAccepted, QuoteStatusExpired, false},
		{QuoteStatusRejected, QuoteStatusSent, false},
		{QuoteStatusExpired, QuoteStatusSent, false},
		{QuoteStatusConverted, QuoteStatusSent, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestQuoteTransitionTo(t *testing.T) {
	t.Run("draft to sent sets timestamp", func(t *testing.T) {
		q := newTestQuote(t)

		err := q.TransitionTo(QuoteStatusSent)
		require.NoError(t, err)
		assert.Equal(t, QuoteStatusSent, q.Status)
		require.NotNil(t, q.SentAt)
	})

	t.Run("sent to accepted sets timestamp", func(t *testing.T) {
		q := newTestQuote(t)
		require.NoError(t, q.TransitionTo(QuoteStatusSent))

		err := q.TransitionTo(QuoteStatusAccepted)
		require.NoError(t, err)
		assert.Equal(t, QuoteStatusAccepted, q.Status)
		require.NotNil(t, q.AcceptedAt)
	})

	t.Run("invalid transition rejected", func(t *testing.T) {
		q := newTestQuote(t)

		err := q.TransitionTo(QuoteStatusAccepted)
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidTransition))
		assert.Equal(t, QuoteStatusDraft, q.Status)
	})

	t.Run("terminal states reject everything", func(t *testing.T) {
		q := newTestQuote(t)
		require.NoError(t, q.TransitionTo(QuoteStatusSent))
		require.NoError(t, q.TransitionTo(QuoteStatusRejected))

		for _, target := range []QuoteStatus{QuoteStatusDraft, QuoteStatusSent, QuoteStatusAccepted, QuoteStatusExpired} {
			err := q.TransitionTo(target)
			assert.True(t, shared.HasCode(err, shared.CodeInvalidTransition))
		}
	})

	t.Run("converted is not reachable via TransitionTo", func(t *testing.T) {
		q := newTestQuote(t)
		require.NoError(t, q.TransitionTo(QuoteStatusSent))
		require.NoError(t, q.TransitionTo(QuoteStatusAccepted))

		err := q.TransitionTo(QuoteStatusConverted)
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidTransition))
		assert.Equal(t, QuoteStatusAccepted, q.Status)
	})

	t.Run("status change raises event", func(t *testing.T) {
		q := newTestQuote(t)
		q.ClearDomainEvents()

		require.NoError(t, q.TransitionTo(QuoteStatusSent))

		events := q.GetDomainEvents()
		require.Len(t, events, 1)
		evt, ok := events[0].(*QuoteStatusChangedEvent)
		require.True(t, ok)
		assert.Equal(t, QuoteStatusDraft, evt.FromStatus)
		assert.Equal(t, QuoteStatusSent, evt.ToStatus)
	})
}

func TestQuoteMarkConverted(t *testing.T) {
	t.Run("accepted quote converts once", func(t *testing.T) {
		q := newTestQuote(t)
		require.NoError(t, q.TransitionTo(QuoteStatusSent))
		require.NoError(t, q.TransitionTo(QuoteStatusAccepted))
		q.ClearDomainEvents()

		invoiceID := uuid.New()
		err := q.MarkConverted(invoiceID, "INV-2026-001")
		require.NoError(t, err)
		assert.Equal(t, QuoteStatusConverted, q.Status)
		require.NotNil(t, q.ConvertedToInvoiceID)
		assert.Equal(t, invoiceID, *q.ConvertedToInvoiceID)

		events := q.GetDomainEvents()
		require.Len(t, events, 2)
		assert.Equal(t, EventTypeQuoteStatusChanged, events[0].EventType())
		assert.Equal(t, EventTypeQuoteConverted, events[1].EventType())
	})

	t.Run("second conversion is rejected and keeps first link", func(t *testing.T) {
		q := newTestQuote(t)
		require.NoError(t, q.TransitionTo(QuoteStatusSent))
		require.NoError(t, q.TransitionTo(QuoteStatusAccepted))

		firstInvoice := uuid.New()
		require.NoError(t, q.MarkConverted(firstInvoice, "INV-2026-001"))

		err := q.MarkConverted(uuid.New(), "INV-2026-002")
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeAlreadyConverted))
		assert.Equal(t, firstInvoice, *q.ConvertedToInvoiceID)
	})

	t.Run("non-accepted quote cannot convert", func(t *testing.T) {
		q := newTestQuote(t)
		require.NoError(t, q.TransitionTo(QuoteStatusSent))

		err := q.MarkConverted(uuid.New(), "INV-2026-001")
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidTransition))
		assert.Nil(t, q.ConvertedToInvoiceID)
	})
}

func TestQuoteDraftOnlyMutations(t *testing.T) {
	t.Run("line items mutable while draft", func(t *testing.T) {
		q := newTestQuote(t)

		items := LineItems{mustLineItem(t, "1", "500.00", "0", 1)}
		err := q.ReplaceLineItems(items, decimal.Zero, decimal.Zero)
		require.NoError(t, err)
		assert.Equal(t, "500.00", q.TotalAmount.StringFixed(2))
	})

	t.Run("line items frozen after send", func(t *testing.T) {
		q := newTestQuote(t)
		require.NoError(t, q.TransitionTo(QuoteStatusSent))

		items := LineItems{mustLineItem(t, "1", "500.00", "0", 1)}
		err := q.ReplaceLineItems(items, decimal.Zero, decimal.Zero)
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidTransition))
		assert.Equal(t, "235.00", q.TotalAmount.StringFixed(2))
	})

	t.Run("title frozen after send", func(t *testing.T) {
		q := newTestQuote(t)
		require.NoError(t, q.TransitionTo(QuoteStatusSent))

		err := q.SetTitle("New title", "")
		require.Error(t, err)
		assert.True(t, shared.HasCode(err, shared.CodeInvalidTransition))
	})
}

func TestQuoteIsExpiredBy(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	t.Run("sent and past validity", func(t *testing.T) {
		q := newTestQuote(t)
		q.ValidUntil = &past
		require.NoError(t, q.TransitionTo(QuoteStatusSent))
		assert.True(t, q.IsExpiredBy(now))
	})

	t.Run("sent but still valid", func(t *testing.T) {
		q := newTestQuote(t)
		q.ValidUntil = &future
		require.NoError(t, q.TransitionTo(QuoteStatusSent))
		assert.False(t, q.IsExpiredBy(now))
	})

	t.Run("draft never expires", func(t *testing.T) {
		q := newTestQuote(t)
		q.ValidUntil = &past
		assert.False(t, q.IsExpiredBy(now))
	})

	t.Run("no validity window never expires", func(t *testing.T) {
		q := newTestQuote(t)
		require.NoError(t, q.TransitionTo(QuoteStatusSent))
		assert.False(t, q.IsExpiredBy(now))
	})

	t.Run("accepted quote is immune to expiry", func(t *testing.T) {
		q := newTestQuote(t)
		q.ValidUntil = &past
		require.NoError(t, q.TransitionTo(QuoteStatusSent))
		require.NoError(t, q.TransitionTo(QuoteStatusAccepted))
		assert.False(t, q.IsExpiredBy(now))
	})
}
