package billing

import (
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteStatus represents the status of a quote
type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "DRAFT"
	QuoteStatusSent      QuoteStatus = "SENT"
	QuoteStatusAccepted  QuoteStatus = "ACCEPTED"
	QuoteStatusRejected  QuoteStatus = "REJECTED"
	QuoteStatusExpired   QuoteStatus = "EXPIRED"
	QuoteStatusConverted QuoteStatus = "CONVERTED"
)

// IsValid checks if the status is a valid QuoteStatus
func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusAccepted,
		QuoteStatusRejected, QuoteStatusExpired, QuoteStatusConverted:
		return true
	}
	return false
}

// String returns the string representation of QuoteStatus
func (s QuoteStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the quote is in a terminal state
func (s QuoteStatus) IsTerminal() bool {
	return s == QuoteStatusRejected || s == QuoteStatusExpired || s == QuoteStatusConverted
}

// CanTransitionTo checks if the status can transition to the target status
func (s QuoteStatus) CanTransitionTo(target QuoteStatus) bool {
	switch s {
	case QuoteStatusDraft:
		return target == QuoteStatusSent || target == QuoteStatusRejected
	case QuoteStatusSent:
		return target == QuoteStatusAccepted || target == QuoteStatusRejected || target == QuoteStatusExpired
	case QuoteStatusAccepted:
		return target == QuoteStatusConverted
	case QuoteStatusRejected, QuoteStatusExpired, QuoteStatusConverted:
		return false // Terminal states
	}
	return false
}

// Quote represents a priced, non-binding proposal to a customer.
// Once Accepted it can be converted to an Invoice exactly once.
type Quote struct {
	shared.TenantAggregateRoot
	QuoteNumber          string
	Title                string
	Description          string
	CustomerID           uuid.UUID
	OpportunityID        *uuid.UUID
	LineItems            LineItems
	SubTotal             decimal.Decimal
	TaxAmount            decimal.Decimal
	DiscountAmount       decimal.Decimal
	TotalAmount          decimal.Decimal
	Currency             valueobject.Currency
	Status               QuoteStatus
	ValidUntil           *time.Time
	SentAt               *time.Time
	AcceptedAt           *time.Time
	RejectedAt           *time.Time
	ConvertedToInvoiceID *uuid.UUID
}

// NewQuote creates a new draft quote with the given line items.
// Totals are derived; the caller never sets them directly.
func NewQuote(
	tenantID uuid.UUID,
	quoteNumber string,
	customerID uuid.UUID,
	opportunityID *uuid.UUID,
	items LineItems,
	taxAmount, discountAmount decimal.Decimal,
	currency valueobject.Currency,
	validUntil *time.Time,
	createdBy uuid.UUID,
) (*Quote, error) {
	if quoteNumber == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Quote number cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Customer ID cannot be empty")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Quote must have at least one line item")
	}
	if taxAmount.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidAmount, "Tax amount cannot be negative")
	}
	if discountAmount.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidAmount, "Discount amount cannot be negative")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	subTotal := ComputeSubTotal(items)
	total, err := ComputeTotal(subTotal, taxAmount, discountAmount)
	if err != nil {
		return nil, err
	}

	q := &Quote{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, createdBy),
		QuoteNumber:         quoteNumber,
		CustomerID:          customerID,
		OpportunityID:       opportunityID,
		LineItems:           items,
		SubTotal:            subTotal,
		TaxAmount:           taxAmount,
		DiscountAmount:      discountAmount,
		TotalAmount:         total,
		Currency:            currency,
		Status:              QuoteStatusDraft,
		ValidUntil:          validUntil,
	}

	q.AddDomainEvent(NewQuoteCreatedEvent(q))

	return q, nil
}

// TransitionTo executes a caller-requested status transition.
// Timestamp fields are set only on first entry into the target status;
// the transition table has no self-loops, so a repeated request for the
// same target is rejected rather than silently accepted.
func (q *Quote) TransitionTo(newStatus QuoteStatus) error {
	if newStatus == QuoteStatusConverted {
		// Conversion carries the invoice back-link and goes through MarkConverted.
		return shared.NewDomainError(shared.CodeInvalidTransition,
			"Quote conversion is performed by converting the quote to an invoice")
	}
	if !q.Status.CanTransitionTo(newStatus) {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Invalid quote status transition from %s to %s", q.Status, newStatus))
	}

	oldStatus := q.Status
	now := time.Now()
	q.Status = newStatus

	switch newStatus {
	case QuoteStatusSent:
		if q.SentAt == nil {
			q.SentAt = &now
		}
	case QuoteStatusAccepted:
		if q.AcceptedAt == nil {
			q.AcceptedAt = &now
		}
	case QuoteStatusRejected:
		if q.RejectedAt == nil {
			q.RejectedAt = &now
		}
	case QuoteStatusExpired:
		// Expiry is driven by the periodic sweep; no dedicated timestamp.
	}

	q.UpdatedAt = now
	q.IncrementVersion()

	q.AddDomainEvent(NewQuoteStatusChangedEvent(q, oldStatus, newStatus))

	return nil
}

// MarkConverted transitions an accepted quote to Converted and records the
// invoice back-link. The link is set at most once.
func (q *Quote) MarkConverted(invoiceID uuid.UUID, invoiceNumber string) error {
	if q.ConvertedToInvoiceID != nil {
		return shared.NewDomainError(shared.CodeAlreadyConverted,
			fmt.Sprintf("Quote %s has already been converted to an invoice", q.QuoteNumber))
	}
	if !q.Status.CanTransitionTo(QuoteStatusConverted) {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot convert quote in %s status, quote must be Accepted", q.Status))
	}
	if invoiceID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Invoice ID cannot be empty")
	}

	oldStatus := q.Status
	now := time.Now()
	q.Status = QuoteStatusConverted
	q.ConvertedToInvoiceID = &invoiceID
	q.UpdatedAt = now
	q.IncrementVersion()

	q.AddDomainEvent(NewQuoteStatusChangedEvent(q, oldStatus, QuoteStatusConverted))
	q.AddDomainEvent(NewQuoteConvertedEvent(q, invoiceID, invoiceNumber))

	return nil
}

// SetTitle sets the title and description. Draft only.
func (q *Quote) SetTitle(title, description string) error {
	if q.Status != QuoteStatusDraft {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Cannot modify a non-draft quote")
	}
	q.Title = title
	q.Description = description
	q.UpdatedAt = time.Now()
	return nil
}

// ReplaceLineItems swaps the line item set and re-derives totals. Draft only;
// line items are immutable once the quote leaves Draft.
func (q *Quote) ReplaceLineItems(items LineItems, taxAmount, discountAmount decimal.Decimal) error {
	if q.Status != QuoteStatusDraft {
		return shared.NewDomainError(shared.CodeInvalidTransition, "Cannot modify line items of a non-draft quote")
	}
	if len(items) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Quote must have at least one line item")
	}
	if taxAmount.IsNegative() || discountAmount.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidAmount, "Tax and discount amounts cannot be negative")
	}

	subTotal := ComputeSubTotal(items)
	total, err := ComputeTotal(subTotal, taxAmount, discountAmount)
	if err != nil {
		return err
	}

	q.LineItems = items
	q.TaxAmount = taxAmount
	q.DiscountAmount = discountAmount
	q.SubTotal = subTotal
	q.TotalAmount = total
	q.UpdatedAt = time.Now()
	q.IncrementVersion()

	return nil
}

// IsExpiredBy returns true if the quote is Sent and its validity window
// has passed at the given instant.
func (q *Quote) IsExpiredBy(now time.Time) bool {
	return q.Status == QuoteStatusSent && q.ValidUntil != nil && q.ValidUntil.Before(now)
}

// GetTotalAmountMoney returns the total as Money
func (q *Quote) GetTotalAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(q.TotalAmount, q.Currency)
	return m
}

// IsDraft returns true if the quote is in draft status
func (q *Quote) IsDraft() bool {
	return q.Status == QuoteStatusDraft
}

// IsConverted returns true if the quote has been converted to an invoice
func (q *Quote) IsConverted() bool {
	return q.Status == QuoteStatusConverted
}
