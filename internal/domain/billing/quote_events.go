package billing

import (
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names for the quote aggregate
const (
	EventTypeQuoteCreated       = "QuoteCreated"
	EventTypeQuoteStatusChanged = "QuoteStatusChanged"
	EventTypeQuoteConverted     = "QuoteConverted"
)

// QuoteCreatedEvent is raised when a new quote is created
type QuoteCreatedEvent struct {
	shared.BaseDomainEvent
	QuoteID     uuid.UUID       `json:"quote_id"`
	QuoteNumber string          `json:"quote_number"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// EventType returns the event type name
func (e *QuoteCreatedEvent) EventType() string {
	return EventTypeQuoteCreated
}

// NewQuoteCreatedEvent creates a new QuoteCreatedEvent
func NewQuoteCreatedEvent(q *Quote) *QuoteCreatedEvent {
	return &QuoteCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteCreated, "Quote", q.ID, q.TenantID),
		QuoteID:         q.ID,
		QuoteNumber:     q.QuoteNumber,
		CustomerID:      q.CustomerID,
		TotalAmount:     q.TotalAmount,
	}
}

// QuoteStatusChangedEvent is raised on every quote status transition
type QuoteStatusChangedEvent struct {
	shared.BaseDomainEvent
	QuoteID     uuid.UUID   `json:"quote_id"`
	QuoteNumber string      `json:"quote_number"`
	FromStatus  QuoteStatus `json:"from_status"`
	ToStatus    QuoteStatus `json:"to_status"`
}

// EventType returns the event type name
func (e *QuoteStatusChangedEvent) EventType() string {
	return EventTypeQuoteStatusChanged
}

// NewQuoteStatusChangedEvent creates a new QuoteStatusChangedEvent
func NewQuoteStatusChangedEvent(q *Quote, from, to QuoteStatus) *QuoteStatusChangedEvent {
	return &QuoteStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteStatusChanged, "Quote", q.ID, q.TenantID),
		QuoteID:         q.ID,
		QuoteNumber:     q.QuoteNumber,
		FromStatus:      from,
		ToStatus:        to,
	}
}

// QuoteConvertedEvent is raised when a quote is converted to an invoice
type QuoteConvertedEvent struct {
	shared.BaseDomainEvent
	QuoteID       uuid.UUID `json:"quote_id"`
	QuoteNumber   string    `json:"quote_number"`
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
}

// EventType returns the event type name
func (e *QuoteConvertedEvent) EventType() string {
	return EventTypeQuoteConverted
}

// NewQuoteConvertedEvent creates a new QuoteConvertedEvent
func NewQuoteConvertedEvent(q *Quote, invoiceID uuid.UUID, invoiceNumber string) *QuoteConvertedEvent {
	return &QuoteConvertedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuoteConverted, "Quote", q.ID, q.TenantID),
		QuoteID:         q.ID,
		QuoteNumber:     q.QuoteNumber,
		InvoiceID:       invoiceID,
		InvoiceNumber:   invoiceNumber,
	}
}
