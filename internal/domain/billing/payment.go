package billing

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCreditCard, PaymentMethodBankTransfer,
		PaymentMethodCheck, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// Payment represents a monetary application against exactly one invoice.
// The customer reference is denormalized from the invoice at creation.
type Payment struct {
	shared.TenantAggregateRoot
	PaymentNumber   string
	InvoiceID       uuid.UUID
	CustomerID      uuid.UUID
	Amount          decimal.Decimal
	Currency        valueobject.Currency
	Method          PaymentMethod
	TransactionID   string
	ReferenceNumber string
	Notes           string
	PaymentDate     time.Time
	ReceivedBy      *uuid.UUID
}

// NewPayment creates a validated payment against an invoice
func NewPayment(
	tenantID uuid.UUID,
	paymentNumber string,
	invoiceID, customerID uuid.UUID,
	amount decimal.Decimal,
	currency valueobject.Currency,
	method PaymentMethod,
	paymentDate time.Time,
	createdBy uuid.UUID,
) (*Payment, error) {
	if paymentNumber == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Payment number cannot be empty")
	}
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invoice ID cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Customer ID cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.CodeInvalidAmount, "Payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Payment method is not valid")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}

	p := &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, createdBy),
		PaymentNumber:       paymentNumber,
		InvoiceID:           invoiceID,
		CustomerID:          customerID,
		Amount:              amount,
		Currency:            currency,
		Method:              method,
		PaymentDate:         paymentDate,
	}

	p.AddDomainEvent(NewPaymentReceivedEvent(p))

	return p, nil
}

// WithTransactionID sets the external transaction reference
func (p *Payment) WithTransactionID(txID string) *Payment {
	p.TransactionID = txID
	return p
}

// WithReferenceNumber sets the bank or check reference
func (p *Payment) WithReferenceNumber(ref string) *Payment {
	p.ReferenceNumber = ref
	return p
}

// WithNotes sets free-form notes
func (p *Payment) WithNotes(notes string) *Payment {
	p.Notes = notes
	return p
}

// WithReceivedBy records the user who received the payment
func (p *Payment) WithReceivedBy(userID uuid.UUID) *Payment {
	p.ReceivedBy = &userID
	return p
}

// GetAmountMoney returns the amount as Money
func (p *Payment) GetAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Amount, p.Currency)
	return m
}

// PaymentReceivedEvent is raised when a payment is recorded
type PaymentReceivedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID       `json:"payment_id"`
	PaymentNumber string          `json:"payment_number"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
}

// EventTypePaymentReceived is the event type name for PaymentReceivedEvent
const EventTypePaymentReceived = "PaymentReceived"

// EventType returns the event type name
func (e *PaymentReceivedEvent) EventType() string {
	return EventTypePaymentReceived
}

// NewPaymentReceivedEvent creates a new PaymentReceivedEvent
func NewPaymentReceivedEvent(p *Payment) *PaymentReceivedEvent {
	return &PaymentReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentReceived, "Payment", p.ID, p.TenantID),
		PaymentID:       p.ID,
		PaymentNumber:   p.PaymentNumber,
		InvoiceID:       p.InvoiceID,
		CustomerID:      p.CustomerID,
		Amount:          p.Amount,
		Method:          p.Method,
	}
}
