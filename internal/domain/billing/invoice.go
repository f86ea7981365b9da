package billing

import (
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice.
// Money-driven states (PartiallyPaid, Paid, Overdue) are derived from the
// payment sum and due date; only Draft->Sent and cancellation are
// caller-requested.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// CanAcceptPayment returns true if payments can be applied in this status
func (s InvoiceStatus) CanAcceptPayment() bool {
	return s != InvoiceStatusCancelled
}

// Invoice represents a billing document whose status is derived from
// accumulated payments and the due date.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber  string
	Title          string
	Description    string
	CustomerID     uuid.UUID
	QuoteID        *uuid.UUID
	OpportunityID  *uuid.UUID
	LineItems      LineItems
	SubTotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	PaidAmount     decimal.Decimal
	BalanceAmount  decimal.Decimal
	Currency       valueobject.Currency
	Status         InvoiceStatus
	InvoiceDate    time.Time
	DueDate        time.Time
	SentAt         *time.Time
	PaidAt         *time.Time
	CancelledAt    *time.Time
	CancelReason   string
}

// NewInvoice creates a new draft invoice. Totals are derived from the
// line items; paid amount starts at zero.
func NewInvoice(
	tenantID uuid.UUID,
	invoiceNumber string,
	customerID uuid.UUID,
	quoteID, opportunityID *uuid.UUID,
	items LineItems,
	taxAmount, discountAmount decimal.Decimal,
	currency valueobject.Currency,
	dueDate time.Time,
	createdBy uuid.UUID,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invoice number cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Customer ID cannot be empty")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invoice must have at least one line item")
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

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(tenantID, createdBy),
		InvoiceNumber:       invoiceNumber,
		CustomerID:          customerID,
		QuoteID:             quoteID,
		OpportunityID:       opportunityID,
		LineItems:           items,
		SubTotal:            subTotal,
		TaxAmount:           taxAmount,
		DiscountAmount:      discountAmount,
		TotalAmount:         total,
		PaidAmount:          decimal.Zero,
		BalanceAmount:       total,
		Currency:            currency,
		Status:              InvoiceStatusDraft,
		InvoiceDate:         time.Now(),
		DueDate:             dueDate,
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// Send transitions a draft invoice to Sent. This is one of the two
// caller-requested transitions; everything else is derived.
func (inv *Invoice) Send() error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot send invoice in %s status", inv.Status))
	}

	now := time.Now()
	inv.Status = InvoiceStatusSent
	if inv.SentAt == nil {
		inv.SentAt = &now
	}
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, InvoiceStatusDraft, InvoiceStatusSent))

	return nil
}

// Cancel cancels an unpaid invoice. Only Draft or Sent invoices with no
// applied payments can be cancelled; Cancelled is terminal.
func (inv *Invoice) Cancel(reason string) error {
	if inv.Status != InvoiceStatusDraft && inv.Status != InvoiceStatusSent {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot cancel invoice in %s status", inv.Status))
	}
	if inv.PaidAmount.GreaterThan(decimal.Zero) {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			"Cannot cancel an invoice with applied payments")
	}
	if reason == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Cancel reason is required")
	}

	oldStatus := inv.Status
	now := time.Now()
	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, oldStatus, InvoiceStatusCancelled))

	return nil
}

// Recompute re-derives the invoice's money-driven status from the given
// payment sum. It runs inside the same transaction as any payment write.
// Derivation has no memory: a deleted payment takes the status back to
// whatever the remaining sum implies. Cancelled is terminal and is never
// re-derived. A payment sum exceeding the total means the overpayment
// guard was bypassed; that is a fatal defect and the transaction must
// abort rather than persist it.
func (inv *Invoice) Recompute(paidTotal decimal.Decimal, now time.Time) error {
	if inv.Status == InvoiceStatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			"Cannot apply payments to a cancelled invoice")
	}
	if paidTotal.IsNegative() {
		return shared.NewDomainError(shared.CodeInvariantViolation,
			fmt.Sprintf("Payment sum for invoice %s is negative: %s", inv.InvoiceNumber, paidTotal.StringFixed(2)))
	}
	if paidTotal.GreaterThan(inv.TotalAmount) {
		return shared.NewDomainError(shared.CodeInvariantViolation,
			fmt.Sprintf("Payment sum %s exceeds invoice total %s for invoice %s",
				paidTotal.StringFixed(2), inv.TotalAmount.StringFixed(2), inv.InvoiceNumber))
	}

	oldStatus := inv.Status
	inv.PaidAmount = paidTotal
	inv.BalanceAmount = ComputeBalance(inv.TotalAmount, paidTotal)

	switch {
	case paidTotal.GreaterThanOrEqual(inv.TotalAmount):
		inv.Status = InvoiceStatusPaid
		if inv.PaidAt == nil {
			inv.PaidAt = &now
		}
	case paidTotal.GreaterThan(decimal.Zero):
		inv.Status = InvoiceStatusPartiallyPaid
	default:
		// Zero paid: fall back to the document's explicit state, then
		// overlay overdue when the due date has passed.
		base := inv.Status
		if base == InvoiceStatusPartiallyPaid || base == InvoiceStatusPaid || base == InvoiceStatusOverdue {
			if inv.SentAt != nil {
				base = InvoiceStatusSent
			} else {
				base = InvoiceStatusDraft
			}
		}
		if base == InvoiceStatusSent && inv.DueDate.Before(now) {
			base = InvoiceStatusOverdue
		}
		inv.Status = base
	}

	inv.UpdatedAt = now
	inv.IncrementVersion()

	if inv.Status != oldStatus {
		inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, oldStatus, inv.Status))
	}
	if inv.Status == InvoiceStatusPaid && oldStatus != InvoiceStatusPaid {
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	}

	return nil
}

// GetTotalAmountMoney returns the total as Money
func (inv *Invoice) GetTotalAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.TotalAmount, inv.Currency)
	return m
}

// GetBalanceAmountMoney returns the outstanding balance as Money
func (inv *Invoice) GetBalanceAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(inv.BalanceAmount, inv.Currency)
	return m
}

// IsPaid returns true if the invoice is fully paid
func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

// IsCancelled returns true if the invoice is cancelled
func (inv *Invoice) IsCancelled() bool {
	return inv.Status == InvoiceStatusCancelled
}

// IsOverdueBy returns true if the invoice is unpaid and past due at the
// given instant.
func (inv *Invoice) IsOverdueBy(now time.Time) bool {
	if inv.Status == InvoiceStatusPaid || inv.Status == InvoiceStatusCancelled {
		return false
	}
	return inv.DueDate.Before(now)
}
