package billing

import (
	"context"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteFilter defines filtering options for quote queries
type QuoteFilter struct {
	shared.Filter
	CustomerID *uuid.UUID
	Status     *QuoteStatus
}

// QuoteRepository defines the interface for quote persistence
type QuoteRepository interface {
	// FindByIDForTenant finds a quote by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Quote, error)

	// FindByNumber finds a quote by its number for a tenant
	FindByNumber(ctx context.Context, tenantID uuid.UUID, quoteNumber string) (*Quote, error)

	// FindAllForTenant finds all quotes for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter QuoteFilter) ([]Quote, error)

	// FindExpirable finds Sent quotes whose validity window passed before the cutoff
	FindExpirable(ctx context.Context, cutoff time.Time, limit int) ([]Quote, error)

	// Save creates or updates a quote
	Save(ctx context.Context, quote *Quote) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, quote *Quote) error

	// GenerateQuoteNumber generates the next QT-{year}-{seq} number for a tenant
	GenerateQuoteNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	CustomerID *uuid.UUID
	Status     *InvoiceStatus
	Overdue    *bool
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByIDForTenant finds an invoice by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdate finds an invoice by ID holding a row lock for the
	// remainder of the surrounding transaction. Payment application uses
	// this to serialize per-invoice balance checks.
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByNumber finds an invoice by its number for a tenant
	FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*Invoice, error)

	// FindAllForTenant finds all invoices for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// GenerateInvoiceNumber generates the next INV-{year}-{seq} number for a tenant
	GenerateInvoiceNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByIDForTenant finds a payment by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindByInvoice lists all non-deleted payments for an invoice
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Payment, error)

	// SumByInvoice returns the sum of all non-deleted payment amounts for
	// an invoice, read within the surrounding transaction
	SumByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (decimal.Decimal, error)

	// Save creates or updates a payment
	Save(ctx context.Context, payment *Payment) error

	// Delete soft deletes a payment
	Delete(ctx context.Context, tenantID, id uuid.UUID) error

	// GeneratePaymentNumber generates the next PAY-{year}-{seq} number for a tenant
	GeneratePaymentNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
}
