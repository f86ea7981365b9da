package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/billing"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateInvoiceCommand carries everything needed to create a standalone
// invoice (one not converted from a quote)
type CreateInvoiceCommand struct {
	TenantID       uuid.UUID
	ActorID        uuid.UUID
	CustomerID     uuid.UUID
	OpportunityID  *uuid.UUID
	Title          string
	Description    string
	Items          []LineItemInput
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Currency       valueobject.Currency
	DueDate        time.Time
}

// InvoiceService manages the invoice lifecycle outside of payment
// application
type InvoiceService struct {
	invoiceRepo billing.InvoiceRepository
	paymentRepo billing.PaymentRepository
	directory   Directory
	tx          TxManager
	activity    ActivityLogger
	eventBus    shared.EventPublisher
	logger      *zap.Logger
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	invoiceRepo billing.InvoiceRepository,
	paymentRepo billing.PaymentRepository,
	directory Directory,
	tx TxManager,
	activity ActivityLogger,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		directory:   directory,
		tx:          tx,
		activity:    activity,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// CreateInvoice creates a draft invoice directly, without a quote
func (s *InvoiceService) CreateInvoice(ctx context.Context, cmd CreateInvoiceCommand) (*billing.Invoice, error) {
	ok, err := s.directory.CustomerInTenant(ctx, cmd.TenantID, cmd.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check customer: %w", err)
	}
	if !ok {
		return nil, shared.NewDomainError(shared.CodePreconditionFailed, "Customer does not exist in this tenant")
	}

	items := make(billing.LineItems, 0, len(cmd.Items))
	for i, in := range cmd.Items {
		exists, err := s.directory.ProductInTenant(ctx, cmd.TenantID, in.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to check product: %w", err)
		}
		if !exists {
			return nil, shared.NewDomainError(shared.CodePreconditionFailed,
				fmt.Sprintf("Product on line %d does not exist in this tenant", i+1))
		}
		li, err := billing.NewLineItem(in.ProductID, in.Description, in.Quantity, in.UnitPrice, in.DiscountPercent, i+1)
		if err != nil {
			return nil, err
		}
		items = append(items, *li)
	}

	invoice, err := s.createInvoiceOnce(ctx, cmd, items)
	if err != nil && shared.IsRetryable(err) {
		s.logger.Warn("retrying invoice creation",
			zap.String("tenant_id", cmd.TenantID.String()),
			zap.Error(err))
		invoice, err = s.createInvoiceOnce(ctx, cmd, items)
	}
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, invoice)
	s.logger.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber))

	return invoice, nil
}

// createInvoiceOnce generates a number and persists the invoice. A
// duplicate number from a concurrent creation surfaces as a retryable
// conflict; the caller regenerates and tries again.
func (s *InvoiceService) createInvoiceOnce(ctx context.Context, cmd CreateInvoiceCommand, items billing.LineItems) (*billing.Invoice, error) {
	invoiceNumber, err := s.invoiceRepo.GenerateInvoiceNumber(ctx, cmd.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invoice number: %w", err)
	}

	invoice, err := billing.NewInvoice(cmd.TenantID, invoiceNumber, cmd.CustomerID, nil, cmd.OpportunityID,
		items, cmd.TaxAmount, cmd.DiscountAmount, cmd.Currency, cmd.DueDate, cmd.ActorID)
	if err != nil {
		return nil, err
	}
	invoice.Title = cmd.Title
	invoice.Description = cmd.Description

	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}
	return invoice, nil
}

// GetInvoice fetches an invoice by ID within the tenant
func (s *InvoiceService) GetInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) (*billing.Invoice, error) {
	return s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
}

// ListInvoices lists invoices for a tenant with filtering
func (s *InvoiceService) ListInvoices(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	return s.invoiceRepo.FindAllForTenant(ctx, tenantID, filter)
}

// SendInvoice moves a draft invoice to Sent
func (s *InvoiceService) SendInvoice(ctx context.Context, tenantID, invoiceID, actorID uuid.UUID) (*billing.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}

	if err := invoice.Send(); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, invoice)
	s.logActivity(ctx, Activity{
		TenantID:    tenantID,
		ActorID:     actorID,
		EntityKind:  "Invoice",
		EntityID:    invoice.ID,
		Kind:        ActivityKindStatusChange,
		Description: fmt.Sprintf("Invoice %s sent", invoice.InvoiceNumber),
	})

	return invoice, nil
}

// CancelInvoice cancels an invoice that has no applied payments. The
// payment sum is re-read under the row lock so a payment landing
// concurrently cannot race the cancellation.
func (s *InvoiceService) CancelInvoice(ctx context.Context, tenantID, invoiceID, actorID uuid.UUID, reason string) (*billing.Invoice, error) {
	var invoice *billing.Invoice

	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, tenantID, invoiceID)
		if err != nil {
			return err
		}

		paid, err := s.paymentRepo.SumByInvoice(txCtx, tenantID, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to sum payments: %w", err)
		}
		if paid.GreaterThan(decimal.Zero) {
			return shared.NewDomainError(shared.CodeInvalidTransition,
				fmt.Sprintf("Cannot cancel invoice %s with applied payments", inv.InvoiceNumber))
		}

		if err := inv.Cancel(reason); err != nil {
			return err
		}
		if err := s.invoiceRepo.Save(txCtx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}

		invoice = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, invoice)
	s.logActivity(ctx, Activity{
		TenantID:    tenantID,
		ActorID:     actorID,
		EntityKind:  "Invoice",
		EntityID:    invoice.ID,
		Kind:        ActivityKindStatusChange,
		Description: fmt.Sprintf("Invoice %s cancelled: %s", invoice.InvoiceNumber, reason),
	})

	return invoice, nil
}

// MarkOverdueInvoices sweeps Sent invoices past their due date and
// re-derives their status. Returns the number moved to Overdue.
func (s *InvoiceService) MarkOverdueInvoices(ctx context.Context, tenantID uuid.UUID) (int, error) {
	now := time.Now()
	sent := billing.InvoiceStatusSent
	invoices, err := s.invoiceRepo.FindAllForTenant(ctx, tenantID, billing.InvoiceFilter{Status: &sent})
	if err != nil {
		return 0, err
	}

	marked := 0
	for i := range invoices {
		inv := &invoices[i]
		if !inv.DueDate.Before(now) {
			continue
		}
		if err := inv.Recompute(inv.PaidAmount, now); err != nil {
			s.logger.Warn("skipping overdue derivation",
				zap.String("invoice_id", inv.ID.String()),
				zap.Error(err))
			continue
		}
		if inv.Status != billing.InvoiceStatusOverdue {
			continue
		}
		if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
			if shared.IsRetryable(err) {
				continue
			}
			return marked, err
		}
		s.publishEvents(ctx, inv)
		marked++
	}

	return marked, nil
}

func (s *InvoiceService) publishEvents(ctx context.Context, agg shared.AggregateRoot) {
	for _, event := range agg.GetDomainEvents() {
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	agg.ClearDomainEvents()
}

func (s *InvoiceService) logActivity(ctx context.Context, activity Activity) {
	if err := s.activity.LogActivity(ctx, activity); err != nil {
		s.logger.Error("failed to log activity",
			zap.String("entity_kind", activity.EntityKind),
			zap.String("entity_id", activity.EntityID.String()),
			zap.Error(err))
	}
}
