package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/billing"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConvertQuoteCommand carries the conversion parameters
type ConvertQuoteCommand struct {
	TenantID uuid.UUID
	ActorID  uuid.UUID
	QuoteID  uuid.UUID

	// DueInDays overrides the configured payment term when positive
	DueInDays int

	// SendImmediately issues the invoice as Sent instead of Draft
	SendImmediately bool
}

// QuoteConversionService turns accepted quotes into invoices. The quote
// flip and the invoice insert commit in one transaction, so a quote can
// never end up Converted without its invoice or vice versa.
type QuoteConversionService struct {
	quoteRepo   billing.QuoteRepository
	invoiceRepo billing.InvoiceRepository
	tx          TxManager
	activity    ActivityLogger
	eventBus    shared.EventPublisher
	logger      *zap.Logger
	dueInDays   int
}

// NewQuoteConversionService creates a new conversion service.
// defaultDueInDays sets the invoice payment term when the command does
// not override it.
func NewQuoteConversionService(
	quoteRepo billing.QuoteRepository,
	invoiceRepo billing.InvoiceRepository,
	tx TxManager,
	activity ActivityLogger,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
	defaultDueInDays int,
) *QuoteConversionService {
	if defaultDueInDays <= 0 {
		defaultDueInDays = 30
	}
	return &QuoteConversionService{
		quoteRepo:   quoteRepo,
		invoiceRepo: invoiceRepo,
		tx:          tx,
		activity:    activity,
		eventBus:    eventBus,
		logger:      logger,
		dueInDays:   defaultDueInDays,
	}
}

// ConvertToInvoice converts an accepted quote into an invoice exactly
// once. Line items are copied with fresh identities; later edits to the
// invoice never touch the quote. A concurrent duplicate conversion
// loses either the optimistic lock or the already-converted check and
// gets an error, never a second invoice.
func (s *QuoteConversionService) ConvertToInvoice(ctx context.Context, cmd ConvertQuoteCommand) (*billing.Invoice, error) {
	var invoice *billing.Invoice
	var quote *billing.Quote

	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		q, err := s.quoteRepo.FindByIDForTenant(txCtx, cmd.TenantID, cmd.QuoteID)
		if err != nil {
			return err
		}
		if q.ConvertedToInvoiceID != nil {
			return shared.NewDomainError(shared.CodeAlreadyConverted,
				fmt.Sprintf("Quote %s has already been converted to an invoice", q.QuoteNumber))
		}
		if q.Status != billing.QuoteStatusAccepted {
			return shared.NewDomainError(shared.CodeInvalidTransition,
				fmt.Sprintf("Cannot convert quote in %s status, quote must be Accepted", q.Status))
		}

		invoiceNumber, err := s.invoiceRepo.GenerateInvoiceNumber(txCtx, cmd.TenantID)
		if err != nil {
			return fmt.Errorf("failed to generate invoice number: %w", err)
		}

		dueInDays := cmd.DueInDays
		if dueInDays <= 0 {
			dueInDays = s.dueInDays
		}
		dueDate := time.Now().AddDate(0, 0, dueInDays)

		quoteID := q.ID
		inv, err := billing.NewInvoice(cmd.TenantID, invoiceNumber, q.CustomerID,
			&quoteID, q.OpportunityID, q.LineItems.CloneAll(),
			q.TaxAmount, q.DiscountAmount, q.Currency, dueDate, cmd.ActorID)
		if err != nil {
			return err
		}
		inv.Title = q.Title
		inv.Description = q.Description

		if cmd.SendImmediately {
			if err := inv.Send(); err != nil {
				return err
			}
		}

		if err := q.MarkConverted(inv.ID, inv.InvoiceNumber); err != nil {
			return err
		}

		if err := s.invoiceRepo.Save(txCtx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		if err := s.quoteRepo.SaveWithLock(txCtx, q); err != nil {
			return err
		}

		invoice = inv
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, quote)
	s.publishEvents(ctx, invoice)

	s.logActivity(ctx, Activity{
		TenantID:    cmd.TenantID,
		ActorID:     cmd.ActorID,
		EntityKind:  "Quote",
		EntityID:    quote.ID,
		Kind:        ActivityKindConversion,
		Description: fmt.Sprintf("Quote %s converted to invoice %s", quote.QuoteNumber, invoice.InvoiceNumber),
	})
	s.logActivity(ctx, Activity{
		TenantID:    cmd.TenantID,
		ActorID:     cmd.ActorID,
		EntityKind:  "Invoice",
		EntityID:    invoice.ID,
		Kind:        ActivityKindConversion,
		Description: fmt.Sprintf("Invoice %s created from quote %s", invoice.InvoiceNumber, quote.QuoteNumber),
	})

	s.logger.Info("quote converted",
		zap.String("quote_id", quote.ID.String()),
		zap.String("quote_number", quote.QuoteNumber),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber))

	return invoice, nil
}

func (s *QuoteConversionService) publishEvents(ctx context.Context, agg shared.AggregateRoot) {
	for _, event := range agg.GetDomainEvents() {
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	agg.ClearDomainEvents()
}

func (s *QuoteConversionService) logActivity(ctx context.Context, activity Activity) {
	if err := s.activity.LogActivity(ctx, activity); err != nil {
		s.logger.Error("failed to log activity",
			zap.String("entity_kind", activity.EntityKind),
			zap.String("entity_id", activity.EntityID.String()),
			zap.Error(err))
	}
}
