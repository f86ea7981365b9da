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

// LineItemInput is one requested document line
type LineItemInput struct {
	ProductID       uuid.UUID
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
}

// CreateQuoteCommand carries everything needed to create a quote
type CreateQuoteCommand struct {
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
	ValidUntil     *time.Time
}

// QuoteService manages the quote lifecycle
type QuoteService struct {
	quoteRepo billing.QuoteRepository
	directory Directory
	activity  ActivityLogger
	eventBus  shared.EventPublisher
	logger    *zap.Logger
}

// NewQuoteService creates a new quote service
func NewQuoteService(
	quoteRepo billing.QuoteRepository,
	directory Directory,
	activity ActivityLogger,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *QuoteService {
	return &QuoteService{
		quoteRepo: quoteRepo,
		directory: directory,
		activity:  activity,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// CreateQuote creates a draft quote after checking its references exist
// in the tenant. A linked opportunity must still be open.
func (s *QuoteService) CreateQuote(ctx context.Context, cmd CreateQuoteCommand) (*billing.Quote, error) {
	ok, err := s.directory.CustomerInTenant(ctx, cmd.TenantID, cmd.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check customer: %w", err)
	}
	if !ok {
		return nil, shared.NewDomainError(shared.CodePreconditionFailed, "Customer does not exist in this tenant")
	}

	if cmd.OpportunityID != nil {
		open, err := s.directory.OpportunityIsOpen(ctx, cmd.TenantID, *cmd.OpportunityID)
		if err != nil {
			return nil, fmt.Errorf("failed to check opportunity: %w", err)
		}
		if !open {
			return nil, shared.NewDomainError(shared.CodePreconditionFailed, "Linked opportunity must be open")
		}
	}

	items, err := s.buildLineItems(ctx, cmd.TenantID, cmd.Items)
	if err != nil {
		return nil, err
	}

	quote, err := s.createQuoteOnce(ctx, cmd, items)
	if err != nil && shared.IsRetryable(err) {
		s.logger.Warn("retrying quote creation",
			zap.String("tenant_id", cmd.TenantID.String()),
			zap.Error(err))
		quote, err = s.createQuoteOnce(ctx, cmd, items)
	}
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, quote)
	s.logActivity(ctx, Activity{
		TenantID:    cmd.TenantID,
		ActorID:     cmd.ActorID,
		EntityKind:  "Quote",
		EntityID:    quote.ID,
		Kind:        ActivityKindNote,
		Description: fmt.Sprintf("Quote %s created", quote.QuoteNumber),
	})

	s.logger.Info("quote created",
		zap.String("quote_id", quote.ID.String()),
		zap.String("quote_number", quote.QuoteNumber),
		zap.String("tenant_id", cmd.TenantID.String()))

	return quote, nil
}

// createQuoteOnce generates a number and persists the quote. Two
// concurrent creations can compose the same number off the max-scan;
// the unique index rejects the loser with a retryable conflict and the
// caller regenerates.
func (s *QuoteService) createQuoteOnce(ctx context.Context, cmd CreateQuoteCommand, items billing.LineItems) (*billing.Quote, error) {
	quoteNumber, err := s.quoteRepo.GenerateQuoteNumber(ctx, cmd.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate quote number: %w", err)
	}

	quote, err := billing.NewQuote(cmd.TenantID, quoteNumber, cmd.CustomerID, cmd.OpportunityID,
		items, cmd.TaxAmount, cmd.DiscountAmount, cmd.Currency, cmd.ValidUntil, cmd.ActorID)
	if err != nil {
		return nil, err
	}
	if cmd.Title != "" {
		if err := quote.SetTitle(cmd.Title, cmd.Description); err != nil {
			return nil, err
		}
	}

	if err := s.quoteRepo.Save(ctx, quote); err != nil {
		return nil, fmt.Errorf("failed to save quote: %w", err)
	}
	return quote, nil
}

// GetQuote fetches a quote by ID within the tenant
func (s *QuoteService) GetQuote(ctx context.Context, tenantID, quoteID uuid.UUID) (*billing.Quote, error) {
	return s.quoteRepo.FindByIDForTenant(ctx, tenantID, quoteID)
}

// ListQuotes lists quotes for a tenant with filtering
func (s *QuoteService) ListQuotes(ctx context.Context, tenantID uuid.UUID, filter billing.QuoteFilter) ([]billing.Quote, error) {
	return s.quoteRepo.FindAllForTenant(ctx, tenantID, filter)
}

// UpdateDraft updates a draft quote's title and line items
func (s *QuoteService) UpdateDraft(
	ctx context.Context,
	tenantID, quoteID, actorID uuid.UUID,
	title, description string,
	items []LineItemInput,
	taxAmount, discountAmount decimal.Decimal,
) (*billing.Quote, error) {
	quote, err := s.quoteRepo.FindByIDForTenant(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}

	if err := quote.SetTitle(title, description); err != nil {
		return nil, err
	}
	if len(items) > 0 {
		lineItems, err := s.buildLineItems(ctx, tenantID, items)
		if err != nil {
			return nil, err
		}
		if err := quote.ReplaceLineItems(lineItems, taxAmount, discountAmount); err != nil {
			return nil, err
		}
	}

	if err := s.quoteRepo.SaveWithLock(ctx, quote); err != nil {
		return nil, err
	}

	return quote, nil
}

// TransitionStatus executes a caller-requested quote transition and
// records it on the quote's timeline.
func (s *QuoteService) TransitionStatus(
	ctx context.Context,
	tenantID, quoteID, actorID uuid.UUID,
	target billing.QuoteStatus,
) (*billing.Quote, error) {
	quote, err := s.quoteRepo.FindByIDForTenant(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}

	fromStatus := quote.Status
	if err := quote.TransitionTo(target); err != nil {
		return nil, err
	}

	if err := s.quoteRepo.SaveWithLock(ctx, quote); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, quote)
	s.logActivity(ctx, Activity{
		TenantID:    tenantID,
		ActorID:     actorID,
		EntityKind:  "Quote",
		EntityID:    quote.ID,
		Kind:        ActivityKindStatusChange,
		Description: fmt.Sprintf("Quote status changed from %s to %s", fromStatus, target),
	})

	s.logger.Info("quote status changed",
		zap.String("quote_id", quote.ID.String()),
		zap.String("from", fromStatus.String()),
		zap.String("to", target.String()))

	return quote, nil
}

// ExpireDueQuotes sweeps Sent quotes whose validity window has passed
// and marks them Expired. Returns the number expired. Quotes that were
// accepted or rejected between the scan and the write lose the
// optimistic lock and are simply skipped until the next sweep.
func (s *QuoteService) ExpireDueQuotes(ctx context.Context, limit int) (int, error) {
	now := time.Now()
	quotes, err := s.quoteRepo.FindExpirable(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to scan for expirable quotes: %w", err)
	}

	expired := 0
	for i := range quotes {
		quote := &quotes[i]
		if !quote.IsExpiredBy(now) {
			continue
		}
		if err := quote.TransitionTo(billing.QuoteStatusExpired); err != nil {
			s.logger.Warn("skipping quote expiry",
				zap.String("quote_id", quote.ID.String()),
				zap.Error(err))
			continue
		}
		if err := s.quoteRepo.SaveWithLock(ctx, quote); err != nil {
			if shared.IsRetryable(err) {
				continue
			}
			return expired, err
		}
		s.publishEvents(ctx, quote)
		s.logActivity(ctx, Activity{
			TenantID:    quote.TenantID,
			ActorID:     SystemActorID,
			EntityKind:  "Quote",
			EntityID:    quote.ID,
			Kind:        ActivityKindStatusChange,
			Description: fmt.Sprintf("Quote status changed from %s to %s", billing.QuoteStatusSent, billing.QuoteStatusExpired),
		})
		expired++
	}

	if expired > 0 {
		s.logger.Info("expired quotes", zap.Int("count", expired))
	}

	return expired, nil
}

func (s *QuoteService) buildLineItems(ctx context.Context, tenantID uuid.UUID, inputs []LineItemInput) (billing.LineItems, error) {
	items := make(billing.LineItems, 0, len(inputs))
	for i, in := range inputs {
		ok, err := s.directory.ProductInTenant(ctx, tenantID, in.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to check product: %w", err)
		}
		if !ok {
			return nil, shared.NewDomainError(shared.CodePreconditionFailed,
				fmt.Sprintf("Product on line %d does not exist in this tenant", i+1))
		}
		li, err := billing.NewLineItem(in.ProductID, in.Description, in.Quantity, in.UnitPrice, in.DiscountPercent, i+1)
		if err != nil {
			return nil, err
		}
		items = append(items, *li)
	}
	return items, nil
}

func (s *QuoteService) publishEvents(ctx context.Context, agg shared.AggregateRoot) {
	for _, event := range agg.GetDomainEvents() {
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	agg.ClearDomainEvents()
}

func (s *QuoteService) logActivity(ctx context.Context, activity Activity) {
	if err := s.activity.LogActivity(ctx, activity); err != nil {
		s.logger.Error("failed to log activity",
			zap.String("entity_kind", activity.EntityKind),
			zap.String("entity_id", activity.EntityID.String()),
			zap.Error(err))
	}
}
