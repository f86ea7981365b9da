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

// ApplyPaymentCommand carries everything needed to record a payment
type ApplyPaymentCommand struct {
	TenantID        uuid.UUID
	ActorID         uuid.UUID
	InvoiceID       uuid.UUID
	Amount          decimal.Decimal
	Currency        valueobject.Currency
	Method          billing.PaymentMethod
	PaymentDate     time.Time
	TransactionID   string
	ReferenceNumber string
	Notes           string
}

// PaymentService applies and removes payments against invoices. Each
// mutation is one transaction: the invoice row is locked, the payment
// sum is re-read under that lock, and the invoice status is re-derived
// from the new sum before anything commits.
type PaymentService struct {
	invoiceRepo billing.InvoiceRepository
	paymentRepo billing.PaymentRepository
	tx          TxManager
	activity    ActivityLogger
	eventBus    shared.EventPublisher
	logger      *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	invoiceRepo billing.InvoiceRepository,
	paymentRepo billing.PaymentRepository,
	tx TxManager,
	activity ActivityLogger,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		tx:          tx,
		activity:    activity,
		eventBus:    eventBus,
		logger:      logger,
	}
}

// ApplyPayment records a payment against an invoice. The overpayment
// check runs against the payment sum read under the invoice row lock,
// so two concurrent payments can never jointly exceed the total. A
// transient failure or lock conflict is retried once; the command never
// applies twice because the failed attempt did not commit.
func (s *PaymentService) ApplyPayment(ctx context.Context, cmd ApplyPaymentCommand) (*billing.Payment, error) {
	payment, invoice, err := s.applyPaymentTx(ctx, cmd)
	if err != nil && shared.IsRetryable(err) {
		s.logger.Warn("retrying payment application",
			zap.String("invoice_id", cmd.InvoiceID.String()),
			zap.Error(err))
		payment, invoice, err = s.applyPaymentTx(ctx, cmd)
	}
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, payment)
	s.publishEvents(ctx, invoice)

	s.logActivity(ctx, Activity{
		TenantID:    cmd.TenantID,
		ActorID:     cmd.ActorID,
		EntityKind:  "Invoice",
		EntityID:    invoice.ID,
		Kind:        ActivityKindPayment,
		Description: fmt.Sprintf("Payment %s of %s received for invoice %s", payment.PaymentNumber, payment.Amount.StringFixed(2), invoice.InvoiceNumber),
	})
	if invoice.OpportunityID != nil {
		s.logActivity(ctx, Activity{
			TenantID:    cmd.TenantID,
			ActorID:     cmd.ActorID,
			EntityKind:  "Opportunity",
			EntityID:    *invoice.OpportunityID,
			Kind:        ActivityKindPayment,
			Description: fmt.Sprintf("Payment %s received for invoice %s", payment.PaymentNumber, invoice.InvoiceNumber),
		})
	}

	s.logger.Info("payment applied",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("invoice_status", invoice.Status.String()))

	return payment, nil
}

func (s *PaymentService) applyPaymentTx(ctx context.Context, cmd ApplyPaymentCommand) (*billing.Payment, *billing.Invoice, error) {
	var payment *billing.Payment
	var invoice *billing.Invoice

	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, cmd.TenantID, cmd.InvoiceID)
		if err != nil {
			return err
		}
		if !inv.Status.CanAcceptPayment() {
			return shared.NewDomainError(shared.CodeInvalidTransition,
				fmt.Sprintf("Cannot apply payments to invoice %s in %s status", inv.InvoiceNumber, inv.Status))
		}
		if cmd.Currency != "" && cmd.Currency != inv.Currency {
			return shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("Payment currency %s does not match invoice currency %s", cmd.Currency, inv.Currency))
		}

		paidSoFar, err := s.paymentRepo.SumByInvoice(txCtx, cmd.TenantID, cmd.InvoiceID)
		if err != nil {
			return fmt.Errorf("failed to sum payments: %w", err)
		}

		newSum := paidSoFar.Add(cmd.Amount)
		if newSum.GreaterThan(inv.TotalAmount) {
			remaining := inv.TotalAmount.Sub(paidSoFar)
			return shared.NewDomainError(shared.CodeOverpaymentRejected,
				fmt.Sprintf("Payment of %s exceeds remaining balance %s on invoice %s",
					cmd.Amount.StringFixed(2), remaining.StringFixed(2), inv.InvoiceNumber))
		}

		paymentNumber, err := s.paymentRepo.GeneratePaymentNumber(txCtx, cmd.TenantID)
		if err != nil {
			return fmt.Errorf("failed to generate payment number: %w", err)
		}

		p, err := billing.NewPayment(cmd.TenantID, paymentNumber, inv.ID, inv.CustomerID,
			cmd.Amount, inv.Currency, cmd.Method, cmd.PaymentDate, cmd.ActorID)
		if err != nil {
			return err
		}
		p.WithTransactionID(cmd.TransactionID).
			WithReferenceNumber(cmd.ReferenceNumber).
			WithNotes(cmd.Notes).
			WithReceivedBy(cmd.ActorID)

		if err := s.paymentRepo.Save(txCtx, p); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}

		if err := inv.Recompute(newSum, time.Now()); err != nil {
			return err
		}
		if err := s.invoiceRepo.Save(txCtx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}

		payment = p
		invoice = inv
		return nil
	})

	return payment, invoice, err
}

// DeletePayment removes a payment and re-derives the invoice status
// from the remaining sum, in the same transaction.
func (s *PaymentService) DeletePayment(ctx context.Context, tenantID, paymentID, actorID uuid.UUID) error {
	var invoice *billing.Invoice
	var paymentNumber string

	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		p, err := s.paymentRepo.FindByIDForTenant(txCtx, tenantID, paymentID)
		if err != nil {
			return err
		}
		paymentNumber = p.PaymentNumber

		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, tenantID, p.InvoiceID)
		if err != nil {
			return err
		}

		if err := s.paymentRepo.Delete(txCtx, tenantID, paymentID); err != nil {
			return fmt.Errorf("failed to delete payment: %w", err)
		}

		remaining, err := s.paymentRepo.SumByInvoice(txCtx, tenantID, p.InvoiceID)
		if err != nil {
			return fmt.Errorf("failed to sum payments: %w", err)
		}

		if err := inv.Recompute(remaining, time.Now()); err != nil {
			return err
		}
		if err := s.invoiceRepo.Save(txCtx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}

		invoice = inv
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvents(ctx, invoice)
	s.logActivity(ctx, Activity{
		TenantID:    tenantID,
		ActorID:     actorID,
		EntityKind:  "Invoice",
		EntityID:    invoice.ID,
		Kind:        ActivityKindPayment,
		Description: fmt.Sprintf("Payment %s deleted from invoice %s", paymentNumber, invoice.InvoiceNumber),
	})

	s.logger.Info("payment deleted",
		zap.String("payment_id", paymentID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_status", invoice.Status.String()))

	return nil
}

// ListPayments lists all payments recorded against an invoice
func (s *PaymentService) ListPayments(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]billing.Payment, error) {
	return s.paymentRepo.FindByInvoice(ctx, tenantID, invoiceID)
}

func (s *PaymentService) publishEvents(ctx context.Context, agg shared.AggregateRoot) {
	for _, event := range agg.GetDomainEvents() {
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	agg.ClearDomainEvents()
}

func (s *PaymentService) logActivity(ctx context.Context, activity Activity) {
	if err := s.activity.LogActivity(ctx, activity); err != nil {
		s.logger.Error("failed to log activity",
			zap.String("entity_kind", activity.EntityKind),
			zap.String("entity_id", activity.EntityID.String()),
			zap.Error(err))
	}
}
