package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider lists the tenants a tenant-scoped sweep must visit
type TenantProvider interface {
	GetAllActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// OverdueMarker is the slice of the invoice service the sweeper drives
type OverdueMarker interface {
	MarkOverdueInvoices(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// InvoiceOverdueConfig holds configuration for the overdue sweeper
type InvoiceOverdueConfig struct {
	// Interval is how often the sweep runs
	Interval time.Duration
}

// DefaultInvoiceOverdueConfig returns default sweeper configuration
func DefaultInvoiceOverdueConfig() InvoiceOverdueConfig {
	return InvoiceOverdueConfig{
		Interval: time.Hour,
	}
}

// InvoiceOverdueSweeper periodically flips unpaid invoices past their
// due date to Overdue, tenant by tenant. Overdue is also derived lazily
// on every recompute; the sweeper keeps dashboards honest between
// payments.
type InvoiceOverdueSweeper struct {
	config  InvoiceOverdueConfig
	tenants TenantProvider
	marker  OverdueMarker
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewInvoiceOverdueSweeper creates a new invoice overdue sweeper
func NewInvoiceOverdueSweeper(config InvoiceOverdueConfig, tenants TenantProvider, marker OverdueMarker, logger *zap.Logger) *InvoiceOverdueSweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultInvoiceOverdueConfig().Interval
	}
	return &InvoiceOverdueSweeper{
		config:  config,
		tenants: tenants,
		marker:  marker,
		logger:  logger,
	}
}

// Start starts the sweep loop
func (s *InvoiceOverdueSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Invoice overdue sweeper started",
		zap.Duration("interval", s.config.Interval),
	)

	return nil
}

// Stop stops the sweep loop gracefully
func (s *InvoiceOverdueSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Invoice overdue sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *InvoiceOverdueSweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *InvoiceOverdueSweeper) sweep(ctx context.Context) {
	tenantIDs, err := s.tenants.GetAllActiveTenantIDs(ctx)
	if err != nil {
		s.logger.Error("invoice overdue sweep failed to list tenants", zap.Error(err))
		return
	}

	total := 0
	for _, tenantID := range tenantIDs {
		marked, err := s.marker.MarkOverdueInvoices(ctx, tenantID)
		if err != nil {
			s.logger.Error("invoice overdue sweep failed for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
			continue
		}
		total += marked
	}
	if total > 0 {
		s.logger.Info("invoice overdue sweep completed", zap.Int("marked", total))
	}
}
