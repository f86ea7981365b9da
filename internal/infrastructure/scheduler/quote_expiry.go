package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// QuoteExpirer is the slice of the quote service the sweeper drives
type QuoteExpirer interface {
	ExpireDueQuotes(ctx context.Context, limit int) (int, error)
}

// QuoteExpiryConfig holds configuration for the quote expiry sweeper
type QuoteExpiryConfig struct {
	// Interval is how often the sweep runs
	Interval time.Duration
	// BatchSize caps how many quotes one sweep expires
	BatchSize int
}

// DefaultQuoteExpiryConfig returns default sweeper configuration
func DefaultQuoteExpiryConfig() QuoteExpiryConfig {
	return QuoteExpiryConfig{
		Interval:  5 * time.Minute,
		BatchSize: 100,
	}
}

// QuoteExpirySweeper periodically expires Sent quotes whose validity
// window has passed. Expiry is lazy everywhere else; the sweeper just
// keeps listings current without waiting for a read.
type QuoteExpirySweeper struct {
	config  QuoteExpiryConfig
	expirer QuoteExpirer
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewQuoteExpirySweeper creates a new quote expiry sweeper
func NewQuoteExpirySweeper(config QuoteExpiryConfig, expirer QuoteExpirer, logger *zap.Logger) *QuoteExpirySweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultQuoteExpiryConfig().Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultQuoteExpiryConfig().BatchSize
	}
	return &QuoteExpirySweeper{
		config:  config,
		expirer: expirer,
		logger:  logger,
	}
}

// Start starts the sweep loop
func (s *QuoteExpirySweeper) Start(ctx context.Context) error {
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

	s.logger.Info("Quote expiry sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize),
	)

	return nil
}

// Stop stops the sweep loop gracefully
func (s *QuoteExpirySweeper) Stop(ctx context.Context) error {
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
		s.logger.Info("Quote expiry sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop sweeps on every tick until the context is cancelled
func (s *QuoteExpirySweeper) runLoop(ctx context.Context) {
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

func (s *QuoteExpirySweeper) sweep(ctx context.Context) {
	expired, err := s.expirer.ExpireDueQuotes(ctx, s.config.BatchSize)
	if err != nil {
		s.logger.Error("quote expiry sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		s.logger.Info("quote expiry sweep completed", zap.Int("expired", expired))
	}
}
