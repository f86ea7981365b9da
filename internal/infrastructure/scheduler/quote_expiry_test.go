package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingExpirer struct {
	calls atomic.Int32
	limit atomic.Int32
}

func (e *countingExpirer) ExpireDueQuotes(ctx context.Context, limit int) (int, error) {
	e.calls.Add(1)
	e.limit.Store(int32(limit))
	return 2, nil
}

func TestQuoteExpirySweeper_RunsOnInterval(t *testing.T) {
	expirer := &countingExpirer{}
	sweeper := NewQuoteExpirySweeper(QuoteExpiryConfig{
		Interval:  10 * time.Millisecond,
		BatchSize: 25,
	}, expirer, zap.NewNop())

	require.NoError(t, sweeper.Start(context.Background()))
	defer func() {
		_ = sweeper.Stop(context.Background())
	}()

	assert.Eventually(t, func() bool {
		return expirer.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(25), expirer.limit.Load())
}

func TestQuoteExpirySweeper_StopHaltsTheLoop(t *testing.T) {
	expirer := &countingExpirer{}
	sweeper := NewQuoteExpirySweeper(QuoteExpiryConfig{
		Interval:  10 * time.Millisecond,
		BatchSize: 10,
	}, expirer, zap.NewNop())

	require.NoError(t, sweeper.Start(context.Background()))
	require.NoError(t, sweeper.Stop(context.Background()))

	calls := expirer.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, expirer.calls.Load())
}

func TestQuoteExpirySweeper_StartIsIdempotent(t *testing.T) {
	expirer := &countingExpirer{}
	sweeper := NewQuoteExpirySweeper(DefaultQuoteExpiryConfig(), expirer, zap.NewNop())

	require.NoError(t, sweeper.Start(context.Background()))
	require.NoError(t, sweeper.Start(context.Background()))
	require.NoError(t, sweeper.Stop(context.Background()))
}

func TestNewQuoteExpirySweeper_AppliesDefaults(t *testing.T) {
	sweeper := NewQuoteExpirySweeper(QuoteExpiryConfig{}, &countingExpirer{}, zap.NewNop())

	assert.Equal(t, DefaultQuoteExpiryConfig().Interval, sweeper.config.Interval)
	assert.Equal(t, DefaultQuoteExpiryConfig().BatchSize, sweeper.config.BatchSize)
}
