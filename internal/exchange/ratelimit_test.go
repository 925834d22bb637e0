package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLimiter installs a fake clock and a sleep that advances it instead
// of blocking.
func newTestLimiter(conn, account, order BucketConfig) (*MultiLimiter, *time.Time, *int) {
	l := NewMultiLimiter(conn, account, order)
	now := time.UnixMilli(1700000000000)
	sleeps := 0
	l.now = func() time.Time { return now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		sleeps++
		now = now.Add(d)
		return nil
	}
	l.conn.last, l.account.last, l.order.last = now, now, now
	return l, &now, &sleeps
}

func TestAcquireConservesTokens(t *testing.T) {
	l, _, _ := newTestLimiter(
		BucketConfig{Capacity: 100, RefillRate: 10},
		BucketConfig{Capacity: 100, RefillRate: 10},
		BucketConfig{Capacity: 5, RefillRate: 5},
	)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(context.Background(), 2, false))
	}

	conn, account, order := l.Remaining()
	assert.InDelta(t, 90, conn, 1e-9)
	assert.InDelta(t, 90, account, 1e-9)
	assert.InDelta(t, 5, order, 1e-9, "order bucket untouched by non-order calls")
}

func TestAcquireOrderConsumesOrderBucketOnce(t *testing.T) {
	l, _, _ := newTestLimiter(
		BucketConfig{Capacity: 100, RefillRate: 10},
		BucketConfig{Capacity: 100, RefillRate: 10},
		BucketConfig{Capacity: 5, RefillRate: 5},
	)

	// Batch weight is 5 but the order bucket pays exactly 1 per attempt.
	require.NoError(t, l.Acquire(context.Background(), 5, true))
	conn, _, order := l.Remaining()
	assert.InDelta(t, 95, conn, 1e-9)
	assert.InDelta(t, 4, order, 1e-9)
}

func TestAcquireWaitsForRefill(t *testing.T) {
	l, _, sleeps := newTestLimiter(
		BucketConfig{Capacity: 2, RefillRate: 1},
		BucketConfig{Capacity: 100, RefillRate: 10},
		BucketConfig{Capacity: 5, RefillRate: 5},
	)

	require.NoError(t, l.Acquire(context.Background(), 2, false))
	// Bucket is empty; the next call must wait for the deficit then succeed.
	require.NoError(t, l.Acquire(context.Background(), 2, false))
	assert.Greater(t, *sleeps, 0)

	conn, _, _ := l.Remaining()
	assert.GreaterOrEqual(t, conn, 0.0, "tokens never go negative")
}

func TestOrderBucketRefillsOnWholeSecondSteps(t *testing.T) {
	l, now, _ := newTestLimiter(
		BucketConfig{Capacity: 100, RefillRate: 10},
		BucketConfig{Capacity: 100, RefillRate: 10},
		BucketConfig{Capacity: 2, RefillRate: 2},
	)

	require.NoError(t, l.Acquire(context.Background(), 1, true))
	require.NoError(t, l.Acquire(context.Background(), 1, true))
	_, _, order := l.Remaining()
	assert.InDelta(t, 0, order, 1e-9)

	// 900ms is not a full second: the stepped bucket must stay empty, so
	// the next acquire has to sleep across the second boundary.
	*now = now.Add(900 * time.Millisecond)
	start := *now
	require.NoError(t, l.Acquire(context.Background(), 1, true))
	assert.True(t, now.Sub(start) >= 100*time.Millisecond, "must wait until the next whole second")
}

func TestAcquireFullRefillAfterIdle(t *testing.T) {
	l, now, _ := newTestLimiter(
		BucketConfig{Capacity: 10, RefillRate: 1},
		BucketConfig{Capacity: 10, RefillRate: 1},
		BucketConfig{Capacity: 5, RefillRate: 5},
	)

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Acquire(context.Background(), 1, false))
	}
	*now = now.Add(time.Minute)
	require.NoError(t, l.Acquire(context.Background(), 1, false))
	conn, _, _ := l.Remaining()
	assert.InDelta(t, 9, conn, 1e-9, "idle refill caps at capacity, never above")
}

func TestAcquireBoundedAttempts(t *testing.T) {
	// A bucket that can never refill forces the attempt bound.
	l, _, sleeps := newTestLimiter(
		BucketConfig{Capacity: 0, RefillRate: 0},
		BucketConfig{Capacity: 100, RefillRate: 10},
		BucketConfig{Capacity: 5, RefillRate: 5},
	)

	err := l.Acquire(context.Background(), 1, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))
	assert.Equal(t, maxAcquireAttempts, *sleeps)
}

func TestAcquireCancelledDuringWait(t *testing.T) {
	l, _, _ := newTestLimiter(
		BucketConfig{Capacity: 0, RefillRate: 0},
		BucketConfig{Capacity: 100, RefillRate: 10},
		BucketConfig{Capacity: 5, RefillRate: 5},
	)
	l.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	err := l.Acquire(context.Background(), 1, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransport(err))
}
