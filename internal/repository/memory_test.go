package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUsageDailyRollover(t *testing.T) {
	m := NewMemoryUsageRepo()
	now := time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.AddDailyUsage(context.Background(), 2, 5000))
	orders, volume, err := m.GetDailyUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, orders)
	assert.Equal(t, 5000.0, volume)

	// Crossing midnight resets the counters.
	now = now.Add(2 * time.Hour)
	orders, volume, err = m.GetDailyUsage(context.Background())
	require.NoError(t, err)
	assert.Zero(t, orders)
	assert.Zero(t, volume)
}

func TestMemoryDrawdownPeakToLatest(t *testing.T) {
	m := NewMemoryUsageRepo()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, m.RecordEquity(ctx, 10000))
	now = now.Add(time.Hour)
	require.NoError(t, m.RecordEquity(ctx, 12000)) // peak
	now = now.Add(time.Hour)
	require.NoError(t, m.RecordEquity(ctx, 10800)) // latest

	dd, err := m.Drawdown24h(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, dd, 1e-9, "(12000-10800)/12000 = 10%%")
}

func TestMemoryDrawdownZeroWhenRisingOrShort(t *testing.T) {
	m := NewMemoryUsageRepo()
	ctx := context.Background()

	dd, err := m.Drawdown24h(ctx)
	require.NoError(t, err)
	assert.Zero(t, dd, "no samples means no drawdown signal")

	require.NoError(t, m.RecordEquity(ctx, 10000))
	require.NoError(t, m.RecordEquity(ctx, 11000))
	dd, err = m.Drawdown24h(ctx)
	require.NoError(t, err)
	assert.Zero(t, dd, "rising equity is never a drawdown")
}

func TestDrawdownPctHelper(t *testing.T) {
	assert.Zero(t, drawdownPct(0, 100))
	assert.Zero(t, drawdownPct(100, 100))
	assert.Zero(t, drawdownPct(100, 120))
	assert.InDelta(t, 25.0, drawdownPct(100, 75), 1e-9)
}
