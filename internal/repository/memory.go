package repository

import (
	"context"
	"sync"
	"time"
)

type equitySample struct {
	at     time.Time
	equity float64
}

// MemoryUsageRepo is the in-process fallback when Redis is unreachable.
// Same contract as RedisUsageRepo, state lost on restart.
type MemoryUsageRepo struct {
	mu      sync.Mutex
	day     string
	orders  int
	volume  float64
	samples []equitySample
	now     func() time.Time
}

func NewMemoryUsageRepo() *MemoryUsageRepo {
	return &MemoryUsageRepo{now: time.Now}
}

func (m *MemoryUsageRepo) rollDayLocked() {
	today := m.now().UTC().Format("2006-01-02")
	if m.day != today {
		m.day = today
		m.orders = 0
		m.volume = 0
	}
}

func (m *MemoryUsageRepo) AddDailyUsage(_ context.Context, orders int, volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()
	m.orders += orders
	m.volume += volume
	return nil
}

func (m *MemoryUsageRepo) GetDailyUsage(_ context.Context) (int, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()
	return m.orders, m.volume, nil
}

func (m *MemoryUsageRepo) RecordEquity(_ context.Context, equity float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	cutoff := now.Add(-equityKeep)
	kept := m.samples[:0]
	for _, s := range m.samples {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	m.samples = append(kept, equitySample{at: now, equity: equity})
	return nil
}

func (m *MemoryUsageRepo) Drawdown24h(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.samples) < 2 {
		return 0, nil
	}
	cutoff := m.now().Add(-equityKeep)
	peak, latest := 0.0, 0.0
	for i, s := range m.samples {
		if s.at.Before(cutoff) {
			continue
		}
		if s.equity > peak {
			peak = s.equity
		}
		if i == len(m.samples)-1 {
			latest = s.equity
		}
	}
	return drawdownPct(peak, latest), nil
}
