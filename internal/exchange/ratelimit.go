package exchange

import (
	"context"
	"fmt"
	"time"

	"sync"

	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/apperrors"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/metrics"
)

const (
	// Upper bound on a single refill wait.
	maxBucketWait = 5 * time.Second
	// Bounded retry depth before giving up with a rate-limit error.
	maxAcquireAttempts = 10
)

// bucket is one token bucket dimension. Tokens never go negative.
type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// refill adds tokens proportional to elapsed time, capped at capacity.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}

// refillStepped refills in whole-second steps. Used for the order bucket,
// which replenishes on a fixed 1-second cadence independent of the generic
// window.
func (b *bucket) refillStepped(now time.Time) {
	steps := int64(now.Sub(b.last) / time.Second)
	if steps <= 0 {
		return
	}
	b.tokens += float64(steps) * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = b.last.Add(time.Duration(steps) * time.Second)
}

// waitFor returns how long until `need` tokens become available.
func (b *bucket) waitFor(need float64) time.Duration {
	deficit := need - b.tokens
	if deficit <= 0 {
		return 0
	}
	if b.refillRate <= 0 {
		return maxBucketWait
	}
	return time.Duration(deficit / b.refillRate * float64(time.Second))
}

// BucketConfig sizes one bucket dimension.
type BucketConfig struct {
	Capacity   float64
	RefillRate float64
}

// MultiLimiter gates outbound calls with independent connection-wide,
// account-wide and order-specific token buckets. It is the one process-wide
// shared resource written from concurrent branches, so every access holds
// the mutex. It deliberately does not coordinate across processes.
type MultiLimiter struct {
	mu      sync.Mutex
	conn    *bucket
	account *bucket
	order   *bucket

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewMultiLimiter(conn, account, order BucketConfig) *MultiLimiter {
	now := time.Now()
	mk := func(c BucketConfig) *bucket {
		return &bucket{tokens: c.Capacity, capacity: c.Capacity, refillRate: c.RefillRate, last: now}
	}
	return &MultiLimiter{
		conn:    mk(conn),
		account: mk(account),
		order:   mk(order),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquire blocks until every relevant bucket can cover the request, or the
// bounded retry depth is exhausted. The order bucket is consumed once per
// order attempt regardless of the generic weight.
func (l *MultiLimiter) Acquire(ctx context.Context, weight int, order bool) error {
	if weight <= 0 {
		weight = 1
	}
	need := float64(weight)

	for attempt := 0; attempt < maxAcquireAttempts; attempt++ {
		l.mu.Lock()
		now := l.now()
		l.conn.refill(now)
		l.account.refill(now)
		l.order.refillStepped(now)

		ok := l.conn.tokens >= need && l.account.tokens >= need
		if order {
			ok = ok && l.order.tokens >= 1
		}
		if ok {
			l.conn.tokens -= need
			l.account.tokens -= need
			if order {
				l.order.tokens--
			}
			l.mu.Unlock()
			return nil
		}

		wait := l.conn.waitFor(need)
		if w := l.account.waitFor(need); w > wait {
			wait = w
		}
		if order {
			if w := l.order.waitFor(1); w > wait {
				wait = w
			}
		}
		l.mu.Unlock()

		if wait > maxBucketWait {
			wait = maxBucketWait
		}
		metrics.RateLimitWaits.Inc()
		if err := l.sleep(ctx, wait); err != nil {
			return apperrors.NewTransport("rate limit wait cancelled", err)
		}
	}

	return apperrors.NewRateLimited(
		fmt.Sprintf("token buckets exhausted after %d attempts", maxAcquireAttempts))
}

// Remaining reports current token counts (conn, account, order). Test hook.
func (l *MultiLimiter) Remaining() (float64, float64, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.tokens, l.account.tokens, l.order.tokens
}
