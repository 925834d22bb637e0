package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/logger"
)

const (
	// Offsets larger than this are treated as bogus samples and discarded.
	maxClockOffset = 30 * time.Second
	// A fresh sample is taken once the last accepted one is older than this.
	clockResyncInterval = 10 * time.Second
	// Retry delay after a failed or rejected sample.
	clockRetryDelay = 5 * time.Second
)

// TimeFetcher returns the exchange server time in unix milliseconds.
type TimeFetcher func(ctx context.Context) (int64, error)

// ClockSync maintains a signed millisecond offset between local and server
// time for timestamp-based request signing. A failed fetch never blocks the
// caller; the last known offset is reused and an early retry is scheduled.
type ClockSync struct {
	mu         sync.Mutex
	fetch      TimeFetcher
	offsetMs   int64
	nextSyncAt time.Time
	now        func() time.Time
}

func NewClockSync(fetch TimeFetcher) *ClockSync {
	return &ClockSync{fetch: fetch, now: time.Now}
}

// Timestamp returns the server-corrected unix millisecond timestamp,
// resynchronizing first when the stored offset is stale.
func (c *ClockSync) Timestamp(ctx context.Context) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.now().Before(c.nextSyncAt) {
		c.syncLocked(ctx)
	}
	return c.now().UnixMilli() + c.offsetMs
}

// OffsetMillis returns the currently stored offset.
func (c *ClockSync) OffsetMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offsetMs
}

func (c *ClockSync) syncLocked(ctx context.Context) {
	start := c.now()
	serverMs, err := c.fetch(ctx)
	if err != nil {
		logger.Warn("clock sync failed, reusing last offset",
			"error", err, "offset_ms", c.offsetMs)
		c.nextSyncAt = c.now().Add(clockRetryDelay)
		return
	}

	latency := c.now().Sub(start)
	offset := serverMs - (start.UnixMilli() + latency.Milliseconds()/2)

	if offset > maxClockOffset.Milliseconds() || offset < -maxClockOffset.Milliseconds() {
		logger.Warn("clock sample rejected, offset out of tolerance",
			"offset_ms", offset, "kept_ms", c.offsetMs)
		c.nextSyncAt = c.now().Add(clockRetryDelay)
		return
	}

	c.offsetMs = offset
	c.nextSyncAt = c.now().Add(clockResyncInterval)
}
