package marketdata

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum spacing between outbound upstream calls,
// process-wide. Concurrent callers reserve slots in arrival order and each
// waits out its own gap, so no two underlying calls are issued less than
// minInterval apart. There is one Limiter per upstream dependency; every
// client funnels through it.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	next        time.Time // earliest instant the next call may go out

	now func() time.Time
}

// NewLimiter creates a limiter with the given minimum spacing between calls.
func NewLimiter(minInterval time.Duration) *Limiter {
	return &Limiter{minInterval: minInterval, now: time.Now}
}

// Throttle blocks until at least minInterval has elapsed since the previous
// reserved call, then returns. The slot is reserved before sleeping, so
// callers are spaced FIFO by arrival. A cancelled context abandons the wait
// but the reservation stays burned; the next caller still honors the spacing.
func (l *Limiter) Throttle(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	at := l.next
	if at.Before(now) {
		at = now
	}
	l.next = at.Add(l.minInterval)
	l.mu.Unlock()

	wait := at.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
