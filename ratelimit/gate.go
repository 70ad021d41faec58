package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Common errors.
var (
	ErrInvalidInterval = errors.New("interval must be positive")
)

// DefaultInterval is the minimum gap between store calls when none is
// configured. Matches the quota headroom the backing store needs in practice.
const DefaultInterval = 3 * time.Second

// Gate enforces a minimum wall-clock gap between consecutive operations.
// It is safe for concurrent use; concurrent callers serialize on the gate.
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	nowFunc   func() time.Time                           // for testing
	sleepFunc func(ctx context.Context, d time.Duration) error // for testing
}

// NewGate creates a gate with the given minimum interval between calls.
// A non-positive interval falls back to DefaultInterval.
func NewGate(interval time.Duration) *Gate {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Gate{
		interval:  interval,
		nowFunc:   time.Now,
		sleepFunc: sleepContext,
	}
}

// Interval returns the configured minimum gap.
func (g *Gate) Interval() time.Duration {
	return g.interval
}

// Wait blocks until the minimum interval has elapsed since the previous
// successful Wait, then records the call. The first call never blocks.
// Returns the context error if the context ends while waiting; a canceled
// wait does not consume the slot.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFunc()
	if !g.last.IsZero() {
		if wait := g.interval - now.Sub(g.last); wait > 0 {
			if err := g.sleepFunc(ctx, wait); err != nil {
				return err
			}
			now = g.nowFunc()
		}
	}

	g.last = now
	return nil
}

// NextAllowed returns the earliest instant the next Wait can return.
func (g *Gate) NextAllowed() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.last.IsZero() {
		return g.nowFunc()
	}
	return g.last.Add(g.interval)
}

// sleepContext sleeps for d or until the context ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
