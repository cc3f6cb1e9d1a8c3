package generator

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// Gate bounds concurrent model calls and enforces a minimum pause between
// pipeline stages. One gate is shared by every job in the process so total
// upstream pressure stays bounded no matter how many jobs run.
type Gate struct {
	sem   *semaphore.Weighted
	delay time.Duration
}

// NewGate creates a gate allowing maxConcurrent simultaneous calls with the
// given inter-stage delay. A non-positive maxConcurrent allows one call at
// a time.
func NewGate(maxConcurrent int64, delay time.Duration) *Gate {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Gate{
		sem:   semaphore.NewWeighted(maxConcurrent),
		delay: delay,
	}
}

// Acquire blocks until a call slot is free or ctx is canceled.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release returns a call slot.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// Pause waits the configured inter-stage delay, returning early if ctx is
// canceled.
func (g *Gate) Pause(ctx context.Context) error {
	if g.delay <= 0 {
		return nil
	}

	t := time.NewTimer(g.delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
