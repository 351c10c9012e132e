package pipeline

import (
	"context"
	"sync"
	"time"
)

// callGate enforces a minimum interval between model calls, bounding the
// request rate against the backend. A 2s interval caps the pipeline at 30
// calls per minute.
type callGate struct {
	interval time.Duration

	mu      sync.Mutex
	readyAt time.Time
}

func newCallGate(interval time.Duration) *callGate {
	return &callGate{interval: interval}
}

// wait blocks until the next call may fire, or the context expires.
func (g *callGate) wait(ctx context.Context) error {
	if g == nil || g.interval <= 0 {
		return nil
	}

	g.mu.Lock()
	now := time.Now()
	wait := g.readyAt.Sub(now)
	if wait < 0 {
		wait = 0
	}
	g.readyAt = now.Add(wait + g.interval)
	g.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
