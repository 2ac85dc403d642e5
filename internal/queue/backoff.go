package queue

import (
	"context"
	"time"
)

// MaxBackoff caps the reconnect delay of the broker loops.
const MaxBackoff = 30 * time.Second

// Sleep waits for d and reports false if ctx ended first.
func Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// NextBackoff doubles d until it reaches MaxBackoff.
func NextBackoff(d time.Duration) time.Duration {
	if d < MaxBackoff {
		return min(d*2, MaxBackoff)
	}
	return d
}
