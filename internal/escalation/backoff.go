package escalation

import (
	"context"
	"time"
)

// commitBackoff mirrors internal/dispatch's all-or-nothing commit
// schedule: exponential backoff starting at 50ms, doubling up to 1s, 5
// tries total — reassignment is just as much an "atomic, both sides or
// neither" commit as an initial assignment (§4.5/§7).
var commitBackoff = []time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	200 * time.Millisecond,
	400 * time.Millisecond,
	time.Second,
}

func withCommitRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < len(commitBackoff); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(commitBackoff[attempt-1]):
			}
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}
