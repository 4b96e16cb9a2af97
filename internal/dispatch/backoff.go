package dispatch

import (
	"context"
	"time"
)

// commitBackoff is the §4.2/§7 "all-or-nothing commit" retry schedule:
// exponential backoff starting at 50ms, doubling up to 1s, 5 tries total.
var commitBackoff = []time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	200 * time.Millisecond,
	400 * time.Millisecond,
	time.Second,
}

// withCommitRetry runs fn up to len(commitBackoff) times, sleeping the
// schedule between attempts, stopping early on success or ctx
// cancellation. The last error is returned if every attempt fails.
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
