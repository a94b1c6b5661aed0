package oracle

import (
	"context"
	"time"
)

// Policy is an explicit retry schedule, kept separate from the operation
// it wraps: how many attempts, and the delay seed. The delay before
// attempt n+1 is Initial << n (1s, 2s, 4s...), with no jitter, so the
// schedule is exact.
type Policy struct {
	MaxAttempts int
	Initial     time.Duration
}

// DefaultPolicy allows three attempts seeded at one second.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Initial: time.Second}
}

// Delay returns the pause taken after attempt n (0-indexed) fails.
func (p Policy) Delay(attempt int) time.Duration {
	return p.Initial << uint(attempt)
}

// Do runs op up to MaxAttempts times, sleeping Delay between attempts and
// honoring ctx cancellation. Every failure counts identically: the loop
// does not distinguish causes, it only counts attempts, and the last
// error is the one returned.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-time.After(p.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
