package retry

import (
	"context"
	"time"
)

// Policy describes a capped exponential backoff retry schedule. Attempts is
// the total number of tries including the first; the delay before retry n is
// BaseDelay * 2^(n-1), capped at MaxDelay.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy returns the schedule used for transient store and upstream
// failures: three attempts with a one second base delay
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: time.Second,
		MaxDelay:  30 * time.Second,
	}
}

// Sleeper waits for the given duration or until the context is done. Tests
// inject a recording implementation to verify the schedule without waiting.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn until it succeeds or the schedule is exhausted, returning the
// last error. A context cancellation during a backoff wait aborts the loop.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.DoWithSleeper(ctx, ContextSleep, fn)
}

// DoWithSleeper is Do with an injected wait function
func (p Policy) DoWithSleeper(ctx context.Context, sleep Sleeper, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.Delay(attempt)); err != nil {
				return err
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// Delay returns the wait before the given retry attempt (attempt 1 is the
// first retry)
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	// Cap the exponent to avoid overflow
	if attempt > 30 {
		return p.MaxDelay
	}

	delay := p.BaseDelay * time.Duration(1<<uint(attempt-1))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
