// Retry with exponential backoff.
//
// Information Hiding:
// - Backoff algorithm hidden behind Policy.Delay
// - Sleep is cancellable and replaceable in tests

package retry

import (
	"context"
	"time"
)

// Policy holds attempt and backoff settings. It is immutable after construction.
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap for growth; zero means uncapped
}

// NewPolicy builds a policy; non-positive attempts collapse to a single attempt.
func NewPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay < 0 {
		baseDelay = 0
	}
	return Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, MaxDelay: maxDelay}
}

// Delay returns the backoff before the given retry (1-based: first retry => 1).
// The base delay doubles per retry: base, 2*base, 4*base.
func (p Policy) Delay(retry int) time.Duration {
	if retry <= 0 {
		return 0
	}
	d := p.BaseDelay * time.Duration(1<<(retry-1))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Attempt describes one call made by Do.
type Attempt struct {
	Number int // 1-based
	Err    error
}

// Options customises Do.
type Options struct {
	// Retryable decides whether err warrants another attempt. Nil retries everything.
	Retryable func(err error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(a Attempt, delay time.Duration)
	Sleep   Sleeper
}

// Do calls fn until it succeeds, returns a non-retryable error, or the policy
// is exhausted. The returned error is the last one fn produced, or the
// context error if the wait was interrupted.
func Do(ctx context.Context, p Policy, opts Options, fn func(ctx context.Context, attempt int) error) (int, error) {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := p.Delay(attempt - 1)
			if opts.OnRetry != nil {
				opts.OnRetry(Attempt{Number: attempt - 1, Err: lastErr}, delay)
			}
			if err := sleep(ctx, delay); err != nil {
				return attempt - 1, err
			}
		}

		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if opts.Retryable != nil && !opts.Retryable(err) {
			return attempt, err
		}
		if ctx.Err() != nil {
			return attempt, err
		}
	}
	return maxAttempts, lastErr
}
