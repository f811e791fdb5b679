// Package retry runs an operation with a bounded attempt count, a per-attempt
// timeout and exponential backoff with jitter between attempts.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy bounds a retried call.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration // per attempt; 0 means no extra deadline

	// OnRetry is called before sleeping with the failed attempt number (1-based).
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Permanent marks an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Stop wraps err so Do returns it without further attempts.
func Stop(err error) error { return &Permanent{Err: err} }

// Do calls fn until it succeeds, returns a Permanent error, the parent context
// ends, or MaxAttempts is reached. It returns the number of attempts made.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err := fn(actx)
		cancel()
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		var perm *Permanent
		if errors.As(err, &perm) {
			return attempt, perm.Err
		}
		if ctx.Err() != nil || attempt == attempts {
			return attempt, lastErr
		}

		delay := Backoff(attempt, p.BaseDelay, p.MaxDelay)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt, lastErr
		case <-t.C:
		}
	}
	return attempts, lastErr
}

// Backoff returns base*2^(attempt-1) with ±25% jitter, capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	b := float64(base)
	if b <= 0 {
		b = float64(500 * time.Millisecond)
	}
	m := float64(max)
	if m <= 0 {
		m = float64(30 * time.Second)
	}
	delay := b * math.Pow(2, float64(attempt-1))
	delay += delay * 0.25 * (rand.Float64()*2 - 1)
	if delay > m {
		delay = m
	}
	return time.Duration(delay)
}
