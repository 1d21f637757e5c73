package health

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy describes the adaptive retry applied to each request attempt,
// independent of circuit state. Parameters are immutable per run.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Base is the first backoff delay.
	Base time.Duration
	// Factor multiplies the delay between attempts.
	Factor float64
	// MaxDelay caps a single backoff sleep.
	MaxDelay time.Duration
	// Jitter randomizes each delay by up to +/- this amount so concurrent
	// callers do not retry in lockstep.
	Jitter time.Duration
}

// DefaultRetryPolicy matches the remote API client's historical tuning.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 4,
		Base:     200 * time.Millisecond,
		Factor:   2.0,
		MaxDelay: 5 * time.Second,
		Jitter:   50 * time.Millisecond,
	}
}

// backoff builds the go-retry backoff chain for one run: base * factor^n
// growth, jittered, capped, bounded by the attempt count.
func (p RetryPolicy) backoff() retry.Backoff {
	base := p.Base
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	factor := p.Factor
	if factor < 1 {
		factor = 2.0
	}
	next := float64(base)
	var b retry.Backoff = retry.BackoffFunc(func() (time.Duration, bool) {
		d := time.Duration(next)
		next *= factor
		return d, false
	})
	if p.Jitter > 0 {
		b = retry.WithJitter(p.Jitter, b)
	}
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	// WithMaxRetries counts retries after the first attempt.
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// Do runs fn with exponential backoff. fn signals a retryable outcome by
// wrapping its error with retry.RetryableError; any other error is surfaced
// immediately, as are context cancellations.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, p.backoff(), fn)
}

// Retryable marks err as transient for Do. Nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retry.RetryableError(err)
}
