// Package retry runs a fallible operation a bounded number of times with
// exponential backoff between attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is immutable once built by the config layer.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy is 3 attempts waiting 0.8s then 1.6s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 800 * time.Millisecond}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait after failed attempt i (0-indexed).
func (p Policy) Delay(i int) time.Duration {
	return p.BaseDelay << uint(i)
}

// TotalDelay is the sum of every wait between attempts.
func (p Policy) TotalDelay() time.Duration {
	var total time.Duration
	for i := 0; i < p.attempts()-1; i++ {
		total += p.Delay(i)
	}
	return total
}

// Notify is called after each failed attempt that will be retried.
type Notify func(attempt int, err error, wait time.Duration)

// Executor carries the timer and notification hooks; the zero value is usable.
type Executor struct {
	Timer  backoff.Timer
	Notify Notify
}

// Do runs op until it succeeds or policy.MaxAttempts attempts have failed.
// The last attempt's error is returned unchanged.
func Do[T any](ctx context.Context, ex *Executor, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	if ex == nil {
		ex = &Executor{}
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		return op(ctx)
	}

	var notify backoff.Notify
	if ex.Notify != nil {
		notify = func(err error, wait time.Duration) {
			ex.Notify(attempt, err, wait)
		}
	}

	return backoff.RetryNotifyWithTimerAndData(operation, policy.backOff(ctx), notify, ex.Timer)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = p.Delay(p.attempts())
	eb.MaxElapsedTime = 0
	eb.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.attempts()-1)), ctx)
}

// Permanent stops the retry loop; Do returns the wrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
