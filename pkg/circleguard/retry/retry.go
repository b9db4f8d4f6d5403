// Package retry runs a call a fixed number of times with a fixed pause
// between attempts, retrying only the failures a Policy marks retryable.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultAttempts = 5
	DefaultInterval = 5 * time.Second
)

// ErrExhausted is matched by the error returned once every attempt failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

type Policy struct {
	Attempts  int
	Interval  time.Duration
	Retryable func(error) bool

	// OnRetry is called before each pause; attempt is 1-based.
	OnRetry func(attempt int, err error)
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ExhaustedError wraps the last failure after all attempts were used.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrExhausted, e.Last} }

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// policy runs out of attempts.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
		last = err
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return zero, err
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Last: last}
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fixed returns the standard policy: DefaultAttempts tries, DefaultInterval
// apart, retrying only errors for which retryable is true.
func Fixed(retryable func(error) bool) Policy {
	return Policy{
		Attempts:  DefaultAttempts,
		Interval:  DefaultInterval,
		Retryable: retryable,
	}
}
