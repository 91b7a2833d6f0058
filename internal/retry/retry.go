// Package retry implements the outbound retry policy for external service
// calls (recognition, enhancement, object-store uploads). Only failures
// explicitly marked transient are retried; everything else fails on the
// first attempt. Delays follow a doubling schedule starting from a base
// delay, computed by a cenkalti/backoff exponential policy with jitter
// disabled so the schedule is deterministic and testable.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes how many times an operation may run and how long to wait
// between attempts. The n-th wait is BaseDelay * 2^(n-1).
type Policy struct {
	// MaxAttempts is the total number of tries, including the first one.
	// Values < 1 are treated as 1 (no retries).
	MaxAttempts int

	// BaseDelay is the wait before the second attempt; it doubles after
	// every subsequent failure.
	BaseDelay time.Duration

	// Notify, when non-nil, is called before each wait with the error that
	// caused the retry, the attempt number that failed (1-based), and the
	// upcoming delay. Used for logging and for asserting the schedule in
	// tests.
	Notify func(err error, attempt int, delay time.Duration)
}

// transientError marks an error as retriable.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so Do will retry it. Rate-limit and
// service-unavailable responses from external collaborators should be
// wrapped this way by the client that detects them.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked
// retriable via Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// ExhaustedError is returned when every permitted attempt failed with a
// transient error. It unwraps to the last attempt's error so callers can
// still inspect the underlying cause.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsExhausted reports whether err represents exhausted retries, as opposed
// to a non-retriable failure. The distinction drives user messaging.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

// sleepFn is a seam so tests can observe delays without sleeping.
var sleepFn = sleepCtx

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs op up to p.MaxAttempts times. A nil error stops immediately with
// the result. A non-transient error stops immediately and is returned as-is.
// A transient error schedules the next attempt after the policy delay; when
// attempts run out, Do returns an *ExhaustedError wrapping the last failure.
// Context cancellation aborts the wait and returns the context error.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	// Deterministic doubling schedule: base, 2*base, 4*base, ...
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = p.BaseDelay << 16
	bo.Reset()

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		last = err
		if attempt == attempts {
			break
		}
		delay := bo.NextBackOff()
		if p.Notify != nil {
			p.Notify(err, attempt, delay)
		}
		if err := sleepFn(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Last: last}
}
