// Package retry runs flaky operations under a retry policy with exponential
// backoff, a per-attempt timeout, and an optional overall deadline.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxRetries        = 3
	DefaultInitialDelay      = 1 * time.Second
	DefaultBackoffFactor     = 2.0
	DefaultPerAttemptTimeout = 5 * time.Minute

	// maxDelay caps a single backoff sleep.
	maxDelay = 15 * time.Minute
)

// Policy controls how Run retries a failing operation.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt, so an
	// operation runs at most MaxRetries+1 times.
	MaxRetries int

	// InitialDelay is the sleep before the first retry. The delay before
	// retry k is InitialDelay * BackoffFactor^(k-1), without jitter.
	InitialDelay time.Duration

	BackoffFactor float64

	// PerAttemptTimeout bounds each attempt. An attempt that exceeds it is
	// abandoned and retried; the overall budget keeps running. Zero means
	// no per-attempt bound beyond the overall deadline.
	PerAttemptTimeout time.Duration

	// OverallDeadline bounds the cumulative wall time of all attempts and
	// sleeps. Zero means no overall bound. When it expires, Run fails
	// immediately with a DeadlineError instead of starting another attempt.
	OverallDeadline time.Duration

	// Retryable classifies errors. Nil treats every error as retryable.
	// A non-retryable error fails the run immediately.
	Retryable func(error) bool
}

// DefaultPolicy mirrors the standard settings used across the pipeline.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:        DefaultMaxRetries,
		InitialDelay:      DefaultInitialDelay,
		BackoffFactor:     DefaultBackoffFactor,
		PerAttemptTimeout: DefaultPerAttemptTimeout,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = DefaultBackoffFactor
	}
	return p
}

// ExhaustedError reports that every allowed attempt failed with a retryable
// error. Cause is the last attempt's error.
type ExhaustedError struct {
	Attempts int
	Cause    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error { return e.Cause }

// AttemptTimeoutError marks a single attempt that exceeded the per-attempt
// timeout. It is always retryable.
type AttemptTimeoutError struct {
	Timeout time.Duration
}

func (e *AttemptTimeoutError) Error() string {
	return fmt.Sprintf("attempt timed out after %s", e.Timeout)
}

func (e *AttemptTimeoutError) Unwrap() error { return context.DeadlineExceeded }

// DeadlineError reports that the overall deadline expired, either mid-attempt
// or while waiting to retry. Cause is the last attempt's error, if any.
type DeadlineError struct {
	Deadline time.Duration
	Attempts int
	Cause    error
}

func (e *DeadlineError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("overall deadline %s exceeded after %d attempts", e.Deadline, e.Attempts)
	}
	return fmt.Sprintf("overall deadline %s exceeded after %d attempts: %v", e.Deadline, e.Attempts, e.Cause)
}

func (e *DeadlineError) Unwrap() error { return context.DeadlineExceeded }

type options struct {
	onRetry func(err error, attempt int)
}

// Option customizes a single Run call.
type Option func(*options)

// WithOnRetry registers an observer invoked once per failed attempt that will
// be retried, before the backoff sleep. The attempt argument is 1-based.
func WithOnRetry(fn func(err error, attempt int)) Option {
	return func(o *options) { o.onRetry = fn }
}

// Run executes op under the policy and returns the result, the number of
// attempts made, and the terminal error if all allowed attempts failed.
func Run[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), opts ...Option) (T, int, error) {
	var zero T
	p = p.withDefaults()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	runCtx := ctx
	if p.OverallDeadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.OverallDeadline)
		defer cancel()
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.InitialDelay
	expo.Multiplier = p.BackoffFactor
	expo.RandomizationFactor = 0
	expo.MaxInterval = maxDelay
	expo.MaxElapsedTime = 0

	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(p.MaxRetries)), runCtx)

	var (
		result       T
		attempts     int
		deadlineHit  bool
		nonRetryable bool
	)

	operation := func() error {
		if err := runCtx.Err(); err != nil {
			deadlineHit = ctx.Err() == nil
			return backoff.Permanent(err)
		}

		attempts++
		attemptCtx := runCtx
		cancelAttempt := func() {}
		if p.PerAttemptTimeout > 0 {
			attemptCtx, cancelAttempt = context.WithTimeout(runCtx, p.PerAttemptTimeout)
		}
		v, err := op(attemptCtx)
		cancelAttempt()
		if err == nil {
			result = v
			return nil
		}

		if runCtx.Err() != nil {
			deadlineHit = ctx.Err() == nil
			return backoff.Permanent(err)
		}
		if attemptCtx.Err() != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			// Only this attempt ran out of time; the overall budget is intact.
			return &AttemptTimeoutError{Timeout: p.PerAttemptTimeout}
		}
		if p.Retryable != nil && !p.Retryable(err) {
			nonRetryable = true
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, _ time.Duration) {
		if o.onRetry != nil {
			o.onRetry(err, attempts)
		}
	}

	err := backoff.RetryNotify(operation, bo, notify)
	if err == nil {
		return result, attempts, nil
	}

	switch {
	case ctx.Err() != nil:
		// Caller cancellation wins over any other classification.
		return zero, attempts, ctx.Err()
	case deadlineHit || runCtx.Err() != nil:
		return zero, attempts, &DeadlineError{Deadline: p.OverallDeadline, Attempts: attempts, Cause: unwrapContextCause(err)}
	case nonRetryable:
		return zero, attempts, err
	default:
		return zero, attempts, &ExhaustedError{Attempts: attempts, Cause: err}
	}
}

// unwrapContextCause drops a bare context error so DeadlineError does not
// report "context deadline exceeded" as its own cause.
func unwrapContextCause(err error) error {
	if err == context.DeadlineExceeded || err == context.Canceled {
		return nil
	}
	return err
}
