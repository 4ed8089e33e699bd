// Package retry provides the bounded retry loop shared by every wait point:
// reachability checks, public IP polling, health polling and attachment polling.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted is returned when every attempt failed
var ErrExhausted = errors.New("retry budget exhausted")

// ErrInvalidPolicy is returned for non-positive attempts or delay
var ErrInvalidPolicy = errors.New("invalid retry policy")

// Policy is a fixed-delay retry budget
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Validate checks that the budget is usable
func (p Policy) Validate() error {
	if p.Attempts <= 0 {
		return fmt.Errorf("%w: attempts must be positive, got %d", ErrInvalidPolicy, p.Attempts)
	}
	if p.Delay <= 0 {
		return fmt.Errorf("%w: delay must be positive, got %s", ErrInvalidPolicy, p.Delay)
	}
	return nil
}

// Operation is one attempt; attempt starts at 1
type Operation func(ctx context.Context, attempt int) error

// NotifyFunc is called after a failed attempt that will be retried
type NotifyFunc func(attempt int, err error, next time.Duration)

// Retrier runs operations under a Policy
type Retrier struct {
	timer  backoff.Timer
	notify NotifyFunc
}

// Option configures a Retrier
type Option func(*Retrier)

// WithTimer replaces the wall-clock timer, mostly for tests
func WithTimer(t backoff.Timer) Option {
	return func(r *Retrier) {
		r.timer = t
	}
}

// WithNotify registers a callback for failed attempts
func WithNotify(fn NotifyFunc) Option {
	return func(r *Retrier) {
		r.notify = fn
	}
}

// New creates a Retrier
func New(opts ...Option) *Retrier {
	r := &Retrier{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Permanent marks err as not retryable; Do returns it immediately
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, or the policy is spent.
// It returns the number of attempts made. Exhaustion wraps both ErrExhausted and the last error.
func (r *Retrier) Do(ctx context.Context, p Policy, op Operation) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	attempts := 0
	var lastErr error

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(p.Attempts-1)),
		ctx,
	)

	notify := func(err error, next time.Duration) {
		if r.notify != nil {
			r.notify(attempts, err, next)
		}
	}

	err := backoff.RetryNotifyWithTimer(func() error {
		attempts++
		lastErr = op(ctx, attempts)
		return lastErr
	}, b, notify, r.timer)

	if err == nil {
		return attempts, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return attempts, ctxErr
	}
	var permanent *backoff.PermanentError
	if errors.As(lastErr, &permanent) {
		return attempts, err
	}
	return attempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
}
