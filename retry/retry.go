// Package retry runs fallible operations with a bounded number of attempts
// and a linearly growing pause between them.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBaseInterval   = time.Second
	DefaultAttemptTimeout = 10 * time.Second
)

// Policy describes how an operation is retried.
//
// The pause before retry n (n starting at 1) is BaseInterval*n, so the
// default policy waits 1s, then 2s.
type Policy struct {
	MaxAttempts    int
	BaseInterval   time.Duration
	AttemptTimeout time.Duration

	// Notify is called after every failed attempt that will be retried.
	Notify func(attempt int, err error, next time.Duration)
	// Timer drives the pauses. nil means a real timer.
	Timer backoff.Timer
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		BaseInterval:   DefaultBaseInterval,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// Linear is a backoff.BackOff whose n-th pause is Base*n.
type Linear struct {
	Base    time.Duration
	attempt int64
}

func (l *Linear) NextBackOff() time.Duration {
	l.attempt++
	return l.Base * time.Duration(l.attempt)
}

func (l *Linear) Reset() {
	l.attempt = 0
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string   { return e.err.Error() }
func (e *permanentError) Unwrap() error   { return e.err }
func (e *permanentError) Permanent() bool { return true }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether any error in err's chain declares itself
// permanent through a Permanent() bool method.
func IsPermanent(err error) bool {
	var p interface{ Permanent() bool }
	if errors.As(err, &p) {
		return p.Permanent()
	}
	return false
}

// Do runs op until it succeeds, fails permanently, or the attempt budget is
// spent. The last failure is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff = &Linear{Base: p.BaseInterval}
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	var (
		result  T
		attempt int
	)

	operation := func() error {
		attempt++

		actx := ctx
		cancel := func() {}
		if p.AttemptTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		defer cancel()

		value, err := op(actx)
		if err != nil {
			if IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = value
		return nil
	}

	notify := func(err error, next time.Duration) {
		if p.Notify != nil {
			p.Notify(attempt, err, next)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, b, notify, p.Timer)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
