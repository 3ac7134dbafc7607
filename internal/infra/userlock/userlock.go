// Package userlock serializes mutations of a user's balance and history.
//
// Two lockers are provided. Global guards every user with one semaphore and
// is kept as the baseline: it is correct but makes unrelated users wait for
// each other. PerUser keeps one semaphore per user id, so only callers working
// on the same user contend. Waiters on a semaphore are served in arrival order.
package userlock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	ErrTimeout       = errors.New("lock wait timed out")
	ErrUnknownPolicy = errors.New("unknown lock policy")
)

// Locker runs fn with exclusive access to one user's ledger entries.
// The lock is released however fn exits, panics included, and fn's error is
// returned as is. fn is not run when the lock could not be acquired.
type Locker interface {
	WithUserLock(ctx context.Context, userID uint64, fn func() error) error
}

type Policy string

const (
	PolicyGlobal  Policy = "global"
	PolicyPerUser Policy = "per-user"
)

func (p Policy) String() string { return string(p) }

func (p *Policy) UnmarshalText(b []byte) error {
	switch v := Policy(strings.ToLower(strings.TrimSpace(string(b)))); v {
	case PolicyGlobal, PolicyPerUser:
		*p = v

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, string(b))
	}
}

type options struct {
	waitTimeout time.Duration
	observe     func(wait time.Duration)
}

type Option func(*options)

// WithWaitTimeout bounds how long a caller waits for the lock. Zero means
// wait until the caller's context ends.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) { o.waitTimeout = d }
}

// WithWaitObserver reports how long every acquisition attempt waited.
func WithWaitObserver(f func(wait time.Duration)) Option {
	return func(o *options) { o.observe = f }
}

func New(p Policy, opts ...Option) (Locker, error) {
	switch p {
	case PolicyGlobal:
		return NewGlobal(opts...), nil
	case PolicyPerUser:
		return NewPerUser(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, string(p))
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	return o
}

func runLocked(ctx context.Context, sem *semaphore.Weighted, o options, fn func() error) error {
	acqCtx := ctx
	if o.waitTimeout > 0 {
		var cancel context.CancelFunc

		acqCtx, cancel = context.WithTimeout(ctx, o.waitTimeout)
		defer cancel()
	}

	start := time.Now()
	err := sem.Acquire(acqCtx, 1)

	if o.observe != nil {
		o.observe(time.Since(start))
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}

		return fmt.Errorf("acquire lock: %w", err)
	}
	defer sem.Release(1)

	return fn()
}
