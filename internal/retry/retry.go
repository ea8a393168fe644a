package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrRejected is returned when an attempt succeeded but its result did not
// satisfy the acceptance predicate on the final try.
var ErrRejected = errors.New("result rejected")

// Policy is a bounded number of attempts with a fixed pause between them.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Notify is called before each retry with the failed attempt's error and number.
type Notify func(err error, attempt int, wait time.Duration)

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it returns a result accepted by accept, the attempts are
// used up, op returns a Permanent error, or ctx ends. A nil accept accepts
// every error-free result. The last result is returned alongside the error.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), accept func(T) bool, notify Notify) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	run := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err != nil {
			return v, err
		}
		if accept != nil && !accept(v) {
			return v, ErrRejected
		}
		return v, nil
	}

	var n backoff.Notify
	if notify != nil {
		n = func(err error, wait time.Duration) { notify(err, attempt, wait) }
	}
	return backoff.RetryNotifyWithData(run, b, n)
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func(context.Context) error, notify Notify) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, nil, notify)
	return err
}
