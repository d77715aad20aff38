package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted is returned when every attempt failed with a retryable error.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// Wait returns how long to sleep after err and whether err is retryable.
	Wait func(err error) (time.Duration, bool)
	// Timer is used to sleep between attempts, nil means a real timer.
	Timer backoff.Timer
}

// errorBackOff returns the wait duration of the last failed attempt.
type errorBackOff struct {
	wait func(error) (time.Duration, bool)
	last error
}

func (b *errorBackOff) NextBackOff() time.Duration {
	d, ok := b.wait(b.last)
	if !ok {
		return backoff.Stop
	}
	return d
}

func (b *errorBackOff) Reset() {
	b.last = nil
}

// Do runs fn until it succeeds, fails with a non retryable error or the
// policy runs out of attempts. No wait is performed after the last attempt.
func Do(ctx context.Context, p Policy, fn func() error, notify func(attempt int, err error, wait time.Duration)) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	wait := p.Wait
	if wait == nil {
		wait = func(error) (time.Duration, bool) { return 0, false }
	}

	eb := &errorBackOff{wait: wait}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)), ctx)

	var attempt int
	operation := func() error {
		attempt++
		err := fn()
		eb.last = err
		if err == nil {
			return nil
		}
		if _, ok := wait(err); !ok {
			return backoff.Permanent(err)
		}
		return err
	}
	onRetry := func(err error, d time.Duration) {
		if notify != nil {
			notify(attempt, err, d)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, b, onRetry, p.Timer)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if _, ok := wait(err); ok {
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
	}
	return err
}
