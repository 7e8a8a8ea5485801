package misc

import (
	"context"
	"time"
)

// DefaultBackoff is the schedule used for storage operations and opt-in transport retries.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
}

// RetryNotice describes a failed attempt that is about to be retried.
type RetryNotice struct {
	Err     error
	Attempt int
	Delay   time.Duration
}

// Retry runs op once, then once more after each delay while isRetryable(err) holds.
// An empty schedule means a single attempt.
func Retry(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func() error) error {
	return RetryNotify(ctx, delays, isRetryable, op, nil)
}

// RetryNotify is Retry that calls notify, when non-nil, before each wait.
// Attempt counts from 1; the final failure is returned, not notified.
func RetryNotify(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func() error, notify func(RetryNotice)) error {
	var err error
	for i := 0; ; i++ {
		if err = op(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i >= len(delays) || !isRetryable(err) {
			return err
		}
		if notify != nil {
			notify(RetryNotice{Err: err, Attempt: i + 1, Delay: delays[i]})
		}
		t := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
