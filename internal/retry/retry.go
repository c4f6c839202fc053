// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy describes how an operation is retried.
type Policy struct {
	// Retries is the number of attempts after the first.
	Retries int
	// Delay is the pause between attempts.
	Delay time.Duration
	// Retryable reports whether err warrants another attempt. Nil retries
	// nothing.
	Retryable func(err error) bool
}

// Do calls op until it succeeds, returns an error Retryable rejects, or the
// retry budget is spent. The error from the last attempt is returned.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	delay := p.Delay
	if delay <= 0 {
		delay = time.Nanosecond
	}
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	b := goretry.WithMaxRetries(uint64(retries), goretry.NewConstant(delay))

	return goretry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if err != nil && p.Retryable != nil && p.Retryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}
