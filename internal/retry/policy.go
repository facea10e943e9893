package retry

import (
	"context"
	"time"
)

// Policy retries a failed call a bounded number of times with a fixed wait
// before each retry. It is immutable after construction.
type Policy struct {
	Delay      time.Duration
	MaxRetries int // attempts after the first failure
}

// Fixed waits delay before each of maxRetries retries. A zero delay is kept
// as is, which tests use to avoid sleeping.
func Fixed(delay time.Duration, maxRetries int) Policy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if delay < 0 {
		delay = 0
	}
	return Policy{Delay: delay, MaxRetries: maxRetries}
}

// Do calls fn until it succeeds or the retries are used up, sleeping Delay
// before each retry. onRetry, when non-nil, sees each failure that is about
// to be retried. The last error is returned. Cancelling ctx stops the wait
// and returns ctx.Err().
func (p Policy) Do(ctx context.Context, fn func(context.Context) error, onRetry func(attempt int, err error)) error {
	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if onRetry != nil {
				onRetry(attempt, err)
			}
			if werr := Sleep(ctx, p.Delay); werr != nil {
				return werr
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
