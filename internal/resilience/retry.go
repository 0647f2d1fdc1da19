// README: Retry-with-backoff wrapper for flaky network dependencies.
package resilience

import (
	"context"
	"time"
)

const (
	// DefaultRetries is how many additional attempts follow the first call.
	DefaultRetries = 3
	// DefaultBackoff is the delay before the first retry; it doubles per attempt.
	DefaultBackoff = 500 * time.Millisecond
)

// Retrier re-runs a failing function with exponential backoff. The zero
// value is not usable; construct with NewRetrier.
type Retrier struct {
	retries int
	backoff time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

type RetrierOption func(*Retrier)

func WithRetries(n int) RetrierOption {
	return func(r *Retrier) {
		if n >= 0 {
			r.retries = n
		}
	}
}

func WithBackoff(d time.Duration) RetrierOption {
	return func(r *Retrier) {
		if d > 0 {
			r.backoff = d
		}
	}
}

// WithSleep replaces the real sleep, used by tests to avoid waiting.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *Retrier) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

func NewRetrier(opts ...RetrierOption) *Retrier {
	r := &Retrier{
		retries: DefaultRetries,
		backoff: DefaultBackoff,
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs fn up to retries+1 times, sleeping backoff*2^attempt between
// attempts. The last error is returned after the budget is exhausted.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var last error
	delay := r.backoff
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}
		if last = fn(ctx); last == nil {
			return nil
		}
	}
	return last
}

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
