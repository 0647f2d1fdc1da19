package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrierSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	r := NewRetrier(WithSleep(noSleep))
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrierRecoversAfterFailures(t *testing.T) {
	calls := 0
	r := NewRetrier(WithRetries(3), WithSleep(noSleep))
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrierExhaustsBudget(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	r := NewRetrier(WithRetries(3), WithSleep(noSleep))
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls, "initial attempt plus 3 retries")
}

func TestRetrierBackoffDoubles(t *testing.T) {
	var delays []time.Duration
	r := NewRetrier(
		WithRetries(3),
		WithBackoff(500*time.Millisecond),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
	)
	_ = r.Do(context.Background(), func(ctx context.Context) error {
		return errors.New("always")
	})
	require.Equal(t, []time.Duration{
		500 * time.Millisecond,
		1000 * time.Millisecond,
		2000 * time.Millisecond,
	}, delays)
}

func TestRetrierHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	r := NewRetrier(WithSleep(func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}))
	err := r.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("fail then cancel")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }
