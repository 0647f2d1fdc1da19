// README: Circuit breaker guarding calls to repeatedly failing dependencies.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultThreshold is the number of consecutive failures that opens the circuit.
	DefaultThreshold = 5
	// DefaultOpenDuration is how long the circuit stays open before a trial call.
	DefaultOpenDuration = 60 * time.Second
)

// ErrBreakerOpen is returned without invoking the wrapped function while the
// circuit is open.
var ErrBreakerOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker tracks consecutive failures of a dependency. Once threshold
// failures accumulate it rejects calls for openDuration, then lets exactly
// one trial call through; success closes the circuit, failure re-opens it.
// Safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	state     breakerState
	failures  int
	openedAt  time.Time
	threshold int
	openFor   time.Duration
	now       func() time.Time
}

type BreakerOption func(*Breaker)

func WithThreshold(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

func WithOpenDuration(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.openFor = d
		}
	}
}

// WithClock replaces the time source, used by tests to step the cool-down.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

func NewBreaker(opts ...BreakerOption) *Breaker {
	b := &Breaker{
		threshold: DefaultThreshold,
		openFor:   DefaultOpenDuration,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes fn under the breaker's admission policy.
func (b *Breaker) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.openFor {
			return ErrBreakerOpen
		}
		// Cool-down elapsed: admit one trial call.
		b.state = stateHalfOpen
		return nil
	case stateHalfOpen:
		// A trial call is already in flight.
		return ErrBreakerOpen
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.state = stateClosed
		b.failures = 0
		return
	}
	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = b.now()
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}
