// README: In-memory event bus for order-change notifications.
package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"relaxedrive/internal/types"
)

const DefaultBufferSize = 100

var ErrBusClosed = errors.New("event bus is closed")

type Type string

const (
	// TypeOrderChanged fires after any mutation of an order and re-triggers
	// dispatch planning.
	TypeOrderChanged Type = "order_changed"
)

type Event struct {
	Type       Type
	OrderID    types.ID
	OccurredAt time.Time
}

// Bus is a buffered in-memory channel bus for a single-process deployment.
// Publish is best-effort: when the buffer is full the event is dropped and
// logged rather than blocking the mutation path that produced it.
type Bus struct {
	ch     chan Event
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

type BusOption func(*Bus)

func WithBufferSize(size int) BusOption {
	return func(b *Bus) {
		if size > 0 {
			b.ch = make(chan Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		ch:     make(chan Event, DefaultBufferSize),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	select {
	case b.ch <- e:
		return nil
	default:
		b.logger.WarnContext(ctx, "event bus full, dropping event",
			slog.String("type", string(e.Type)),
			slog.String("order_id", string(e.OrderID)))
		return nil
	}
}

// Events returns the subscription channel. The bus supports a single
// consumer, the planning trigger.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.closed = true
	close(b.ch)
	return nil
}
