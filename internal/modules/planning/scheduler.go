// README: Scheduler trigger runs the planner on a ticker and whenever an
// order-changed event arrives, then persists and broadcasts the snapshot.
package planning

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"relaxedrive/internal/event"
	"relaxedrive/internal/modules/order"
)

const DefaultTick = time.Minute

// PlanStore persists planner output onto order rows in a single
// transaction; a partial write is never visible.
type PlanStore interface {
	ApplyPlanning(ctx context.Context, updates []order.PlanningUpdate) error
}

// Broadcaster pushes snapshots to connected clients. Delivery is
// best-effort and must never block the trigger.
type Broadcaster interface {
	BroadcastPlanning(r *Result)
	BroadcastOrders(orders []order.Order)
}

// OrderLister supplies the refreshed active order list pushed alongside
// each planning snapshot.
type OrderLister interface {
	ListActive(ctx context.Context) ([]order.Order, error)
}

type Trigger struct {
	planner     *Planner
	store       PlanStore
	orders      OrderLister
	broadcaster Broadcaster
	bus         *event.Bus
	logger      *slog.Logger
	tick        time.Duration

	mu   sync.Mutex
	last *Result
}

type TriggerOption func(*Trigger)

func WithTick(d time.Duration) TriggerOption {
	return func(t *Trigger) {
		if d > 0 {
			t.tick = d
		}
	}
}

func WithBus(b *event.Bus) TriggerOption {
	return func(t *Trigger) { t.bus = b }
}

func WithBroadcaster(b Broadcaster) TriggerOption {
	return func(t *Trigger) { t.broadcaster = b }
}

func WithOrderLister(l OrderLister) TriggerOption {
	return func(t *Trigger) { t.orders = l }
}

func WithTriggerLogger(l *slog.Logger) TriggerOption {
	return func(t *Trigger) {
		if l != nil {
			t.logger = l
		}
	}
}

func NewTrigger(planner *Planner, store PlanStore, opts ...TriggerOption) *Trigger {
	t := &Trigger{
		planner: planner,
		store:   store,
		logger:  slog.Default(),
		tick:    DefaultTick,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run drives recomputation until the context is cancelled. The periodic
// tick and the event stream share the same path; overlapping causes are
// fine because each recompute replaces the snapshot wholesale.
func (t *Trigger) Run(ctx context.Context) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	var events <-chan event.Event
	if t.bus != nil {
		events = t.bus.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.recalculate(ctx, "tick")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Type == event.TypeOrderChanged {
				t.recalculate(ctx, "order_changed")
			}
		}
	}
}

func (t *Trigger) recalculate(ctx context.Context, cause string) {
	if _, err := t.RecalculateAndPersist(ctx); err != nil {
		t.logger.ErrorContext(ctx, "planning recompute failed",
			slog.String("cause", cause), slog.String("error", err.Error()))
	}
}

// RecalculateAndPersist computes a full snapshot, writes risk level and
// suggested driver onto every in-window order in one transaction, then
// broadcasts the snapshot and the refreshed active order list. A
// persistence failure skips both broadcasts and reports the error; the
// snapshot itself was already complete in memory.
func (t *Trigger) RecalculateAndPersist(ctx context.Context) (*Result, error) {
	result, err := t.planner.ComputePlan(ctx)
	if err != nil {
		return nil, err
	}

	updates := make([]order.PlanningUpdate, 0, len(result.OrderRows))
	for _, row := range result.OrderRows {
		updates = append(updates, order.PlanningUpdate{
			OrderID:           row.OrderID,
			RiskLevel:         row.RiskLevel,
			SuggestedDriverID: row.SuggestedDriverID,
		})
	}
	if err := t.store.ApplyPlanning(ctx, updates); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.last = result
	t.mu.Unlock()

	if t.broadcaster != nil {
		t.broadcaster.BroadcastPlanning(result)
		if t.orders != nil {
			active, err := t.orders.ListActive(ctx)
			if err != nil {
				t.logger.WarnContext(ctx, "active order list for broadcast failed",
					slog.String("error", err.Error()))
			} else {
				t.broadcaster.BroadcastOrders(active)
			}
		}
	}
	return result, nil
}

// Latest returns the most recent snapshot, or nil before the first
// successful recompute.
func (t *Trigger) Latest() *Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
