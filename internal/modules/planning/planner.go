// README: Dispatch planner ranks eligible drivers by pickup ETA and flags
// at-risk orders inside a rolling look-ahead window. It proposes, never
// assigns.
package planning

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"relaxedrive/internal/modules/driver"
	"relaxedrive/internal/modules/order"
	"relaxedrive/internal/routing"
	"relaxedrive/internal/types"
)

const (
	DefaultWindow          = 60 * time.Minute
	DefaultFarETAThreshold = 25 * time.Minute
	DefaultTopDrivers      = 5
)

// OrderSource lists scheduled and assigned orders whose pickup falls in the
// window.
type OrderSource interface {
	ListInWindow(ctx context.Context, from, to time.Time) ([]order.Order, error)
}

// DriverSource yields the currently eligible driver pool.
type DriverSource interface {
	Eligible(ctx context.Context, now time.Time) ([]driver.Driver, error)
}

// Router supplies ETAs; degraded zero routes exclude a candidate rather
// than failing the pass.
type Router interface {
	Route(ctx context.Context, origin, destination string) routing.Route
}

type Planner struct {
	orders  OrderSource
	drivers DriverSource
	router  Router
	logger  *slog.Logger
	now     func() time.Time

	window     time.Duration
	farETA     time.Duration
	topDrivers int
}

type PlannerOption func(*Planner)

func WithWindow(d time.Duration) PlannerOption {
	return func(p *Planner) {
		if d > 0 {
			p.window = d
		}
	}
}

func WithFarETAThreshold(d time.Duration) PlannerOption {
	return func(p *Planner) {
		if d > 0 {
			p.farETA = d
		}
	}
}

func WithTopDrivers(n int) PlannerOption {
	return func(p *Planner) {
		if n > 0 {
			p.topDrivers = n
		}
	}
}

func WithLogger(l *slog.Logger) PlannerOption {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock replaces the time source, used by tests.
func WithClock(now func() time.Time) PlannerOption {
	return func(p *Planner) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPlanner(orders OrderSource, drivers DriverSource, router Router, opts ...PlannerOption) *Planner {
	p := &Planner{
		orders:     orders,
		drivers:    drivers,
		router:     router,
		logger:     slog.Default(),
		now:        time.Now,
		window:     DefaultWindow,
		farETA:     DefaultFarETAThreshold,
		topDrivers: DefaultTopDrivers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ComputePlan builds a planning snapshot for [now, now+window]. The result
// is pure: two consecutive runs with no intervening order change produce
// identical rows.
func (p *Planner) ComputePlan(ctx context.Context) (*Result, error) {
	now := p.now()
	start, end := now, now.Add(p.window)

	orders, err := p.orders.ListInWindow(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list orders in window: %w", err)
	}
	pool, err := p.drivers.Eligible(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list eligible drivers: %w", err)
	}

	rows := make([]OrderRow, len(orders))
	var wg sync.WaitGroup
	for i := range orders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rows[i] = p.planOrder(ctx, &orders[i], pool)
		}(i)
	}
	wg.Wait()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].PickupAt.Equal(rows[j].PickupAt) {
			return rows[i].PickupAt.Before(rows[j].PickupAt)
		}
		return rows[i].OrderID < rows[j].OrderID
	})

	var risky []RiskyOrder
	for _, r := range rows {
		if r.Reason != ReasonNone {
			risky = append(risky, RiskyOrder{OrderID: r.OrderID, Reason: r.Reason, RiskLevel: r.RiskLevel})
		}
	}

	unassigned := 0
	for _, o := range orders {
		if o.DriverID == nil {
			unassigned++
		}
	}

	return &Result{
		WindowStart:      start,
		WindowEnd:        end,
		OrdersCount:      len(orders),
		DriversAvailable: len(pool),
		Shortage:         unassigned > 0 && len(pool) < unassigned,
		RiskyOrders:      risky,
		OrderRows:        rows,
	}, nil
}

// planOrder scores one order against the pool. ETA lookups run sequentially
// per order because ranking depends on the complete candidate set.
func (p *Planner) planOrder(ctx context.Context, o *order.Order, pool []driver.Driver) OrderRow {
	row := OrderRow{OrderID: o.ID, PickupAt: o.PickupAt, RiskLevel: order.RiskLow}

	// Manually dispatched orders opt out of suggestions and risk scoring.
	if o.ManualAssignment {
		return row
	}

	tripETA := p.tripETA(ctx, o)

	var candidates []Suggestion
	for i := range pool {
		d := &pool[i]
		if !d.MatchesCarType(o.PreferredCarType) {
			continue
		}
		eta, ok := p.pickupETA(ctx, d, o.PickupAddress)
		if !ok {
			continue
		}
		candidates = append(candidates, Suggestion{
			DriverID:         d.ID,
			ETAPickupMinutes: eta,
			ETATripMinutes:   tripETA,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ETAPickupMinutes != candidates[j].ETAPickupMinutes {
			return candidates[i].ETAPickupMinutes < candidates[j].ETAPickupMinutes
		}
		return candidates[i].DriverID < candidates[j].DriverID
	})
	if len(candidates) > p.topDrivers {
		candidates = candidates[:p.topDrivers]
	}
	row.SuggestedDrivers = candidates

	far := float64(p.farETA) / float64(time.Minute)
	switch {
	case len(candidates) == 0:
		row.Reason = ReasonNoDriver
		row.RiskLevel = order.RiskHigh
	case candidates[0].ETAPickupMinutes > far:
		row.Reason = ReasonFarDriver
		row.RiskLevel = order.RiskMedium
		id := candidates[0].DriverID
		row.SuggestedDriverID = &id
	default:
		id := candidates[0].DriverID
		row.SuggestedDriverID = &id
	}

	// An already-assigned driver sitting beyond the threshold flags the
	// order even when a closer alternative exists.
	if o.DriverID != nil && row.Reason == ReasonNone {
		if eta, ok := p.assignedETA(ctx, *o.DriverID, pool, o.PickupAddress); ok && eta > far {
			row.Reason = ReasonFarDriver
			row.RiskLevel = order.RiskMedium
		}
	}
	return row
}

func (p *Planner) pickupETA(ctx context.Context, d *driver.Driver, pickupAddress string) (float64, bool) {
	pos := d.Position()
	if pos == nil {
		return 0, false
	}
	route := p.router.Route(ctx, fmt.Sprintf("%f,%f", pos.Lat, pos.Lng), pickupAddress)
	if route.Unknown() {
		return 0, false
	}
	return route.DurationMinutes, true
}

func (p *Planner) tripETA(ctx context.Context, o *order.Order) float64 {
	route := p.router.Route(ctx, o.PickupAddress, o.DropoffAddress)
	return route.DurationMinutes
}

func (p *Planner) assignedETA(ctx context.Context, id types.ID, pool []driver.Driver, pickupAddress string) (float64, bool) {
	for i := range pool {
		if pool[i].ID == id {
			return p.pickupETA(ctx, &pool[i], pickupAddress)
		}
	}
	return 0, false
}
