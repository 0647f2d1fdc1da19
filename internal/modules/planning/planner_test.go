// README: Planner ranking, risk classification, and trigger tests.
package planning

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"relaxedrive/internal/event"
	"relaxedrive/internal/modules/driver"
	"relaxedrive/internal/modules/order"
	"relaxedrive/internal/routing"
	"relaxedrive/internal/types"
)

var planNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeOrders struct {
	orders []order.Order
	err    error
}

func (f *fakeOrders) ListInWindow(ctx context.Context, from, to time.Time) ([]order.Order, error) {
	return f.orders, f.err
}

type fakePool struct {
	drivers []driver.Driver
}

func (f *fakePool) Eligible(ctx context.Context, now time.Time) ([]driver.Driver, error) {
	return f.drivers, nil
}

// fakeRouter resolves ETAs from a map keyed by origin; unmapped origins
// degrade to the unknown route.
type fakeRouter struct {
	etaByOrigin map[string]float64
}

func (f *fakeRouter) Route(ctx context.Context, origin, destination string) routing.Route {
	if eta, ok := f.etaByOrigin[origin]; ok {
		return routing.Route{DistanceKm: eta, DurationMinutes: eta}
	}
	return routing.Route{}
}

func posKey(lat, lng float64) string {
	return fmt.Sprintf("%f,%f", lat, lng)
}

func atPosition(id types.ID, lat, lng float64, carType *string) driver.Driver {
	return driver.Driver{ID: id, Role: driver.RoleDriver, Lat: &lat, Lng: &lng, Available: true, CarType: carType}
}

func scheduledOrder(id types.ID, offset time.Duration) order.Order {
	return order.Order{
		ID:             id,
		Status:         order.StatusScheduled,
		PickupAt:       planNow.Add(offset),
		PickupAddress:  "1 Main St",
		DropoffAddress: "2 Oak Ave",
		TripType:       order.TripOneWay,
	}
}

func newTestPlanner(orders []order.Order, drivers []driver.Driver, etas map[string]float64, opts ...PlannerOption) *Planner {
	base := []PlannerOption{WithClock(func() time.Time { return planNow })}
	return NewPlanner(
		&fakeOrders{orders: orders},
		&fakePool{drivers: drivers},
		&fakeRouter{etaByOrigin: etas},
		append(base, opts...)...,
	)
}

func TestPlannerNoDriver(t *testing.T) {
	p := newTestPlanner([]order.Order{scheduledOrder("o1", 10*time.Minute)}, nil, nil)

	res, err := p.ComputePlan(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(res.OrderRows) != 1 {
		t.Fatalf("expected one row, got %d", len(res.OrderRows))
	}
	row := res.OrderRows[0]
	if row.Reason != ReasonNoDriver || row.RiskLevel != order.RiskHigh {
		t.Fatalf("expected no_driver/high, got %s/%s", row.Reason, row.RiskLevel)
	}
	if row.SuggestedDriverID != nil {
		t.Fatal("no driver means no suggestion")
	}
	if len(res.RiskyOrders) != 1 || res.RiskyOrders[0].Reason != ReasonNoDriver {
		t.Fatalf("unexpected risky orders: %+v", res.RiskyOrders)
	}
	if !res.Shortage {
		t.Fatal("one unassigned order and zero drivers is a shortage")
	}
}

func TestPlannerFarDriver(t *testing.T) {
	d := atPosition("d1", 40, 0, nil)
	etas := map[string]float64{posKey(40, 0): 40}

	p := newTestPlanner([]order.Order{scheduledOrder("o1", 30*time.Minute)}, []driver.Driver{d}, etas)
	res, err := p.ComputePlan(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	row := res.OrderRows[0]
	if row.Reason != ReasonFarDriver || row.RiskLevel != order.RiskMedium {
		t.Fatalf("expected far_driver/medium, got %s/%s", row.Reason, row.RiskLevel)
	}
	if row.SuggestedDriverID == nil || *row.SuggestedDriverID != "d1" {
		t.Fatal("the far driver is still the suggestion")
	}
}

func TestPlannerNearDriverIsLowRisk(t *testing.T) {
	d := atPosition("d1", 40, 0, nil)
	etas := map[string]float64{posKey(40, 0): 10}

	p := newTestPlanner([]order.Order{scheduledOrder("o1", 30*time.Minute)}, []driver.Driver{d}, etas)
	res, err := p.ComputePlan(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	row := res.OrderRows[0]
	if row.Reason != ReasonNone || row.RiskLevel != order.RiskLow {
		t.Fatalf("expected low risk, got %s/%s", row.Reason, row.RiskLevel)
	}
	if row.SuggestedDriverID == nil || *row.SuggestedDriverID != "d1" {
		t.Fatal("expected d1 suggested")
	}
	if len(res.RiskyOrders) != 0 {
		t.Fatalf("no risky orders expected: %+v", res.RiskyOrders)
	}
	if res.Shortage {
		t.Fatal("one driver covers one order")
	}
}

func TestPlannerManualAssignmentSkipsScoring(t *testing.T) {
	o := scheduledOrder("o1", 10*time.Minute)
	o.ManualAssignment = true

	// Zero drivers would normally be high risk.
	p := newTestPlanner([]order.Order{o}, nil, nil)
	res, err := p.ComputePlan(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	row := res.OrderRows[0]
	if row.RiskLevel != order.RiskLow || row.Reason != ReasonNone {
		t.Fatalf("manual assignment must stay low risk, got %s/%s", row.RiskLevel, row.Reason)
	}
	if row.SuggestedDriverID != nil || len(row.SuggestedDrivers) != 0 {
		t.Fatal("manual assignment yields no suggestions")
	}
	if len(res.RiskyOrders) != 0 {
		t.Fatal("manual assignment never appears risky")
	}
}

func TestPlannerCarTypeFilter(t *testing.T) {
	suv, sedan := "SUV", "sedan"
	o := scheduledOrder("o1", 30*time.Minute)
	o.PreferredCarType = &suv

	drivers := []driver.Driver{
		atPosition("near-sedan", 40, 0, &sedan),
		atPosition("far-suv", 41, 0, &suv),
	}
	etas := map[string]float64{
		posKey(40, 0): 5,
		posKey(41, 0): 30,
	}

	p := newTestPlanner([]order.Order{o}, drivers, etas)
	res, err := p.ComputePlan(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	row := res.OrderRows[0]
	if row.SuggestedDriverID == nil || *row.SuggestedDriverID != "far-suv" {
		t.Fatalf("car type filter should leave only the SUV, got %+v", row.SuggestedDriverID)
	}
	if row.Reason != ReasonFarDriver || row.RiskLevel != order.RiskMedium {
		t.Fatalf("30-minute SUV exceeds the threshold, got %s/%s", row.Reason, row.RiskLevel)
	}
}

func TestPlannerTopDriversRanking(t *testing.T) {
	var drivers []driver.Driver
	etas := map[string]float64{}
	for i := 1; i <= 7; i++ {
		lat := float64(i)
		drivers = append(drivers, atPosition(types.ID(fmt.Sprintf("d%d", i)), lat, 0, nil))
		etas[posKey(lat, 0)] = float64(i)
	}

	p := newTestPlanner([]order.Order{scheduledOrder("o1", 30*time.Minute)}, drivers, etas)
	res, err := p.ComputePlan(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	row := res.OrderRows[0]
	if len(row.SuggestedDrivers) != DefaultTopDrivers {
		t.Fatalf("expected top %d, got %d", DefaultTopDrivers, len(row.SuggestedDrivers))
	}
	for i, s := range row.SuggestedDrivers {
		want := float64(i + 1)
		if s.ETAPickupMinutes != want {
			t.Fatalf("rank %d: eta %v, want %v", i, s.ETAPickupMinutes, want)
		}
	}
	if row.SuggestedDriverID == nil || *row.SuggestedDriverID != "d1" {
		t.Fatal("nearest driver becomes the suggestion")
	}
}

func TestPlannerUnknownETAExcludesDriver(t *testing.T) {
	// Driver position maps to no route, so the gateway degraded.
	d := atPosition("d1", 40, 0, nil)
	p := newTestPlanner([]order.Order{scheduledOrder("o1", 30*time.Minute)}, []driver.Driver{d}, nil)

	res, err := p.ComputePlan(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	row := res.OrderRows[0]
	if row.Reason != ReasonNoDriver || row.RiskLevel != order.RiskHigh {
		t.Fatalf("unreachable driver counts as none, got %s/%s", row.Reason, row.RiskLevel)
	}
}

func TestPlannerAssignedDriverFar(t *testing.T) {
	assigned := types.ID("far-assigned")
	o := scheduledOrder("o1", 30*time.Minute)
	o.Status = order.StatusAssigned
	o.DriverID = &assigned

	drivers := []driver.Driver{
		atPosition("near-free", 40, 0, nil),
		atPosition(assigned, 41, 0, nil),
	}
	etas := map[string]float64{
		posKey(40, 0): 5,
		posKey(41, 0): 40,
	}

	p := newTestPlanner([]order.Order{o}, drivers, etas)
	res, err := p.ComputePlan(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	row := res.OrderRows[0]
	if row.SuggestedDriverID == nil || *row.SuggestedDriverID != "near-free" {
		t.Fatal("the closer free driver is still suggested")
	}
	if row.Reason != ReasonFarDriver || row.RiskLevel != order.RiskMedium {
		t.Fatalf("a far assigned driver flags the order, got %s/%s", row.Reason, row.RiskLevel)
	}
}

func TestPlannerShortage(t *testing.T) {
	d := atPosition("d1", 40, 0, nil)
	etas := map[string]float64{posKey(40, 0): 10}

	two := []order.Order{
		scheduledOrder("o1", 10*time.Minute),
		scheduledOrder("o2", 20*time.Minute),
	}
	p := newTestPlanner(two, []driver.Driver{d}, etas)
	res, err := p.ComputePlan(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !res.Shortage {
		t.Fatal("two unassigned orders vs one driver is a shortage")
	}

	// Assigning one order drops the unassigned count to the pool size.
	assigned := types.ID("d1")
	two[1].Status = order.StatusAssigned
	two[1].DriverID = &assigned
	res, err = p.ComputePlan(context.Background())
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.Shortage {
		t.Fatal("one unassigned order vs one driver is not a shortage")
	}
}

func TestPlannerIdempotent(t *testing.T) {
	drivers := []driver.Driver{
		atPosition("d1", 40, 0, nil),
		atPosition("d2", 41, 0, nil),
	}
	etas := map[string]float64{
		posKey(40, 0): 8,
		posKey(41, 0): 12,
	}
	orders := []order.Order{
		scheduledOrder("o2", 20*time.Minute),
		scheduledOrder("o1", 10*time.Minute),
		scheduledOrder("o3", 10*time.Minute),
	}

	p := newTestPlanner(orders, drivers, etas)
	first, err := p.ComputePlan(context.Background())
	if err != nil {
		t.Fatalf("first compute: %v", err)
	}
	second, err := p.ComputePlan(context.Background())
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("recompute without changes must be identical:\n%+v\n%+v", first, second)
	}

	// Rows come back ordered by pickup time, then id.
	ids := []types.ID{first.OrderRows[0].OrderID, first.OrderRows[1].OrderID, first.OrderRows[2].OrderID}
	want := []types.ID{"o1", "o3", "o2"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("row order = %v, want %v", ids, want)
	}
}

type fakePlanStore struct {
	updates [][]order.PlanningUpdate
	err     error
}

func (f *fakePlanStore) ApplyPlanning(ctx context.Context, updates []order.PlanningUpdate) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, updates)
	return nil
}

type fakeBroadcaster struct {
	results chan *Result
	lists   chan []order.Order
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{
		results: make(chan *Result, 1),
		lists:   make(chan []order.Order, 1),
	}
}

func (f *fakeBroadcaster) BroadcastPlanning(r *Result) {
	select {
	case f.results <- r:
	default:
	}
}

func (f *fakeBroadcaster) BroadcastOrders(orders []order.Order) {
	select {
	case f.lists <- orders:
	default:
	}
}

type fakeLister struct {
	active []order.Order
	err    error
}

func (f *fakeLister) ListActive(ctx context.Context) ([]order.Order, error) {
	return f.active, f.err
}

func TestTriggerPersistsAndBroadcasts(t *testing.T) {
	d := atPosition("d1", 40, 0, nil)
	etas := map[string]float64{posKey(40, 0): 10}
	p := newTestPlanner([]order.Order{scheduledOrder("o1", 30*time.Minute)}, []driver.Driver{d}, etas)

	store := &fakePlanStore{}
	bc := newFakeBroadcaster()
	trig := NewTrigger(p, store, WithBroadcaster(bc))

	res, err := trig.RecalculateAndPersist(context.Background())
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if len(store.updates) != 1 || len(store.updates[0]) != 1 {
		t.Fatalf("expected one persisted update batch, got %+v", store.updates)
	}
	u := store.updates[0][0]
	if u.OrderID != "o1" || u.RiskLevel != order.RiskLow || u.SuggestedDriverID == nil || *u.SuggestedDriverID != "d1" {
		t.Fatalf("unexpected update: %+v", u)
	}

	select {
	case got := <-bc.results:
		if got != res {
			t.Fatal("broadcast should carry the computed snapshot")
		}
	default:
		t.Fatal("expected a broadcast")
	}

	if trig.Latest() != res {
		t.Fatal("latest snapshot should be the one just computed")
	}
}

func TestTriggerBroadcastsActiveOrderList(t *testing.T) {
	d := atPosition("d1", 40, 0, nil)
	etas := map[string]float64{posKey(40, 0): 10}
	o1 := scheduledOrder("o1", 30*time.Minute)
	p := newTestPlanner([]order.Order{o1}, []driver.Driver{d}, etas)

	store := &fakePlanStore{}
	bc := newFakeBroadcaster()
	lister := &fakeLister{active: []order.Order{o1}}
	trig := NewTrigger(p, store, WithBroadcaster(bc), WithOrderLister(lister))

	if _, err := trig.RecalculateAndPersist(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	select {
	case got := <-bc.lists:
		if len(got) != 1 || got[0].ID != "o1" {
			t.Fatalf("unexpected order list broadcast: %+v", got)
		}
	default:
		t.Fatal("expected an order list broadcast")
	}
}

func TestTriggerPersistFailureSkipsBroadcast(t *testing.T) {
	p := newTestPlanner([]order.Order{scheduledOrder("o1", 30*time.Minute)}, nil, nil)
	store := &fakePlanStore{err: errors.New("db down")}
	bc := newFakeBroadcaster()
	lister := &fakeLister{active: []order.Order{scheduledOrder("o1", 30*time.Minute)}}
	trig := NewTrigger(p, store, WithBroadcaster(bc), WithOrderLister(lister))

	if _, err := trig.RecalculateAndPersist(context.Background()); err == nil {
		t.Fatal("expected persistence error")
	}
	select {
	case <-bc.results:
		t.Fatal("a failed persist must not broadcast")
	default:
	}
	select {
	case <-bc.lists:
		t.Fatal("a failed persist must not broadcast the order list")
	default:
	}
	if trig.Latest() != nil {
		t.Fatal("failed persist must not publish a snapshot")
	}
}

func TestTriggerRecomputesOnOrderEvent(t *testing.T) {
	d := atPosition("d1", 40, 0, nil)
	etas := map[string]float64{posKey(40, 0): 10}
	p := newTestPlanner([]order.Order{scheduledOrder("o1", 30*time.Minute)}, []driver.Driver{d}, etas)

	store := &fakePlanStore{}
	bc := newFakeBroadcaster()
	bus := event.NewBus()
	defer bus.Close()

	trig := NewTrigger(p, store, WithBroadcaster(bc), WithBus(bus), WithTick(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go trig.Run(ctx)

	if err := bus.Publish(ctx, event.Event{Type: event.TypeOrderChanged, OrderID: "o1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-bc.results:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an event-driven recompute")
	}
}
