// README: Order service implements the lifecycle state machine, wait-charge
// capture, and completion bookkeeping.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"relaxedrive/internal/audit"
	"relaxedrive/internal/event"
	"relaxedrive/internal/modules/billing"
	"relaxedrive/internal/modules/driver"
	"relaxedrive/internal/modules/trip"
	"relaxedrive/internal/routing"
	"relaxedrive/internal/types"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotAuthorized     = errors.New("actor is not authorized for this order")
	ErrNotFound          = errors.New("order not found")
	ErrConflict          = errors.New("order was modified concurrently")
	ErrBadRequest        = errors.New("bad request")
)

// Store is the persistence contract the service needs. Update applies the
// whole mutable row with a compare-and-swap on (status, version) so the
// stored status is re-validated at write time.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	Update(ctx context.Context, o *Order, fromStatus Status, fromVersion int) (bool, error)
	Delete(ctx context.Context, id types.ID) (bool, error)
	ListActive(ctx context.Context) ([]Order, error)
}

// Router supplies driver-to-pickup ETAs; a degraded zero route is tolerated.
type Router interface {
	Route(ctx context.Context, origin, destination string) routing.Route
}

// Drivers resolves driver records for assignment-time ETA lookups.
type Drivers interface {
	FindByID(ctx context.Context, id types.ID) (*driver.Driver, error)
}

// TripRecorder receives completion bookkeeping.
type TripRecorder interface {
	RecordCompletion(ctx context.Context, c trip.Completion) error
}

type Service struct {
	store   Store
	router  Router
	drivers Drivers
	trips   TripRecorder
	bus     *event.Bus
	audit   audit.Logger
	logger  *slog.Logger
	now     func() time.Time
}

type ServiceOption func(*Service)

func WithRouter(r Router) ServiceOption {
	return func(s *Service) { s.router = r }
}

func WithDrivers(d Drivers) ServiceOption {
	return func(s *Service) { s.drivers = d }
}

func WithTripRecorder(t TripRecorder) ServiceOption {
	return func(s *Service) { s.trips = t }
}

func WithBus(b *event.Bus) ServiceOption {
	return func(s *Service) { s.bus = b }
}

func WithAudit(a audit.Logger) ServiceOption {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the time source, used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		audit:  audit.Nop{},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateCommand struct {
	Actor            Actor
	PickupAt         time.Time
	PickupAddress    string
	DropoffAddress   string
	TripType         TripType
	MiddleAddress    *string
	PreferredCarType *string
	ManualAssignment bool
	PassengerName    string
	PassengerPhone   string
}

type AssignCommand struct {
	Actor    Actor
	OrderID  types.ID
	DriverID types.ID
}

type RejectCommand struct {
	Actor   Actor
	OrderID types.ID
}

type ArrivePickupCommand struct {
	Actor   Actor
	OrderID types.ID
}

type StartCommand struct {
	Actor   Actor
	OrderID types.ID
	// ManualWaitMinutes overrides the timestamp-derived pickup wait.
	ManualWaitMinutes *int
}

type ArriveMiddleCommand struct {
	Actor   Actor
	OrderID types.ID
}

type LeaveMiddleCommand struct {
	Actor             Actor
	OrderID           types.ID
	ManualWaitMinutes *int
}

type CompleteCommand struct {
	Actor         Actor
	OrderID       types.ID
	DistanceKm    float64
	EarningsCents int64
}

type CancelCommand struct {
	Actor   Actor
	OrderID types.ID
	Reason  string
}

type StopUnderwayCommand struct {
	Actor    Actor
	OrderID  types.ID
	Waypoint string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.PickupAddress == "" || cmd.DropoffAddress == "" || cmd.PickupAt.IsZero() {
		return nil, ErrBadRequest
	}
	if cmd.TripType == "" {
		cmd.TripType = TripOneWay
	}
	if cmd.TripType != TripOneWay && cmd.TripType != TripRoundtrip {
		return nil, ErrBadRequest
	}
	if cmd.MiddleAddress != nil && cmd.TripType != TripRoundtrip {
		return nil, fmt.Errorf("%w: middle address requires a roundtrip", ErrBadRequest)
	}

	now := s.now()
	o := &Order{
		ID:               types.NewID(),
		Status:           StatusScheduled,
		PickupAt:         cmd.PickupAt,
		PickupAddress:    cmd.PickupAddress,
		DropoffAddress:   cmd.DropoffAddress,
		TripType:         cmd.TripType,
		MiddleAddress:    cmd.MiddleAddress,
		PreferredCarType: cmd.PreferredCarType,
		ManualAssignment: cmd.ManualAssignment,
		PassengerName:    cmd.PassengerName,
		PassengerPhone:   cmd.PassengerPhone,
		RiskLevel:        RiskLow,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	s.notify(ctx, cmd.Actor, o.ID, "order.create", o.Status)
	return o, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListActive(ctx context.Context) ([]Order, error) {
	return s.store.ListActive(ctx)
}

// Delete removes an order outright; only permitted before any driver was
// assigned. Later lifecycles end through completion or cancellation.
func (s *Service) Delete(ctx context.Context, actor Actor, id types.ID) error {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.Status != StatusScheduled || o.DriverID != nil {
		return ErrInvalidTransition
	}
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.notify(ctx, actor, id, "order.delete", o.Status)
	return nil
}

// Assign moves a scheduled order to a driver. When the driver's position is
// known and a route can be computed, pickupAt is recomputed to the driver's
// arrival ETA; a routing failure leaves pickupAt untouched and never fails
// the assignment.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusAssigned) {
		return nil, transitionErr(o.Status, StatusAssigned)
	}

	from, version := o.Status, o.StatusVersion
	o.Status = StatusAssigned
	o.DriverID = &cmd.DriverID
	s.recomputePickupETA(ctx, o, cmd.DriverID)

	if err := s.apply(ctx, o, from, version); err != nil {
		return nil, err
	}
	s.notify(ctx, cmd.Actor, o.ID, "order.assign", o.Status)
	return o, nil
}

// Reject is the driver-unassignment edge back to scheduled. Only the
// currently assigned driver may invoke it.
func (s *Service) Reject(ctx context.Context, cmd RejectCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDriver(o, cmd.Actor); err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusScheduled) {
		return nil, transitionErr(o.Status, StatusScheduled)
	}

	from, version := o.Status, o.StatusVersion
	o.Status = StatusScheduled
	o.DriverID = nil

	if err := s.apply(ctx, o, from, version); err != nil {
		return nil, err
	}
	s.notify(ctx, cmd.Actor, o.ID, "order.reject", o.Status)
	return o, nil
}

// ArrivePickup records the driver reaching the pickup stop. Valid only
// while assigned and only once.
func (s *Service) ArrivePickup(ctx context.Context, cmd ArrivePickupCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDriver(o, cmd.Actor); err != nil {
		return nil, err
	}
	if o.Status != StatusAssigned || o.ArrivedAtPickupAt != nil {
		return nil, transitionErr(o.Status, o.Status)
	}

	from, version := o.Status, o.StatusVersion
	now := s.now()
	o.ArrivedAtPickupAt = &now

	if err := s.apply(ctx, o, from, version); err != nil {
		return nil, err
	}
	s.notify(ctx, cmd.Actor, o.ID, "order.arrive_pickup", o.Status)
	return o, nil
}

// Start moves an assigned order underway. Any open pickup (and, for
// roundtrips, middle) wait window is frozen into its charge now; a manual
// operator-entered wait wins over the timestamp-derived value.
func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDriver(o, cmd.Actor); err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusInProgress) {
		return nil, transitionErr(o.Status, StatusInProgress)
	}

	from, version := o.Status, o.StatusVersion
	now := s.now()
	o.Status = StatusInProgress
	if o.ArrivedAtPickupAt != nil && o.LeftPickupAt == nil {
		charge := billing.Charge(*o.ArrivedAtPickupAt, now, cmd.ManualWaitMinutes)
		o.WaitChargeAtPickupCents = &charge
		o.LeftPickupAt = &now
	}
	if o.IsRoundtrip() && o.ArrivedAtMiddleAt != nil && o.LeftMiddleAt == nil {
		charge := billing.Charge(*o.ArrivedAtMiddleAt, now, nil)
		o.WaitChargeAtMiddleCents = &charge
		o.LeftMiddleAt = &now
	}
	o.StartedAt = &now

	if err := s.apply(ctx, o, from, version); err != nil {
		return nil, err
	}
	s.notify(ctx, cmd.Actor, o.ID, "order.start", o.Status)
	return o, nil
}

// ArriveMiddle records reaching the intermediate stop on a roundtrip.
func (s *Service) ArriveMiddle(ctx context.Context, cmd ArriveMiddleCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDriver(o, cmd.Actor); err != nil {
		return nil, err
	}
	if !o.IsRoundtrip() || o.Status != StatusInProgress || o.ArrivedAtMiddleAt != nil {
		return nil, transitionErr(o.Status, o.Status)
	}

	from, version := o.Status, o.StatusVersion
	now := s.now()
	o.ArrivedAtMiddleAt = &now

	if err := s.apply(ctx, o, from, version); err != nil {
		return nil, err
	}
	s.notify(ctx, cmd.Actor, o.ID, "order.arrive_middle", o.Status)
	return o, nil
}

// LeaveMiddle closes the middle-stop wait window and freezes its charge.
func (s *Service) LeaveMiddle(ctx context.Context, cmd LeaveMiddleCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDriver(o, cmd.Actor); err != nil {
		return nil, err
	}
	if !o.IsRoundtrip() || o.Status != StatusInProgress || o.ArrivedAtMiddleAt == nil || o.LeftMiddleAt != nil {
		return nil, transitionErr(o.Status, o.Status)
	}

	from, version := o.Status, o.StatusVersion
	now := s.now()
	charge := billing.Charge(*o.ArrivedAtMiddleAt, now, cmd.ManualWaitMinutes)
	o.WaitChargeAtMiddleCents = &charge
	o.LeftMiddleAt = &now

	if err := s.apply(ctx, o, from, version); err != nil {
		return nil, err
	}
	s.notify(ctx, cmd.Actor, o.ID, "order.leave_middle", o.Status)
	return o, nil
}

// Complete finishes the trip and hands the completion to the trip recorder:
// summary, driver stats, history purge, passenger directory.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDriver(o, cmd.Actor); err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusCompleted) {
		return nil, transitionErr(o.Status, StatusCompleted)
	}

	from, version := o.Status, o.StatusVersion
	now := s.now()
	o.Status = StatusCompleted
	o.CompletedAt = &now

	if err := s.apply(ctx, o, from, version); err != nil {
		return nil, err
	}

	if s.trips != nil && o.DriverID != nil {
		err := s.trips.RecordCompletion(ctx, trip.Completion{
			OrderID:        o.ID,
			DriverID:       *o.DriverID,
			PickupAddress:  o.PickupAddress,
			DropoffAddress: o.DropoffAddress,
			StartedAt:      o.StartedAt,
			CompletedAt:    now,
			DistanceKm:     cmd.DistanceKm,
			EarningsCents:  cmd.EarningsCents,
			PassengerName:  o.PassengerName,
			PassengerPhone: o.PassengerPhone,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "completion bookkeeping failed",
				slog.String("order_id", string(o.ID)), slog.String("error", err.Error()))
		}
	}
	s.notify(ctx, cmd.Actor, o.ID, "order.complete", o.Status)
	return o, nil
}

// Cancel is reachable from every non-terminal status; it clears the driver
// and triggers no billing.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDriver(o, cmd.Actor); err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, transitionErr(o.Status, StatusCancelled)
	}

	from, version := o.Status, o.StatusVersion
	o.Status = StatusCancelled
	o.DriverID = nil
	if cmd.Reason != "" {
		o.CancelReason = &cmd.Reason
	}

	if err := s.apply(ctx, o, from, version); err != nil {
		return nil, err
	}
	s.notify(ctx, cmd.Actor, o.ID, "order.cancel", o.Status)
	return o, nil
}

// StopUnderway appends an ad-hoc extra stop mid-trip without changing
// status. Allowed for the assigned driver or an operator.
func (s *Service) StopUnderway(ctx context.Context, cmd StopUnderwayCommand) (*Order, error) {
	if cmd.Waypoint == "" {
		return nil, ErrBadRequest
	}
	if cmd.Actor.Role != RoleDriver && cmd.Actor.Role != RoleOperator {
		return nil, ErrNotAuthorized
	}
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDriver(o, cmd.Actor); err != nil {
		return nil, err
	}
	if o.Status != StatusInProgress {
		return nil, transitionErr(o.Status, o.Status)
	}

	from, version := o.Status, o.StatusVersion
	o.Waypoints = append(o.Waypoints, cmd.Waypoint)

	if err := s.apply(ctx, o, from, version); err != nil {
		return nil, err
	}
	s.notify(ctx, cmd.Actor, o.ID, "order.stop_underway", o.Status)
	return o, nil
}

// Transition dispatches a requested target status to the matching edge
// method, the surface exposed to generic callers.
func (s *Service) Transition(ctx context.Context, orderID types.ID, target Status, actor Actor) (*Order, error) {
	switch target {
	case StatusScheduled:
		return s.Reject(ctx, RejectCommand{Actor: actor, OrderID: orderID})
	case StatusInProgress:
		return s.Start(ctx, StartCommand{Actor: actor, OrderID: orderID})
	case StatusCompleted:
		return s.Complete(ctx, CompleteCommand{Actor: actor, OrderID: orderID})
	case StatusCancelled:
		return s.Cancel(ctx, CancelCommand{Actor: actor, OrderID: orderID})
	default:
		return nil, fmt.Errorf("%w: target %s needs a dedicated command", ErrInvalidTransition, target)
	}
}

// apply persists the mutated order with a CAS on the status read at the top
// of the request; a miss means a concurrent writer won and the caller sees
// ErrConflict.
func (s *Service) apply(ctx context.Context, o *Order, from Status, version int) error {
	o.UpdatedAt = s.now()
	ok, err := s.store.Update(ctx, o, from, version)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	o.StatusVersion = version + 1
	return nil
}

// requireAssignedDriver gates driver-initiated transitions to the driver
// that owns the order. Non-driver roles pass; role policy lives upstream.
func (s *Service) requireAssignedDriver(o *Order, actor Actor) error {
	if actor.Role != RoleDriver {
		return nil
	}
	if o.DriverID == nil || *o.DriverID != actor.ID {
		return ErrNotAuthorized
	}
	return nil
}

func (s *Service) recomputePickupETA(ctx context.Context, o *Order, driverID types.ID) {
	if s.router == nil || s.drivers == nil {
		return
	}
	d, err := s.drivers.FindByID(ctx, driverID)
	if err != nil {
		s.logger.WarnContext(ctx, "driver lookup for ETA failed",
			slog.String("driver_id", string(driverID)), slog.String("error", err.Error()))
		return
	}
	pos := d.Position()
	if pos == nil {
		return
	}
	route := s.router.Route(ctx, fmt.Sprintf("%f,%f", pos.Lat, pos.Lng), o.PickupAddress)
	if route.Unknown() {
		return
	}
	o.PickupAt = s.now().Add(time.Duration(route.DurationMinutes * float64(time.Minute)))
}

func (s *Service) notify(ctx context.Context, actor Actor, orderID types.ID, action string, status Status) {
	if s.bus != nil {
		_ = s.bus.Publish(ctx, event.Event{Type: event.TypeOrderChanged, OrderID: orderID})
	}
	s.audit.Log(ctx, actor.ID, action, "order:"+string(orderID), map[string]string{"status": string(status)})
}

func transitionErr(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
