// README: Order aggregate, status definitions, and the transition table.
package order

import (
	"time"

	"relaxedrive/internal/types"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type TripType string

const (
	TripOneWay    TripType = "one_way"
	TripRoundtrip TripType = "roundtrip"
)

// RiskLevel is derived by the dispatch planner and overwritten wholesale on
// every planning cycle; it is never user-edited.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type Role string

const (
	RoleDriver     Role = "driver"
	RoleDispatcher Role = "dispatcher"
	RoleOperator   Role = "operator"
)

// Actor is whoever requested a transition. Role-based access is enforced
// upstream; the state machine only checks ownership of the specific order.
type Actor struct {
	ID   types.ID
	Role Role
}

type Order struct {
	ID            types.ID
	Status        Status
	StatusVersion int

	PickupAt       time.Time
	PickupAddress  string
	DropoffAddress string
	Waypoints      []string
	TripType       TripType
	// MiddleAddress is only meaningful for roundtrip orders.
	MiddleAddress *string

	DriverID         *types.ID
	PreferredCarType *string
	ManualAssignment bool

	PassengerName  string
	PassengerPhone string

	// Stop-event timestamps, each set at most once and non-decreasing.
	ArrivedAtPickupAt *time.Time
	LeftPickupAt      *time.Time
	ArrivedAtMiddleAt *time.Time
	LeftMiddleAt      *time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time

	// Wait charges are frozen at the transition that leaves the stop.
	WaitChargeAtPickupCents *int64
	WaitChargeAtMiddleCents *int64

	// CancelReason is recorded once when the order is cancelled.
	CancelReason *string

	// Planner-owned, overwritten every planning cycle.
	RiskLevel         RiskLevel
	SuggestedDriverID *types.ID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllowedTransitions represents the order status flow as code.
// ASSIGNED → SCHEDULED is the driver-reject edge, distinct from cancel.
var AllowedTransitions = map[Status][]Status{
	StatusScheduled:  {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusScheduled, StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Active reports whether the order still appears in live dispatch lists.
func (o *Order) Active() bool {
	return o.Status != StatusCompleted && o.Status != StatusCancelled
}

func (o *Order) IsRoundtrip() bool {
	return o.TripType == TripRoundtrip
}

// StopTimestamps returns the non-nil stop-event timestamps in the order
// they were recorded; the sequence must be non-decreasing.
func (o *Order) StopTimestamps() []time.Time {
	var out []time.Time
	for _, t := range []*time.Time{
		o.ArrivedAtPickupAt, o.LeftPickupAt, o.StartedAt,
		o.ArrivedAtMiddleAt, o.LeftMiddleAt, o.CompletedAt,
	} {
		if t != nil {
			out = append(out, *t)
		}
	}
	return out
}
