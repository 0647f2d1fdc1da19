// README: Planning snapshot types produced by the dispatch planner.
package planning

import (
	"time"

	"relaxedrive/internal/modules/order"
	"relaxedrive/internal/types"
)

// Reason names the concrete cause behind an elevated risk level.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonNoDriver  Reason = "no_driver"
	ReasonFarDriver Reason = "far_driver"
)

// Suggestion is one ranked driver candidate for an order.
type Suggestion struct {
	DriverID         types.ID `json:"driverId"`
	ETAPickupMinutes float64  `json:"etaPickupMinutes"`
	ETATripMinutes   float64  `json:"etaTripMinutes"`
}

// OrderRow carries the planner verdict for a single in-window order.
type OrderRow struct {
	OrderID           types.ID        `json:"orderId"`
	PickupAt          time.Time       `json:"pickupAt"`
	RiskLevel         order.RiskLevel `json:"riskLevel"`
	Reason            Reason          `json:"reason,omitempty"`
	SuggestedDriverID *types.ID       `json:"suggestedDriverId,omitempty"`
	SuggestedDrivers  []Suggestion    `json:"suggestedDrivers,omitempty"`
}

// RiskyOrder is the subset view of rows whose reason is concrete.
type RiskyOrder struct {
	OrderID   types.ID        `json:"orderId"`
	Reason    Reason          `json:"reason"`
	RiskLevel order.RiskLevel `json:"riskLevel"`
}

// Result is a complete planning snapshot. It is built fully in memory and
// replaced wholesale on every recompute, never patched.
type Result struct {
	WindowStart      time.Time    `json:"windowStart"`
	WindowEnd        time.Time    `json:"windowEnd"`
	OrdersCount      int          `json:"ordersCount"`
	DriversAvailable int          `json:"driversAvailable"`
	Shortage         bool         `json:"shortage"`
	RiskyOrders      []RiskyOrder `json:"riskyOrders"`
	OrderRows        []OrderRow   `json:"orderRows"`
}
