// README: Base handler utilities (JSON helpers, error mapping, actor).
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"relaxedrive/internal/modules/driver"
	"relaxedrive/internal/modules/order"
	"relaxedrive/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound), errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrNotAuthorized):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrInvalidTransition), errors.Is(err, order.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// actorFrom reads the identity that the auth proxy injected upstream.
// An unknown role falls back to dispatcher, the least privileged console
// role.
func actorFrom(c *gin.Context) order.Actor {
	id := c.GetHeader("X-Actor-Id")
	role := order.Role(c.GetHeader("X-Actor-Role"))
	switch role {
	case order.RoleDriver, order.RoleDispatcher, order.RoleOperator:
	default:
		role = order.RoleDispatcher
	}
	return order.Actor{ID: types.ID(id), Role: role}
}

type orderView struct {
	ID            types.ID        `json:"id"`
	Status        order.Status    `json:"status"`
	StatusVersion int             `json:"statusVersion"`
	PickupAt      time.Time       `json:"pickupAt"`
	Pickup        string          `json:"pickupAddress"`
	Dropoff       string          `json:"dropoffAddress"`
	Waypoints     []string        `json:"waypoints,omitempty"`
	TripType      order.TripType  `json:"tripType"`
	MiddleAddress *string         `json:"middleAddress,omitempty"`
	DriverID      *types.ID       `json:"driverId,omitempty"`
	CarType       *string         `json:"preferredCarType,omitempty"`
	Manual        bool            `json:"manualAssignment"`
	Passenger     string          `json:"passengerName,omitempty"`
	Phone         string          `json:"passengerPhone,omitempty"`
	ArrivedPickup *time.Time      `json:"arrivedAtPickupAt,omitempty"`
	LeftPickup    *time.Time      `json:"leftPickupAt,omitempty"`
	ArrivedMiddle *time.Time      `json:"arrivedAtMiddleAt,omitempty"`
	LeftMiddle    *time.Time      `json:"leftMiddleAt,omitempty"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	WaitPickup    *int64          `json:"waitChargeAtPickupCents,omitempty"`
	WaitMiddle    *int64          `json:"waitChargeAtMiddleCents,omitempty"`
	CancelReason  *string         `json:"cancelReason,omitempty"`
	RiskLevel     order.RiskLevel `json:"riskLevel"`
	Suggested     *types.ID       `json:"suggestedDriverId,omitempty"`
}

func viewOf(o *order.Order) orderView {
	return orderView{
		ID:            o.ID,
		Status:        o.Status,
		StatusVersion: o.StatusVersion,
		PickupAt:      o.PickupAt,
		Pickup:        o.PickupAddress,
		Dropoff:       o.DropoffAddress,
		Waypoints:     o.Waypoints,
		TripType:      o.TripType,
		MiddleAddress: o.MiddleAddress,
		DriverID:      o.DriverID,
		CarType:       o.PreferredCarType,
		Manual:        o.ManualAssignment,
		Passenger:     o.PassengerName,
		Phone:         o.PassengerPhone,
		ArrivedPickup: o.ArrivedAtPickupAt,
		LeftPickup:    o.LeftPickupAt,
		ArrivedMiddle: o.ArrivedAtMiddleAt,
		LeftMiddle:    o.LeftMiddleAt,
		StartedAt:     o.StartedAt,
		CompletedAt:   o.CompletedAt,
		WaitPickup:    o.WaitChargeAtPickupCents,
		WaitMiddle:    o.WaitChargeAtMiddleCents,
		CancelReason:  o.CancelReason,
		RiskLevel:     o.RiskLevel,
		Suggested:     o.SuggestedDriverID,
	}
}

func viewsOf(orders []order.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for i := range orders {
		out = append(out, viewOf(&orders[i]))
	}
	return out
}
