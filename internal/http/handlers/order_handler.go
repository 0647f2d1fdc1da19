// README: Order lifecycle handlers: CRUD plus one endpoint per transition.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"relaxedrive/internal/modules/order"
	"relaxedrive/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type createOrderReq struct {
	PickupAt         time.Time `json:"pickupAt"`
	PickupAddress    string    `json:"pickupAddress"`
	DropoffAddress   string    `json:"dropoffAddress"`
	TripType         string    `json:"tripType"`
	MiddleAddress    *string   `json:"middleAddress"`
	PreferredCarType *string   `json:"preferredCarType"`
	ManualAssignment bool      `json:"manualAssignment"`
	PassengerName    string    `json:"passengerName"`
	PassengerPhone   string    `json:"passengerPhone"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		Actor:            actorFrom(c),
		PickupAt:         req.PickupAt,
		PickupAddress:    req.PickupAddress,
		DropoffAddress:   req.DropoffAddress,
		TripType:         order.TripType(req.TripType),
		MiddleAddress:    req.MiddleAddress,
		PreferredCarType: req.PreferredCarType,
		ManualAssignment: req.ManualAssignment,
		PassengerName:    req.PassengerName,
		PassengerPhone:   req.PassengerPhone,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, viewOf(o))
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.order.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

func (h *OrderHandler) ListActive(c *gin.Context) {
	orders, err := h.order.ListActive(c.Request.Context())
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewsOf(orders))
}

func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.order.Delete(c.Request.Context(), actorFrom(c), types.ID(c.Param("id"))); err != nil {
		writeOrderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type assignReq struct {
	DriverID string `json:"driverId"`
}

func (h *OrderHandler) Assign(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil || req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "missing driverId")
		return
	}
	o, err := h.order.Assign(c.Request.Context(), order.AssignCommand{
		Actor:    actorFrom(c),
		OrderID:  types.ID(c.Param("id")),
		DriverID: types.ID(req.DriverID),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

func (h *OrderHandler) Reject(c *gin.Context) {
	o, err := h.order.Reject(c.Request.Context(), order.RejectCommand{
		Actor:   actorFrom(c),
		OrderID: types.ID(c.Param("id")),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

func (h *OrderHandler) ArrivePickup(c *gin.Context) {
	o, err := h.order.ArrivePickup(c.Request.Context(), order.ArrivePickupCommand{
		Actor:   actorFrom(c),
		OrderID: types.ID(c.Param("id")),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

type waitOverrideReq struct {
	ManualWaitMinutes *int `json:"manualWaitMinutes"`
}

func (h *OrderHandler) Start(c *gin.Context) {
	var req waitOverrideReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	o, err := h.order.Start(c.Request.Context(), order.StartCommand{
		Actor:             actorFrom(c),
		OrderID:           types.ID(c.Param("id")),
		ManualWaitMinutes: req.ManualWaitMinutes,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

func (h *OrderHandler) ArriveMiddle(c *gin.Context) {
	o, err := h.order.ArriveMiddle(c.Request.Context(), order.ArriveMiddleCommand{
		Actor:   actorFrom(c),
		OrderID: types.ID(c.Param("id")),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

func (h *OrderHandler) LeaveMiddle(c *gin.Context) {
	var req waitOverrideReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	o, err := h.order.LeaveMiddle(c.Request.Context(), order.LeaveMiddleCommand{
		Actor:             actorFrom(c),
		OrderID:           types.ID(c.Param("id")),
		ManualWaitMinutes: req.ManualWaitMinutes,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

type completeReq struct {
	DistanceKm    float64 `json:"distanceKm"`
	EarningsCents int64   `json:"earningsCents"`
}

func (h *OrderHandler) Complete(c *gin.Context) {
	var req completeReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	o, err := h.order.Complete(c.Request.Context(), order.CompleteCommand{
		Actor:         actorFrom(c),
		OrderID:       types.ID(c.Param("id")),
		DistanceKm:    req.DistanceKm,
		EarningsCents: req.EarningsCents,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	o, err := h.order.Cancel(c.Request.Context(), order.CancelCommand{
		Actor:   actorFrom(c),
		OrderID: types.ID(c.Param("id")),
		Reason:  req.Reason,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

type stopReq struct {
	Waypoint string `json:"waypoint"`
}

func (h *OrderHandler) StopUnderway(c *gin.Context) {
	var req stopReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.order.StopUnderway(c.Request.Context(), order.StopUnderwayCommand{
		Actor:    actorFrom(c),
		OrderID:  types.ID(c.Param("id")),
		Waypoint: req.Waypoint,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

type transitionReq struct {
	Target string `json:"target"`
}

// Transition is the generic endpoint for clients that speak in target
// statuses rather than named actions.
func (h *OrderHandler) Transition(c *gin.Context) {
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Target == "" {
		writeError(c, http.StatusBadRequest, "missing target")
		return
	}
	o, err := h.order.Transition(c.Request.Context(), types.ID(c.Param("id")), order.Status(req.Target), actorFrom(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}
