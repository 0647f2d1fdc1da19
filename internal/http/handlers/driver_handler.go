// README: Driver roster and live-location handlers.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"relaxedrive/internal/modules/driver"
	"relaxedrive/internal/modules/location"
	"relaxedrive/internal/modules/trip"
	"relaxedrive/internal/types"
)

type DriverHandler struct {
	drivers  *driver.Service
	location *location.Service
	trips    *trip.Service
}

func NewDriverHandler(drivers *driver.Service, loc *location.Service, trips *trip.Service) *DriverHandler {
	return &DriverHandler{drivers: drivers, location: loc, trips: trips}
}

type driverView struct {
	ID        types.ID `json:"id"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Available bool     `json:"available"`
	Blocked   bool     `json:"blocked"`
	CarType   *string  `json:"carType,omitempty"`
}

func driverViewOf(d *driver.Driver) driverView {
	return driverView{
		ID:        d.ID,
		Name:      d.Name,
		Phone:     d.Phone,
		Lat:       d.Lat,
		Lng:       d.Lng,
		Available: d.Available,
		Blocked:   d.Blocked,
		CarType:   d.CarType,
	}
}

func (h *DriverHandler) List(c *gin.Context) {
	drivers, err := h.drivers.FindAll(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]driverView, 0, len(drivers))
	for i := range drivers {
		out = append(out, driverViewOf(&drivers[i]))
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *DriverHandler) Get(c *gin.Context) {
	d, err := h.drivers.FindByID(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		if errors.Is(err, driver.ErrNotFound) {
			writeError(c, http.StatusNotFound, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, driverViewOf(d))
}

type availabilityReq struct {
	Available *bool `json:"available"`
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Available == nil {
		writeError(c, http.StatusBadRequest, "missing available")
		return
	}
	err := h.drivers.SetAvailable(c.Request.Context(), types.ID(c.Param("id")), *req.Available)
	if err != nil {
		if errors.Is(err, driver.ErrNotFound) {
			writeError(c, http.StatusNotFound, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"available": *req.Available})
}

// Stats returns a driver's lifetime totals: trips, miles, earnings.
func (h *DriverHandler) Stats(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if _, err := h.drivers.FindByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, driver.ErrNotFound) {
			writeError(c, http.StatusNotFound, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	st, err := h.trips.Stats(c.Request.Context(), id)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	earnings := st.Earnings()
	writeJSON(c, http.StatusOK, map[string]any{
		"driverId":       st.DriverID,
		"tripsCompleted": st.TripsCompleted,
		"totalMiles":     st.TotalMiles,
		"totalEarnings":  map[string]any{"amount": earnings.Amount, "currency": earnings.Currency},
	})
}

type locationReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	pos := types.Point{Lat: req.Lat, Lng: req.Lng}
	if err := h.location.Update(c.Request.Context(), types.ID(c.Param("id")), pos); err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}
