// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"relaxedrive/internal/broadcast"
	"relaxedrive/internal/http/handlers"
	"relaxedrive/internal/http/middleware"
	"relaxedrive/internal/modules/driver"
	"relaxedrive/internal/modules/location"
	"relaxedrive/internal/modules/order"
	"relaxedrive/internal/modules/planning"
	"relaxedrive/internal/modules/trip"
)

type RouterDeps struct {
	Order    *order.Service
	Drivers  *driver.Service
	Location *location.Service
	Trips    *trip.Service
	Planning *planning.Trigger
	Hub      *broadcast.Hub
	Logger   *slog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger), middleware.Logging(deps.Logger))

	orderHandler := handlers.NewOrderHandler(deps.Order)
	api := r.Group("/api")
	{
		api.POST("/orders", orderHandler.Create)
		api.GET("/orders", orderHandler.ListActive)
		api.GET("/orders/:id", orderHandler.Get)
		api.DELETE("/orders/:id", orderHandler.Delete)
		api.POST("/orders/:id/assign", orderHandler.Assign)
		api.POST("/orders/:id/reject", orderHandler.Reject)
		api.POST("/orders/:id/arrive-pickup", orderHandler.ArrivePickup)
		api.POST("/orders/:id/start", orderHandler.Start)
		api.POST("/orders/:id/arrive-middle", orderHandler.ArriveMiddle)
		api.POST("/orders/:id/leave-middle", orderHandler.LeaveMiddle)
		api.POST("/orders/:id/complete", orderHandler.Complete)
		api.POST("/orders/:id/cancel", orderHandler.Cancel)
		api.POST("/orders/:id/stops", orderHandler.StopUnderway)
		api.POST("/orders/:id/transition", orderHandler.Transition)

		driverHandler := handlers.NewDriverHandler(deps.Drivers, deps.Location, deps.Trips)
		api.GET("/drivers", driverHandler.List)
		api.GET("/drivers/:id", driverHandler.Get)
		api.GET("/drivers/:id/stats", driverHandler.Stats)
		api.PUT("/drivers/:id/availability", driverHandler.SetAvailability)
		api.PUT("/drivers/:id/location", driverHandler.UpdateLocation)

		planningHandler := handlers.NewPlanningHandler(deps.Planning)
		api.GET("/planning", planningHandler.Latest)
		api.POST("/planning/recalculate", planningHandler.Recalculate)
	}

	if deps.Hub != nil {
		r.GET("/ws", deps.Hub.HandleWebSocket)
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
