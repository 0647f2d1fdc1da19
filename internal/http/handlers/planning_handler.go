// README: Planning snapshot handler.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"relaxedrive/internal/modules/planning"
)

type PlanningHandler struct {
	trigger *planning.Trigger
}

func NewPlanningHandler(trigger *planning.Trigger) *PlanningHandler {
	return &PlanningHandler{trigger: trigger}
}

// Latest handles GET /api/planning: returns the most recent snapshot
// without triggering a recompute.
func (h *PlanningHandler) Latest(c *gin.Context) {
	result := h.trigger.Latest()
	if result == nil {
		writeError(c, http.StatusNotFound, "no planning snapshot yet")
		return
	}
	writeJSON(c, http.StatusOK, result)
}

// Recalculate handles POST /api/planning/recalculate: computes a fresh
// snapshot, persists it onto the in-window orders, and returns it.
func (h *PlanningHandler) Recalculate(c *gin.Context) {
	result, err := h.trigger.RecalculateAndPersist(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "planning recompute failed")
		return
	}
	writeJSON(c, http.StatusOK, result)
}
