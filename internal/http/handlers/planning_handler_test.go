// README: HTTP-level tests for the planning endpoints.
package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"relaxedrive/internal/modules/driver"
	"relaxedrive/internal/modules/order"
	"relaxedrive/internal/modules/planning"
	"relaxedrive/internal/routing"
)

type emptyOrders struct{}

func (emptyOrders) ListInWindow(ctx context.Context, from, to time.Time) ([]order.Order, error) {
	return nil, nil
}

type emptyPool struct{}

func (emptyPool) Eligible(ctx context.Context, now time.Time) ([]driver.Driver, error) {
	return nil, nil
}

type zeroRouter struct{}

func (zeroRouter) Route(ctx context.Context, origin, destination string) routing.Route {
	return routing.Route{}
}

type okPlanStore struct{}

func (okPlanStore) ApplyPlanning(ctx context.Context, updates []order.PlanningUpdate) error {
	return nil
}

func newPlanningRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	planner := planning.NewPlanner(emptyOrders{}, emptyPool{}, zeroRouter{})
	trigger := planning.NewTrigger(planner, okPlanStore{})
	h := NewPlanningHandler(trigger)

	r := gin.New()
	r.GET("/api/planning", h.Latest)
	r.POST("/api/planning/recalculate", h.Recalculate)
	return r
}

func TestPlanningGetIsReadOnly(t *testing.T) {
	r := newPlanningRouter()

	// No snapshot exists yet; the read endpoint must not compute one.
	w := doJSON(t, r, http.MethodGet, "/api/planning", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first recompute, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/planning/recalculate", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recalculate: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/planning", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after recompute, got %d", w.Code)
	}
}
