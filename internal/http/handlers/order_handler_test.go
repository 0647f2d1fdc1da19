// README: HTTP-level tests for order endpoints and status code mapping.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"relaxedrive/internal/modules/order"
	"relaxedrive/internal/types"
)

type stubStore struct {
	mu     sync.Mutex
	orders map[types.ID]*order.Order
}

func newStubStore() *stubStore {
	return &stubStore{orders: map[types.ID]*order.Order{}}
}

func (s *stubStore) Create(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *stubStore) Get(ctx context.Context, id types.ID) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *stubStore) Update(ctx context.Context, o *order.Order, fromStatus order.Status, fromVersion int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[o.ID]
	if !ok || stored.Status != fromStatus || stored.StatusVersion != fromVersion {
		return false, nil
	}
	cp := *o
	cp.StatusVersion = fromVersion + 1
	s.orders[o.ID] = &cp
	return true, nil
}

func (s *stubStore) Delete(ctx context.Context, id types.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != order.StatusScheduled || o.DriverID != nil {
		return false, nil
	}
	delete(s.orders, id)
	return true, nil
}

func (s *stubStore) ListActive(ctx context.Context) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []order.Order
	for _, o := range s.orders {
		if o.Active() {
			out = append(out, *o)
		}
	}
	return out, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := order.NewService(newStubStore())
	h := NewOrderHandler(svc)

	r := gin.New()
	r.POST("/api/orders", h.Create)
	r.GET("/api/orders/:id", h.Get)
	r.POST("/api/orders/:id/assign", h.Assign)
	r.POST("/api/orders/:id/arrive-pickup", h.ArrivePickup)
	r.POST("/api/orders/:id/start", h.Start)
	r.POST("/api/orders/:id/complete", h.Complete)
	r.POST("/api/orders/:id/cancel", h.Cancel)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createTestOrder(t *testing.T, r *gin.Engine) string {
	t.Helper()
	pickupAt := time.Now().Add(time.Hour).Format(time.RFC3339)
	body := `{"pickupAt":"` + pickupAt + `","pickupAddress":"1 Main St","dropoffAddress":"2 Oak Ave"}`
	w := doJSON(t, r, http.MethodPost, "/api/orders", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.ID == "" {
		t.Fatalf("create response missing id: %s", w.Body.String())
	}
	return resp.ID
}

func TestCreateAndGetOrder(t *testing.T) {
	r := newTestRouter()
	id := createTestOrder(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/orders/"+id, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != string(order.StatusScheduled) {
		t.Fatalf("expected scheduled, got %q", resp.Status)
	}
}

func TestCreateOrderRejectsMissingFields(t *testing.T) {
	r := newTestRouter()
	w := doJSON(t, r, http.MethodPost, "/api/orders", `{"pickupAddress":"x"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	r := newTestRouter()
	w := doJSON(t, r, http.MethodGet, "/api/orders/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestTransitionStatusCodes(t *testing.T) {
	r := newTestRouter()
	id := createTestOrder(t, r)

	// Start before assignment is a conflict.
	w := doJSON(t, r, http.MethodPost, "/api/orders/"+id+"/start", "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("start before assign: expected 409, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/orders/"+id+"/assign", `{"driverId":"d1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// The wrong driver is forbidden.
	headers := map[string]string{"X-Actor-Id": "d2", "X-Actor-Role": "driver"}
	w = doJSON(t, r, http.MethodPost, "/api/orders/"+id+"/arrive-pickup", "", headers)
	if w.Code != http.StatusForbidden {
		t.Fatalf("wrong driver: expected 403, got %d", w.Code)
	}

	headers["X-Actor-Id"] = "d1"
	w = doJSON(t, r, http.MethodPost, "/api/orders/"+id+"/arrive-pickup", "", headers)
	if w.Code != http.StatusOK {
		t.Fatalf("arrive: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/orders/"+id+"/start", "", headers)
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/orders/"+id+"/complete", `{"distanceKm":10,"earningsCents":2500}`, headers)
	if w.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Terminal state rejects further transitions.
	w = doJSON(t, r, http.MethodPost, "/api/orders/"+id+"/cancel", "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("cancel after complete: expected 409, got %d", w.Code)
	}
}
