package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryIdempotencyStore struct {
	data map[string]string
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotencyStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key] = value.(string)
	return nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (m *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

type stubOrders struct {
	placed int
}

func (s *stubOrders) PlaceOrder(_ context.Context, input orders.PlaceOrderInput) (*orders.PlaceOrderResult, error) {
	s.placed++
	return &orders.PlaceOrderResult{
		Order:   &models.Order{ID: uuid.New(), CustomerName: input.CustomerName, Status: enums.OrderStatusPending},
		Outcome: orders.OutcomeCompleted,
	}, nil
}

func (s *stubOrders) CancelOrder(context.Context, uuid.UUID, string) (*orders.CancelOrderResult, error) {
	return nil, errors.New("not used")
}

func (s *stubOrders) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: id, Status: enums.OrderStatusPending}, nil
}

type stubInventory struct {
	inventory.Service
	adjustActor string
}

func (s *stubInventory) AdjustStock(_ context.Context, input inventory.AdjustStockInput) (*inventory.StockMutation, error) {
	s.adjustActor = input.Actor
	return &inventory.StockMutation{ProductID: input.ProductID, Change: input.QuantityChange}, nil
}

func (s *stubInventory) GetInventoryOverview(_ context.Context, threshold int) (*inventory.InventoryOverview, error) {
	return &inventory.InventoryOverview{Summary: inventory.OverviewSummary{Threshold: threshold}}, nil
}

type testRouter struct {
	handler   http.Handler
	orders    *stubOrders
	inventory *stubInventory
	store     *memoryIdempotencyStore
}

func newTestRouter(t *testing.T, redisErr error) *testRouter {
	t.Helper()
	reg := prometheus.NewRegistry()
	invMetrics := metrics.NewInventoryMetrics(reg)
	invMetrics.IncOrderOutcome("completed")

	cfg := &config.Config{
		App:  config.AppConfig{Env: "test"},
		HTTP: config.HTTPConfig{CORSAllowedOrigins: []string{"*"}},
	}
	tr := &testRouter{
		orders:    &stubOrders{},
		inventory: &stubInventory{},
		store:     &memoryIdempotencyStore{data: map[string]string{}},
	}
	tr.handler = NewRouter(cfg, logger.Nop(), Deps{
		DB:          stubPinger{},
		Redis:       stubPinger{err: redisErr},
		Idempotency: tr.store,
		Orders:      tr.orders,
		Inventory:   tr.inventory,
		Metrics:     reg,
	})
	return tr
}

func (tr *testRouter) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	tr.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutes(t *testing.T) {
	tr := newTestRouter(t, nil)
	if resp := tr.do(http.MethodGet, "/health/live", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", resp.Code)
	}
	if resp := tr.do(http.MethodGet, "/health/ready", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", resp.Code)
	}

	degraded := newTestRouter(t, errors.New("redis down"))
	if resp := degraded.do(http.MethodGet, "/health/ready", "", nil); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready with redis down: expected 503 got %d", resp.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	tr := newTestRouter(t, nil)
	resp := tr.do(http.MethodGet, "/metrics", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "storefront_order_placements_total") {
		t.Fatalf("expected order placement counter in scrape output")
	}
}

func orderBody() string {
	return fmt.Sprintf(`{
		"customerName": "Dana Reyes",
		"customerEmail": "dana@example.com",
		"shippingAddress": {"line1": "1 Main St", "city": "Austin", "postal_code": "78701"},
		"billingAddress": {"line1": "1 Main St", "city": "Austin", "postal_code": "78701"},
		"items": [{"productId": %q, "name": "Tee", "quantity": 1, "unitPrice": "20.00"}]
	}`, uuid.NewString())
}

func TestCreateOrderRouteIsIdempotent(t *testing.T) {
	tr := newTestRouter(t, nil)
	body := orderBody()

	resp := tr.do(http.MethodPost, "/api/v1/orders", body, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key, got %d", resp.Code)
	}

	headers := map[string]string{"Idempotency-Key": "order-1", "Content-Type": "application/json"}
	first := tr.do(http.MethodPost, "/api/v1/orders", body, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", first.Code, first.Body.String())
	}
	replay := tr.do(http.MethodPost, "/api/v1/orders", body, headers)
	if replay.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", replay.Code)
	}
	if replay.Body.String() != first.Body.String() {
		t.Fatalf("expected identical replay body")
	}
	if tr.orders.placed != 1 {
		t.Fatalf("expected one placement, got %d", tr.orders.placed)
	}
}

func TestOrderDetailRoute(t *testing.T) {
	tr := newTestRouter(t, nil)
	id := uuid.New()
	resp := tr.do(http.MethodGet, "/api/v1/orders/"+id.String(), "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), id.String()) {
		t.Fatalf("expected order id in body")
	}
}

func TestAdminInventoryRoutes(t *testing.T) {
	tr := newTestRouter(t, nil)
	body := fmt.Sprintf(`{"productId":%q,"quantityChange":4,"reason":"cycle count"}`, uuid.NewString())
	resp := tr.do(http.MethodPost, "/api/admin/v1/inventory/adjust", body, map[string]string{
		"Idempotency-Key": "adjust-1",
		"X-Actor-Id":      "ops@example.com",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("adjust: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if tr.inventory.adjustActor != "ops@example.com" {
		t.Fatalf("expected actor from header, got %q", tr.inventory.adjustActor)
	}

	resp = tr.do(http.MethodGet, "/api/admin/v1/inventory/overview?threshold=7", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("overview: expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"threshold":7`) {
		t.Fatalf("expected threshold echoed: %s", resp.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	tr := newTestRouter(t, nil)
	if resp := tr.do(http.MethodGet, "/api/v1/carts", "", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
