package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	internalinventory "github.com/angelmondragon/storefront-backend/internal/inventory"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type stubOrdersService struct {
	place  func(ctx context.Context, input internalorders.PlaceOrderInput) (*internalorders.PlaceOrderResult, error)
	cancel func(ctx context.Context, orderID uuid.UUID, actor string) (*internalorders.CancelOrderResult, error)
	get    func(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

func (s *stubOrdersService) PlaceOrder(ctx context.Context, input internalorders.PlaceOrderInput) (*internalorders.PlaceOrderResult, error) {
	return s.place(ctx, input)
}

func (s *stubOrdersService) CancelOrder(ctx context.Context, orderID uuid.UUID, actor string) (*internalorders.CancelOrderResult, error) {
	return s.cancel(ctx, orderID, actor)
}

func (s *stubOrdersService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.get(ctx, orderID)
}

const createBody = `{
	"customerName": "Dana Reyes",
	"customerEmail": "dana@example.com",
	"shippingAddress": {"line1": "1 Main St", "city": "Austin", "postal_code": "78701"},
	"billingAddress": {"line1": "1 Main St", "city": "Austin", "postal_code": "78701"},
	"items": [{"productId": "%s", "name": "Tee", "quantity": 2, "unitPrice": "20.00"}]
}`

func newCreateRequest(productID uuid.UUID) *http.Request {
	body := strings.Replace(createBody, "%s", productID.String(), 1)
	return httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
}

func TestCreateReturnsCreatedOrder(t *testing.T) {
	productID := uuid.New()
	var captured internalorders.PlaceOrderInput
	svc := &stubOrdersService{place: func(_ context.Context, input internalorders.PlaceOrderInput) (*internalorders.PlaceOrderResult, error) {
		captured = input
		return &internalorders.PlaceOrderResult{
			Order: &models.Order{
				ID:            uuid.New(),
				CustomerName:  input.CustomerName,
				Status:        enums.OrderStatusPending,
				PaymentStatus: enums.PaymentStatusUnpaid,
				Subtotal:      decimal.RequireFromString("40.00"),
				Items: []models.OrderLineItem{{
					ProductID: productID,
					Name:      "Tee",
					Quantity:  2,
					UnitPrice: decimal.RequireFromString("20.00"),
					LineTotal: decimal.RequireFromString("40.00"),
				}},
			},
			Outcome: internalorders.OutcomeCompleted,
		}, nil
	}}

	resp := httptest.NewRecorder()
	Create(svc, logger.Nop()).ServeHTTP(resp, newCreateRequest(productID))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Actor != checkoutActor {
		t.Fatalf("expected checkout actor, got %q", captured.Actor)
	}
	if len(captured.Items) != 1 || captured.Items[0].Quantity != 2 || !captured.Items[0].UnitPrice.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected items %+v", captured.Items)
	}

	var payload struct {
		Data struct {
			Status        string `json:"status"`
			PaymentStatus string `json:"paymentStatus"`
			Subtotal      string `json:"subtotal"`
			Items         []struct {
				Quantity int `json:"quantity"`
			} `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.Status != "pending" || payload.Data.PaymentStatus != "unpaid" {
		t.Fatalf("unexpected status fields %+v", payload.Data)
	}
	if payload.Data.Subtotal != "40" || len(payload.Data.Items) != 1 {
		t.Fatalf("unexpected totals %+v", payload.Data)
	}
}

func TestCreateSurfacesUnavailableItems(t *testing.T) {
	productID := uuid.New()
	svc := &stubOrdersService{place: func(context.Context, internalorders.PlaceOrderInput) (*internalorders.PlaceOrderResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "these items are no longer available in that quantity").
			WithDetails([]internalinventory.UnavailableItem{{ProductID: productID, Name: "Tee", Requested: 2, Available: 1}})
	}}

	resp := httptest.NewRecorder()
	Create(svc, logger.Nop()).ServeHTTP(resp, newCreateRequest(productID))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		UnavailableItems []internalinventory.UnavailableItem `json:"unavailableItems"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("unexpected code %s", payload.Error.Code)
	}
	if len(payload.UnavailableItems) != 1 || payload.UnavailableItems[0].Requested != 2 || payload.UnavailableItems[0].Available != 1 {
		t.Fatalf("unexpected unavailable items %+v", payload.UnavailableItems)
	}
}

func TestCreateReservationFailureIsGeneric500(t *testing.T) {
	svc := &stubOrdersService{place: func(context.Context, internalorders.PlaceOrderInput) (*internalorders.PlaceOrderResult, error) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrderFailed, errors.New("variation missing"), "reserve stock")
	}}

	resp := httptest.NewRecorder()
	Create(svc, logger.Nop()).ServeHTTP(resp, newCreateRequest(uuid.New()))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "variation missing") {
		t.Fatalf("internal detail leaked: %s", resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "order could not be completed") {
		t.Fatalf("expected generic message, got %s", resp.Body.String())
	}
}

func TestCreateRejectsInvalidBody(t *testing.T) {
	called := false
	svc := &stubOrdersService{place: func(context.Context, internalorders.PlaceOrderInput) (*internalorders.PlaceOrderResult, error) {
		called = true
		return nil, nil
	}}

	cases := map[string]string{
		"unknown field": `{"customerName":"Dana","surprise":true}`,
		"no items":      `{"customerName":"Dana","customerEmail":"dana@example.com","items":[]}`,
		"not json":      `customer=dana`,
	}
	for name, body := range cases {
		resp := httptest.NewRecorder()
		Create(svc, logger.Nop()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", name, resp.Code)
		}
	}
	if called {
		t.Fatal("service should not run for invalid bodies")
	}
}

func TestCancelUsesActorAndMapsConflict(t *testing.T) {
	orderID := uuid.New()
	var actor string
	calls := 0
	svc := &stubOrdersService{cancel: func(_ context.Context, id uuid.UUID, a string) (*internalorders.CancelOrderResult, error) {
		calls++
		actor = a
		if calls > 1 {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled")
		}
		return &internalorders.CancelOrderResult{
			Order:         &models.Order{ID: id, Status: enums.OrderStatusCancelled},
			ReleasedItems: 2,
		}, nil
	}}

	router := chi.NewRouter()
	router.Post("/api/v1/orders/{orderId}/cancel", Cancel(svc, logger.Nop()))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil)
	req = req.WithContext(middleware.WithActor(req.Context(), "dana@example.com"))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if actor != "dana@example.com" {
		t.Fatalf("expected header actor, got %q", actor)
	}
	if !strings.Contains(resp.Body.String(), `"releasedItems":2`) {
		t.Fatalf("expected released items in body: %s", resp.Body.String())
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	if actor != "customer" {
		t.Fatalf("expected fallback actor, got %q", actor)
	}
}

func TestDetail(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{get: func(_ context.Context, id uuid.UUID) (*models.Order, error) {
		if id != orderID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return &models.Order{ID: id, Status: enums.OrderStatusPending}, nil
	}}
	router := chi.NewRouter()
	router.Get("/api/v1/orders/{orderId}", Detail(svc, logger.Nop()))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders/not-a-uuid", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
