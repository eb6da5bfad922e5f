package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const insufficientStockMessage = "these items are no longer available in that quantity"

var fieldValidator = validator.New()

// Service places and cancels customer orders.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor string) (*CancelOrderResult, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// ServiceParams wires the order service. Notifier and Metrics are optional.
type ServiceParams struct {
	Repo      Repository
	Inventory StockReserver
	Notifier  Notifier
	Metrics   *metrics.InventoryMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo      Repository
	inventory StockReserver
	notifier  Notifier
	metrics   *metrics.InventoryMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		inventory: params.Inventory,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// PlaceOrder validates the request, checks stock, persists a pending order and
// reserves its stock. A failed reservation deletes the order again; stock
// already deducted for earlier lines is not put back.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if err := validatePlaceOrder(input); err != nil {
		s.record(OutcomeInvalid)
		return nil, err
	}

	availability, err := s.inventory.CheckStockAvailability(ctx, cartItems(input.Items))
	if err != nil {
		s.record(OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrderFailed, err, "check stock availability")
	}
	if !availability.Available {
		s.record(OutcomeInsufficientStock)
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, insufficientStockMessage).
			WithDetails(availability.UnavailableItems)
	}

	order := buildOrder(input)
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		s.record(OutcomeError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrderFailed, err, "persist order")
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	if err := s.inventory.ReserveStock(ctx, order.ID, orderItems(order.Items), input.Actor); err != nil {
		s.metrics.IncReservationFailure()
		s.logg.Error(logCtx, "stock reservation failed, deleting order", err)

		if derr := s.repo.DeleteOrder(ctx, order.ID); derr != nil {
			s.logg.Error(logCtx, "compensating order delete failed, order has no matching stock deduction", derr)
			s.record(OutcomeRollbackFailed)
			return nil, pkgerrors.Wrap(pkgerrors.CodeOrderFailed, multierr.Combine(err, derr), "reserve stock")
		}
		s.record(OutcomeReservationFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeOrderFailed, err, "reserve stock")
	}

	notified := false
	if s.notifier != nil {
		if err := s.notifier.OrderPlaced(ctx, order); err != nil {
			s.logg.Error(logCtx, "order confirmation notification failed", err)
		} else {
			notified = true
		}
	}

	s.record(OutcomeCompleted)
	s.logg.Info(logCtx, "order placed")
	return &PlaceOrderResult{Order: order, Outcome: OutcomeCompleted, Notified: notified}, nil
}

// CancelOrder claims the cancellation first so concurrent cancels release stock once.
func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID, actor string) (*CancelOrderResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	previous := order.Status
	if !previous.Cancelable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s and cannot be cancelled", previous))
	}

	at := s.now().UTC()
	claimed, err := s.repo.MarkCancelled(ctx, orderID, at)
	if err != nil {
		return nil, pkgerrors.WrapDB(err, "mark order cancelled")
	}
	if !claimed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order was cancelled concurrently")
	}
	order.Status = enums.OrderStatusCancelled
	order.CanceledAt = &at

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	released, err := s.releaseLines(ctx, order, at, actor)
	if err != nil {
		s.logg.Error(logCtx, "stock release failed, reopening order", err)
		if rerr := s.repo.RevertCancelled(ctx, orderID, previous); rerr != nil {
			s.logg.Error(logCtx, "reopening order failed, stock release needs manual follow up", rerr)
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, multierr.Combine(err, rerr), "release stock")
		}
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.OrderCancelled(ctx, order, previous); err != nil {
			s.logg.Error(logCtx, "order cancellation notification failed", err)
		}
	}
	s.logg.Info(s.logg.WithField(logCtx, "refund_due", order.PaymentStatus.RefundDue()), "order cancelled")
	return &CancelOrderResult{
		Order:         order,
		ReleasedItems: released,
		RefundDue:     order.PaymentStatus.RefundDue(),
	}, nil
}

// releaseLines returns stock line by line in position order. Lines stamped by
// an earlier attempt are skipped, so a retried cancellation never returns the
// same units twice.
func (s *service) releaseLines(ctx context.Context, order *models.Order, at time.Time, actor string) (int, error) {
	released := 0
	for i := range order.Items {
		item := &order.Items[i]
		if item.ReleasedAt != nil {
			continue
		}
		if err := s.inventory.ReleaseStock(ctx, order.ID, orderItems(order.Items[i:i+1]), actor); err != nil {
			return released, fmt.Errorf("line %d: %w", item.Position, err)
		}
		if _, err := s.repo.MarkLineReleased(ctx, item.ID, at); err != nil {
			return released, pkgerrors.WrapDB(err, "mark line released")
		}
		item.ReleasedAt = &at
		released++
	}
	return released, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) record(outcome Outcome) {
	s.metrics.IncOrderOutcome(string(outcome))
}

func validatePlaceOrder(input PlaceOrderInput) error {
	if strings.TrimSpace(input.CustomerName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}
	if err := fieldValidator.Var(strings.TrimSpace(input.CustomerEmail), "required,email"); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "valid customer email required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line item required")
	}
	for i, item := range input.Items {
		switch {
		case item.ProductID == uuid.Nil:
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: product id required", i))
		case item.Quantity < 1:
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: quantity must be at least 1", i))
		case item.UnitPrice.IsNegative():
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: unit price must not be negative", i))
		}
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "shipping "+err.Error())
	}
	if err := input.BillingAddress.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "billing "+err.Error())
	}
	return nil
}

func buildOrder(input PlaceOrderInput) *models.Order {
	items := make([]models.OrderLineItem, 0, len(input.Items))
	subtotal := decimal.Zero
	for i, item := range input.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderLineItem{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Name:        strings.TrimSpace(item.Name),
			Position:    i,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   lineTotal,
		})
	}

	var createdBy *string
	if actor := strings.TrimSpace(input.Actor); actor != "" {
		createdBy = &actor
	}
	return &models.Order{
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerEmail:   strings.TrimSpace(input.CustomerEmail),
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusUnpaid,
		Subtotal:        subtotal,
		Notes:           input.Notes,
		CreatedBy:       createdBy,
		Items:           items,
	}
}

func cartItems(items []LineItemInput) []inventory.CartItem {
	out := make([]inventory.CartItem, 0, len(items))
	for _, item := range items {
		out = append(out, inventory.CartItem{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Quantity:    item.Quantity,
		})
	}
	return out
}

func orderItems(items []models.OrderLineItem) []inventory.OrderItem {
	out := make([]inventory.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, inventory.OrderItem{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Quantity:    item.Quantity,
		})
	}
	return out
}
