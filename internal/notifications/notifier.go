package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OutboxNotifier queues customer and staff notifications as outbox events.
// The outbox publisher delivers them to Pub/Sub.
type OutboxNotifier struct {
	tx     txRunner
	outbox emitter
	logg   *logger.Logger
	now    func() time.Time
}

// NewOutboxNotifier validates dependencies and builds a notifier.
func NewOutboxNotifier(tx txRunner, out *outbox.Service, logg *logger.Logger) (*OutboxNotifier, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if out == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &OutboxNotifier{tx: tx, outbox: out, logg: logg, now: time.Now}, nil
}

// OrderPlaced requests an order confirmation for the customer.
func (n *OutboxNotifier) OrderPlaced(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order required")
	}
	return n.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventOrderConfirmationRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.UserActor(order.CreatedBy),
		Data: payloads.OrderConfirmationRequestedEvent{
			OrderID:       order.ID,
			CustomerName:  order.CustomerName,
			CustomerEmail: order.CustomerEmail,
			ItemCount:     len(order.Items),
			Subtotal:      order.Subtotal,
		},
	})
}

// OrderCancelled announces a cancellation whose stock has been released.
func (n *OutboxNotifier) OrderCancelled(ctx context.Context, order *models.Order, previous enums.OrderStatus) error {
	if order == nil {
		return fmt.Errorf("order required")
	}
	return n.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderCancelledEvent{
			OrderID:       order.ID,
			PreviousState: previous,
			ReleasedItems: len(order.Items),
		},
	})
}

// LowStockDetected publishes a scan result. Empty scans publish nothing and
// report false.
func (n *OutboxNotifier) LowStockDetected(ctx context.Context, overview *inventory.InventoryOverview) (bool, error) {
	if overview == nil || overview.Summary.Total == 0 {
		return false, nil
	}
	event := payloads.LowStockDetectedEvent{
		Threshold:  overview.Summary.Threshold,
		OutOfStock: overview.Summary.OutOfStock,
		Critical:   overview.Summary.Critical,
		Low:        overview.Summary.Low,
		Items:      make([]payloads.LowStockItem, 0, overview.Summary.Total),
	}
	for _, group := range [][]inventory.LowStockProduct{overview.OutOfStock, overview.Critical, overview.Low} {
		for _, item := range group {
			event.Items = append(event.Items, payloads.LowStockItem{
				ProductID:   item.ProductID,
				VariationID: item.VariationID,
				Name:        lowStockName(item),
				Stock:       int(item.CurrentStock),
				Level:       item.Status,
			})
		}
	}
	err := n.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventLowStockDetected,
		AggregateType: enums.AggregateInventory,
		AggregateID:   uuid.New(),
		Actor:         outbox.SystemActor("low-stock-scan"),
		Data:          event,
	})
	if err != nil {
		return false, err
	}
	n.logg.Info(n.logg.WithFields(ctx, map[string]any{
		"out_of_stock": event.OutOfStock,
		"critical":     event.Critical,
		"low":          event.Low,
	}), "low stock alert queued")
	return true, nil
}

func (n *OutboxNotifier) emit(ctx context.Context, event outbox.DomainEvent) error {
	event.OccurredAt = n.now().UTC()
	return n.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return n.outbox.Emit(ctx, tx, event)
	})
}

func lowStockName(item inventory.LowStockProduct) string {
	if item.VariationName == "" {
		return item.Name
	}
	return item.Name + " (" + item.VariationName + ")"
}
