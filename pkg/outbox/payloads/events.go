package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderConfirmationRequestedEvent asks downstream mailers to confirm a placed order.
type OrderConfirmationRequestedEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	ItemCount     int             `json:"item_count"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

// OrderCancelledEvent is emitted once an order's stock has been released.
type OrderCancelledEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	PreviousState enums.OrderStatus `json:"previous_status"`
	ReleasedItems int               `json:"released_items"`
}

// LowStockItem is one flagged entry of a low stock scan.
type LowStockItem struct {
	ProductID   uuid.UUID           `json:"product_id"`
	VariationID *uuid.UUID          `json:"variation_id,omitempty"`
	Name        string              `json:"name"`
	Stock       int                 `json:"stock"`
	Level       enums.LowStockLevel `json:"level"`
}

// LowStockDetectedEvent summarises a low stock scan that flagged at least one item.
type LowStockDetectedEvent struct {
	Threshold  int            `json:"threshold"`
	OutOfStock int            `json:"out_of_stock"`
	Critical   int            `json:"critical"`
	Low        int            `json:"low"`
	Items      []LowStockItem `json:"items"`
}
