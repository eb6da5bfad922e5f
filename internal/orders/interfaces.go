package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	RevertCancelled(ctx context.Context, id uuid.UUID, previous enums.OrderStatus) error
	MarkLineReleased(ctx context.Context, lineID uuid.UUID, at time.Time) (bool, error)
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// StockReserver is the slice of the inventory service order placement drives.
type StockReserver interface {
	CheckStockAvailability(ctx context.Context, items []inventory.CartItem) (*inventory.AvailabilityResult, error)
	ReserveStock(ctx context.Context, orderID uuid.UUID, items []inventory.OrderItem, actor string) error
	ReleaseStock(ctx context.Context, orderID uuid.UUID, items []inventory.OrderItem, actor string) error
}

// Notifier is told about placed and cancelled orders. Delivery is best effort.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *models.Order) error
	OrderCancelled(ctx context.Context, order *models.Order, previous enums.OrderStatus) error
}
