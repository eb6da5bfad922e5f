package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLineItem captures the snapshot of each item within an order.
// ReleasedAt is set once the line's stock has been returned on cancellation.
type OrderLineItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariationID *uuid.UUID      `gorm:"column:variation_id;type:uuid"`
	Name        string          `gorm:"column:name;not null"`
	Position    int             `gorm:"column:position;not null;default:0"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	ReleasedAt  *time.Time      `gorm:"column:released_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (li *OrderLineItem) BeforeCreate(*gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}
