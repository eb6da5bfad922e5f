package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is a customer purchase.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CustomerName    string              `gorm:"column:customer_name;not null"`
	CustomerEmail   string              `gorm:"column:customer_email;not null"`
	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;not null"`
	BillingAddress  types.Address       `gorm:"column:billing_address;type:jsonb;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Notes           *string             `gorm:"column:notes"`
	CreatedBy       *string             `gorm:"column:created_by"`
	Items           []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CanceledAt      *time.Time          `gorm:"column:canceled_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
