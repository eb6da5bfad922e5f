package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// InventoryTransaction is an append-only ledger entry describing one stock mutation.
type InventoryTransaction struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID        uuid.UUID             `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	VariationID      *uuid.UUID            `gorm:"column:variation_id;type:uuid;index" json:"variation_id,omitempty"`
	OrderID          *uuid.UUID            `gorm:"column:order_id;type:uuid" json:"order_id,omitempty"`
	TransactionType  enums.TransactionType `gorm:"column:transaction_type;type:text;not null" json:"transaction_type"`
	QuantityChange   int                   `gorm:"column:quantity_change;not null" json:"quantity_change"`
	PreviousQuantity int                   `gorm:"column:previous_quantity;not null" json:"previous_quantity"`
	NewQuantity      int                   `gorm:"column:new_quantity;not null" json:"new_quantity"`
	Notes            *string               `gorm:"column:notes" json:"notes,omitempty"`
	CreatedBy        *string               `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt        time.Time             `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (t *InventoryTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return nil
}
