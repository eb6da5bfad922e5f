package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Product is a catalog listing. Stock lives on its variations; the unit
// columns here are a cached aggregate maintained by the inventory package.
// Products without variations keep their stock in Units.
type Product struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	SKU              string             `gorm:"column:sku;not null"`
	Name             string             `gorm:"column:name;not null"`
	Price            decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	Units            int                `gorm:"column:units;not null;default:0"`
	AvailableUnits   int                `gorm:"column:available_units;not null;default:0"`
	ReservedUnits    int                `gorm:"column:reserved_units;not null;default:0"`
	StockStatus      enums.StockStatus  `gorm:"column:stock_status;type:text;not null;default:'out_of_stock'"`
	MinOrderQuantity int                `gorm:"column:min_order_quantity;not null;default:1"`
	LastRestockedAt  *time.Time         `gorm:"column:last_restocked_at"`
	IsActive         bool               `gorm:"column:is_active;not null;default:true"`
	Variations       []ProductVariation `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductVariation is a stock-bearing color/size combination of a product.
type ProductVariation struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Color         string    `gorm:"column:color"`
	Size          string    `gorm:"column:size"`
	SKU           string    `gorm:"column:sku;not null"`
	StockQuantity int       `gorm:"column:stock_quantity;not null;default:0"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariation) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Label renders a human readable variation name like "Red / M".
func (v ProductVariation) Label() string {
	switch {
	case v.Color != "" && v.Size != "":
		return v.Color + " / " + v.Size
	case v.Color != "":
		return v.Color
	case v.Size != "":
		return v.Size
	default:
		return v.SKU
	}
}
