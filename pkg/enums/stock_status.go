package enums

import "fmt"

// StockStatus is the derived availability label stored on a product.
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

var validStockStatuses = []StockStatus{
	StockStatusInStock,
	StockStatusLowStock,
	StockStatusOutOfStock,
}

// String implements fmt.Stringer.
func (s StockStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockStatus.
func (s StockStatus) IsValid() bool {
	for _, candidate := range validStockStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockStatus converts raw input into a StockStatus.
func ParseStockStatus(value string) (StockStatus, error) {
	for _, candidate := range validStockStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock status %q", value)
}

// LowStockLevel buckets a low stock report entry.
type LowStockLevel string

const (
	LowStockOut      LowStockLevel = "out"
	LowStockCritical LowStockLevel = "critical"
	LowStockLow      LowStockLevel = "low"
)

var validLowStockLevels = []LowStockLevel{
	LowStockOut,
	LowStockCritical,
	LowStockLow,
}

// String implements fmt.Stringer.
func (l LowStockLevel) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LowStockLevel.
func (l LowStockLevel) IsValid() bool {
	for _, candidate := range validLowStockLevels {
		if candidate == l {
			return true
		}
	}
	return false
}

// LowStockLevels lists the report buckets from most to least severe.
func LowStockLevels() []LowStockLevel {
	out := make([]LowStockLevel, len(validLowStockLevels))
	copy(out, validLowStockLevels)
	return out
}
