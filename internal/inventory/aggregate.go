package inventory

import (
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// DeriveStockStatus labels a product by its available units. A product is low
// on stock once it can no longer serve more than one minimum order.
func DeriveStockStatus(available, minOrderQuantity int) enums.StockStatus {
	if available <= 0 {
		return enums.StockStatusOutOfStock
	}
	floor := minOrderQuantity
	if floor < 1 {
		floor = 1
	}
	if available <= floor {
		return enums.StockStatusLowStock
	}
	return enums.StockStatusInStock
}

// ClassifyLowStock buckets a flagged entity for the low stock report.
func ClassifyLowStock(stock, threshold int) enums.LowStockLevel {
	switch {
	case stock <= 0:
		return enums.LowStockOut
	case stock*2 <= threshold:
		return enums.LowStockCritical
	default:
		return enums.LowStockLow
	}
}

// nextReserved applies the reservation bookkeeping rule for one mutation.
func nextReserved(previous, change int, txType enums.TransactionType) int {
	next := previous
	switch txType {
	case enums.TransactionSale:
		next += abs(change)
	case enums.TransactionReturn:
		next -= change
	}
	if next < 0 {
		return 0
	}
	return next
}

func floorAtZero(previous, change int) int {
	if next := previous + change; next > 0 {
		return next
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
