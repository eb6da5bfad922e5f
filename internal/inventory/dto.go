package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// StockTarget names the stock-bearing row of a mutation: a variation when
// VariationID is set, otherwise the flat stock of the product.
type StockTarget struct {
	ProductID   uuid.UUID
	VariationID *uuid.UUID
}

// MutationContext carries the audit fields recorded with a ledger entry.
type MutationContext struct {
	OrderID *uuid.UUID
	Notes   *string
	Actor   *string
}

// StockMutation describes one applied delta.
type StockMutation struct {
	ProductID     uuid.UUID
	VariationID   *uuid.UUID
	Type          enums.TransactionType
	Change        int
	Previous      int
	New           int
	Aggregate     products.StockAggregate
	LedgerEntryID uuid.UUID
	LedgerWritten bool
}

// CartItem is one line of an availability check.
type CartItem struct {
	ProductID   uuid.UUID  `json:"productId"`
	VariationID *uuid.UUID `json:"variationId,omitempty"`
	Quantity    int        `json:"quantity"`
}

// OrderItem is one line of a reservation or release.
type OrderItem struct {
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	Quantity    int
}

// UnavailableItem reports a cart line the current stock cannot serve.
type UnavailableItem struct {
	ProductID   uuid.UUID  `json:"productId"`
	VariationID *uuid.UUID `json:"variationId,omitempty"`
	Name        string     `json:"name"`
	Requested   int        `json:"requested"`
	Available   int        `json:"available"`
}

// AvailabilityResult is the outcome of CheckStockAvailability.
type AvailabilityResult struct {
	Available        bool              `json:"available"`
	UnavailableItems []UnavailableItem `json:"unavailableItems"`
}

// AdjustStockInput is a manual stock correction. Type defaults to adjustment;
// restock is accepted for positive deliveries.
type AdjustStockInput struct {
	ProductID      uuid.UUID
	VariationID    *uuid.UUID
	QuantityChange int
	Reason         string
	Actor          string
	Type           enums.TransactionType
}

// BulkUpdateEntry is one line of a bulk update. Quantity is a signed delta.
type BulkUpdateEntry struct {
	VariationID uuid.UUID `json:"variationId"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason"`
}

// BulkUpdateResult tallies a bulk update.
type BulkUpdateResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// LowStockProduct is one flagged product or variation.
type LowStockProduct struct {
	ProductID     uuid.UUID           `json:"productId"`
	VariationID   *uuid.UUID          `json:"variationId,omitempty"`
	Name          string              `json:"name"`
	SKU           string              `json:"sku"`
	CurrentStock  types.StockCount    `json:"currentStock"`
	Threshold     int                 `json:"threshold"`
	Status        enums.LowStockLevel `json:"status"`
	IsVariation   bool                `json:"isVariation"`
	VariationName string              `json:"variationName,omitempty"`
}

// OverviewSummary counts the overview buckets.
type OverviewSummary struct {
	Total      int `json:"total"`
	OutOfStock int `json:"outOfStock"`
	Critical   int `json:"critical"`
	Low        int `json:"low"`
	Threshold  int `json:"threshold"`
}

// InventoryOverview groups the low stock report by level.
type InventoryOverview struct {
	OutOfStock []LowStockProduct `json:"outOfStock"`
	Critical   []LowStockProduct `json:"critical"`
	Low        []LowStockProduct `json:"low"`
	Summary    OverviewSummary   `json:"summary"`
}

// HistoryQuery selects ledger entries for a product, optionally narrowed to one variation.
type HistoryQuery struct {
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	Limit       int
	Cursor      string
}

// HistorySummary is derived from the full ledger of the queried target.
type HistorySummary struct {
	TotalTransactions int                           `json:"totalTransactions"`
	CountsByType      map[enums.TransactionType]int `json:"countsByType"`
	TotalSold         int                           `json:"totalSold"`
	TotalReturned     int                           `json:"totalReturned"`
	CurrentStock      types.StockCount              `json:"currentStock"`
	LastActivityAt    *time.Time                    `json:"lastActivityAt,omitempty"`
}

// HistoryResult is one page of ledger entries plus the summary.
type HistoryResult struct {
	Transactions []models.InventoryTransaction `json:"transactions"`
	Summary      HistorySummary                `json:"summary"`
	NextCursor   string                        `json:"nextCursor,omitempty"`
}
