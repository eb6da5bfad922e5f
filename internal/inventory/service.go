package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// DefaultLowStockThreshold applies when neither the caller nor config provide one.
const DefaultLowStockThreshold = 10

// Service exposes stock accounting to order placement and admin tooling.
type Service interface {
	CheckStockAvailability(ctx context.Context, items []CartItem) (*AvailabilityResult, error)
	ReserveStock(ctx context.Context, orderID uuid.UUID, items []OrderItem, actor string) error
	ReleaseStock(ctx context.Context, orderID uuid.UUID, items []OrderItem, actor string) error
	AdjustStock(ctx context.Context, input AdjustStockInput) (*StockMutation, error)
	BulkUpdateStock(ctx context.Context, updates []BulkUpdateEntry, actor string) (*BulkUpdateResult, error)
	GetLowStockProducts(ctx context.Context, threshold int) ([]LowStockProduct, error)
	ResolveThreshold(threshold int) int
	GetInventoryOverview(ctx context.Context, threshold int) (*InventoryOverview, error)
	GetInventoryHistory(ctx context.Context, query HistoryQuery) (*HistoryResult, error)
	ReconcileProductAggregate(ctx context.Context, productID uuid.UUID) (*products.StockAggregate, error)
	ReconcileAll(ctx context.Context) (int, error)
}

// ServiceParams wires the inventory service.
type ServiceParams struct {
	Tx               txRunner
	Products         *products.Repository
	Ledger           *LedgerRepository
	Accessor         *Accessor
	Logger           *logger.Logger
	DefaultThreshold int
}

type service struct {
	tx        txRunner
	products  *products.Repository
	ledger    *LedgerRepository
	accessor  *Accessor
	logg      *logger.Logger
	threshold int
}

// NewService validates dependencies and builds the inventory service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Accessor == nil {
		return nil, fmt.Errorf("stock accessor required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	threshold := params.DefaultThreshold
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return &service{
		tx:        params.Tx,
		products:  params.Products,
		ledger:    params.Ledger,
		accessor:  params.Accessor,
		logg:      params.Logger,
		threshold: threshold,
	}, nil
}

func (s *service) CheckStockAvailability(ctx context.Context, items []CartItem) (*AvailabilityResult, error) {
	result := &AvailabilityResult{Available: true, UnavailableItems: []UnavailableItem{}}
	for _, item := range items {
		name, stock, err := s.currentStock(ctx, item.ProductID, item.VariationID)
		if err != nil {
			return nil, err
		}
		if stock >= item.Quantity {
			continue
		}
		result.UnavailableItems = append(result.UnavailableItems, UnavailableItem{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Name:        name,
			Requested:   item.Quantity,
			Available:   stock,
		})
	}
	result.Available = len(result.UnavailableItems) == 0
	return result, nil
}

// currentStock resolves the stock of a cart line. Missing or inactive rows read as zero.
func (s *service) currentStock(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID) (string, int, error) {
	product, err := s.products.FindProduct(ctx, productID)
	if err != nil && !db.IsNotFound(err) {
		return "", 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	name := "Unknown product"
	if product != nil {
		name = product.Name
	}

	if variationID == nil {
		if product == nil || !product.IsActive {
			return name, 0, nil
		}
		return name, product.Units, nil
	}

	variation, err := s.products.FindVariation(ctx, *variationID)
	if err != nil {
		if db.IsNotFound(err) {
			return name, 0, nil
		}
		return "", 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variation")
	}
	if product != nil && variation.ProductID == product.ID {
		name = fmt.Sprintf("%s (%s)", product.Name, variation.Label())
	} else {
		return name, 0, nil
	}
	if !variation.IsActive || !product.IsActive {
		return name, 0, nil
	}
	return name, variation.StockQuantity, nil
}

func (s *service) ReserveStock(ctx context.Context, orderID uuid.UUID, items []OrderItem, actor string) error {
	return s.applyOrderItems(ctx, orderID, items, actor, enums.TransactionSale, -1)
}

func (s *service) ReleaseStock(ctx context.Context, orderID uuid.UUID, items []OrderItem, actor string) error {
	return s.applyOrderItems(ctx, orderID, items, actor, enums.TransactionReturn, 1)
}

// applyOrderItems mutates items one at a time and stops at the first failure.
// Items applied before the failure stay applied.
func (s *service) applyOrderItems(ctx context.Context, orderID uuid.UUID, items []OrderItem, actor string, txType enums.TransactionType, sign int) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	mc := MutationContext{OrderID: &orderID, Actor: optionalString(actor)}
	for i, item := range items {
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: quantity must be positive", i))
		}
		target := StockTarget{ProductID: item.ProductID, VariationID: item.VariationID}
		if _, err := s.accessor.ApplyDelta(ctx, target, sign*item.Quantity, txType, mc); err != nil {
			return fmt.Errorf("%s item %d of order %s: %w", txType, i, orderID, err)
		}
	}
	return nil
}

func (s *service) AdjustStock(ctx context.Context, input AdjustStockInput) (*StockMutation, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.QuantityChange == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity change must not be zero")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}

	txType := input.Type
	if txType == "" {
		txType = enums.TransactionAdjustment
	}
	switch txType {
	case enums.TransactionAdjustment:
	case enums.TransactionRestock:
		if input.QuantityChange < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("transaction type %q not allowed for manual adjustments", txType))
	}

	target := StockTarget{ProductID: input.ProductID, VariationID: input.VariationID}
	return s.accessor.ApplyDelta(ctx, target, input.QuantityChange, txType, MutationContext{
		Notes: &reason,
		Actor: optionalString(input.Actor),
	})
}

func (s *service) BulkUpdateStock(ctx context.Context, updates []BulkUpdateEntry, actor string) (*BulkUpdateResult, error) {
	result := &BulkUpdateResult{Errors: []string{}}
	for _, update := range updates {
		if err := s.applyBulkEntry(ctx, update, actor); err != nil {
			result.Failed++
			msg := errorText(err)
			if !strings.Contains(msg, update.VariationID.String()) {
				msg = fmt.Sprintf("variation %s: %s", update.VariationID, msg)
			}
			result.Errors = append(result.Errors, msg)
			continue
		}
		result.Success++
	}
	return result, nil
}

func (s *service) applyBulkEntry(ctx context.Context, update BulkUpdateEntry, actor string) error {
	if update.VariationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variation id required")
	}
	variation, err := s.products.FindVariation(ctx, update.VariationID)
	if err != nil {
		return lookupError(err, "variation", update.VariationID)
	}
	variationID := variation.ID
	_, err = s.AdjustStock(ctx, AdjustStockInput{
		ProductID:      variation.ProductID,
		VariationID:    &variationID,
		QuantityChange: update.Quantity,
		Reason:         update.Reason,
		Actor:          actor,
	})
	return err
}

// ResolveThreshold returns the configured default for non-positive thresholds.
func (s *service) ResolveThreshold(threshold int) int {
	if threshold <= 0 {
		return s.threshold
	}
	return threshold
}

func (s *service) GetLowStockProducts(ctx context.Context, threshold int) ([]LowStockProduct, error) {
	threshold = s.ResolveThreshold(threshold)

	flat, err := s.products.ListLowStockProducts(ctx, threshold)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock products")
	}
	variations, err := s.products.ListLowStockVariations(ctx, threshold)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock variations")
	}

	out := make([]LowStockProduct, 0, len(flat)+len(variations))
	for _, p := range flat {
		productThreshold := threshold
		if p.MinOrderQuantity > productThreshold {
			productThreshold = p.MinOrderQuantity
		}
		out = append(out, LowStockProduct{
			ProductID:    p.ID,
			Name:         p.Name,
			SKU:          p.SKU,
			CurrentStock: types.StockCount(p.Units),
			Threshold:    productThreshold,
			Status:       ClassifyLowStock(p.Units, threshold),
		})
	}
	for _, v := range variations {
		variationID := v.ID
		out = append(out, LowStockProduct{
			ProductID:     v.ProductID,
			VariationID:   &variationID,
			Name:          v.ProductName,
			SKU:           v.SKU,
			CurrentStock:  types.StockCount(v.StockQuantity),
			Threshold:     threshold,
			Status:        ClassifyLowStock(v.StockQuantity, threshold),
			IsVariation:   true,
			VariationName: v.Label(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CurrentStock != out[j].CurrentStock {
			return out[i].CurrentStock < out[j].CurrentStock
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].VariationName < out[j].VariationName
	})
	return out, nil
}

func (s *service) GetInventoryOverview(ctx context.Context, threshold int) (*InventoryOverview, error) {
	threshold = s.ResolveThreshold(threshold)
	items, err := s.GetLowStockProducts(ctx, threshold)
	if err != nil {
		return nil, err
	}

	overview := &InventoryOverview{
		OutOfStock: []LowStockProduct{},
		Critical:   []LowStockProduct{},
		Low:        []LowStockProduct{},
	}
	for _, item := range items {
		switch item.Status {
		case enums.LowStockOut:
			overview.OutOfStock = append(overview.OutOfStock, item)
		case enums.LowStockCritical:
			overview.Critical = append(overview.Critical, item)
		default:
			overview.Low = append(overview.Low, item)
		}
	}
	overview.Summary = OverviewSummary{
		Total:      len(items),
		OutOfStock: len(overview.OutOfStock),
		Critical:   len(overview.Critical),
		Low:        len(overview.Low),
		Threshold:  threshold,
	}
	return overview, nil
}

func (s *service) GetInventoryHistory(ctx context.Context, query HistoryQuery) (*HistoryResult, error) {
	if query.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	rows, next, err := s.ledger.List(ctx, query)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid history cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory history")
	}
	summary, err := s.ledger.Summarize(ctx, query.ProductID, query.VariationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize inventory history")
	}
	return &HistoryResult{
		Transactions: rows,
		Summary:      summary,
		NextCursor:   next,
	}, nil
}

func (s *service) ReconcileProductAggregate(ctx context.Context, productID uuid.UUID) (*products.StockAggregate, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	var agg products.StockAggregate
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.products.WithTx(tx)
		product, err := repo.FindProductForUpdate(ctx, productID)
		if err != nil {
			return lookupError(err, "product", productID)
		}
		total, count, err := repo.SumActiveVariationStock(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum variation stock")
		}
		available := total
		if count == 0 {
			available = product.Units
		}
		agg = products.StockAggregate{
			AvailableUnits:  available,
			ReservedUnits:   product.ReservedUnits,
			StockStatus:     DeriveStockStatus(available, product.MinOrderQuantity),
			LastRestockedAt: product.LastRestockedAt,
		}
		if agg.AvailableUnits == product.AvailableUnits && agg.StockStatus == product.StockStatus {
			return nil
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id":         productID.String(),
			"cached_available":   product.AvailableUnits,
			"derived_available":  agg.AvailableUnits,
			"cached_stock_state": product.StockStatus,
		})
		s.logg.Warn(logCtx, "product stock aggregate drifted, rewriting")
		if err := repo.UpdateAggregate(ctx, productID, agg); err != nil {
			return pkgerrors.WrapDB(err, "update product aggregate")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (s *service) ReconcileAll(ctx context.Context) (int, error) {
	ids, err := s.products.ListProductIDs(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := s.ReconcileProductAggregate(ctx, id); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func errorText(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}
