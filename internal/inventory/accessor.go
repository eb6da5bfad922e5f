package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AccessorParams wires the stock accessor.
type AccessorParams struct {
	Tx         txRunner
	Products   *products.Repository
	Ledger     LedgerWriter
	DeadLetter *DeadLetter
	Metrics    *metrics.InventoryMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

// Accessor applies stock deltas to variations and flat products and keeps the
// parent product aggregate in step.
type Accessor struct {
	tx         txRunner
	products   *products.Repository
	ledger     LedgerWriter
	deadLetter *DeadLetter
	metrics    *metrics.InventoryMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewAccessor validates dependencies and returns an accessor.
func NewAccessor(params AccessorParams) (*Accessor, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger writer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Accessor{
		tx:         params.Tx,
		products:   params.Products,
		ledger:     params.Ledger,
		deadLetter: params.DeadLetter,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        now,
	}, nil
}

// ApplyDelta adds change to the target's stock, flooring at zero, records a
// ledger entry and recomputes the parent product aggregate. The target row and
// the product row are locked for the duration of the mutation. A failed ledger
// write is parked on the dead letter queue and never fails the mutation.
func (a *Accessor) ApplyDelta(ctx context.Context, target StockTarget, change int, txType enums.TransactionType, mc MutationContext) (*StockMutation, error) {
	if target.ProductID == uuid.Nil && target.VariationID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id or variation id required")
	}
	if !txType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", txType))
	}

	var (
		result    *StockMutation
		entry     *models.InventoryTransaction
		ledgerErr error
	)
	err := a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := a.products.WithTx(tx)

		var (
			product  *models.Product
			previous int
			next     int
		)
		if target.VariationID != nil {
			variation, err := repo.FindVariationForUpdate(ctx, *target.VariationID)
			if err != nil {
				return lookupError(err, "variation", *target.VariationID)
			}
			if target.ProductID != uuid.Nil && variation.ProductID != target.ProductID {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("variation %s does not belong to product %s", variation.ID, target.ProductID))
			}
			product, err = repo.FindProductForUpdate(ctx, variation.ProductID)
			if err != nil {
				return lookupError(err, "product", variation.ProductID)
			}
			previous = variation.StockQuantity
			next = floorAtZero(previous, change)
			if err := repo.UpdateVariationStock(ctx, variation.ID, next); err != nil {
				return pkgerrors.WrapDB(err, "update variation stock")
			}
		} else {
			var err error
			product, err = repo.FindProductForUpdate(ctx, target.ProductID)
			if err != nil {
				return lookupError(err, "product", target.ProductID)
			}
			previous = product.Units
			next = floorAtZero(previous, change)
			if err := repo.UpdateProductUnits(ctx, product.ID, next); err != nil {
				return pkgerrors.WrapDB(err, "update product units")
			}
			product.Units = next
		}

		agg, err := a.recompute(ctx, repo, product, change, txType)
		if err != nil {
			return err
		}

		entry = &models.InventoryTransaction{
			ID:               uuid.New(),
			ProductID:        product.ID,
			VariationID:      target.VariationID,
			OrderID:          mc.OrderID,
			TransactionType:  txType,
			QuantityChange:   change,
			PreviousQuantity: previous,
			NewQuantity:      next,
			Notes:            mc.Notes,
			CreatedBy:        mc.Actor,
			CreatedAt:        a.now().UTC(),
		}
		ledgerErr = tx.Transaction(func(sp *gorm.DB) error {
			return a.ledger.Append(ctx, sp, entry)
		})

		result = &StockMutation{
			ProductID:     product.ID,
			VariationID:   target.VariationID,
			Type:          txType,
			Change:        change,
			Previous:      previous,
			New:           next,
			Aggregate:     agg,
			LedgerEntryID: entry.ID,
			LedgerWritten: ledgerErr == nil,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ledgerErr != nil {
		a.parkLedgerEntry(ctx, entry, ledgerErr)
	}
	a.metrics.ObserveMutation(txType.String(), result.New-result.Previous)
	return result, nil
}

// recompute re-derives the product aggregate from the locked product row and
// the current variation stock.
func (a *Accessor) recompute(ctx context.Context, repo *products.Repository, product *models.Product, change int, txType enums.TransactionType) (products.StockAggregate, error) {
	total, count, err := repo.SumActiveVariationStock(ctx, product.ID)
	if err != nil {
		return products.StockAggregate{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum variation stock")
	}
	available := total
	if count == 0 {
		available = product.Units
	}

	agg := products.StockAggregate{
		AvailableUnits: available,
		ReservedUnits:  nextReserved(product.ReservedUnits, change, txType),
		StockStatus:    DeriveStockStatus(available, product.MinOrderQuantity),
	}
	if txType == enums.TransactionRestock {
		at := a.now().UTC()
		agg.LastRestockedAt = &at
	} else {
		agg.LastRestockedAt = product.LastRestockedAt
	}
	if err := repo.UpdateAggregate(ctx, product.ID, agg); err != nil {
		return agg, pkgerrors.WrapDB(err, "update product aggregate")
	}
	return agg, nil
}

func (a *Accessor) parkLedgerEntry(ctx context.Context, entry *models.InventoryTransaction, cause error) {
	a.metrics.IncLedgerFailure()
	logCtx := a.logg.WithFields(ctx, map[string]any{
		"ledger_entry_id":  entry.ID.String(),
		"product_id":       entry.ProductID.String(),
		"transaction_type": entry.TransactionType.String(),
	})
	a.logg.Error(logCtx, "inventory ledger write failed", cause)

	if a.deadLetter == nil {
		return
	}
	if err := a.deadLetter.Park(ctx, entry); err != nil {
		a.logg.Error(logCtx, "inventory ledger dead letter failed", err)
	}
}

func lookupError(err error, kind string, id uuid.UUID) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s %s not found", kind, id))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("load %s %s", kind, id))
}
