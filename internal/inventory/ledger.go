package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// LedgerWriter appends ledger entries. A nil tx writes outside any transaction.
type LedgerWriter interface {
	Append(ctx context.Context, tx *gorm.DB, entry *models.InventoryTransaction) error
}

// LedgerRepository persists the append-only inventory ledger.
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository binds a ledger repository to the provided connection.
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append inserts one ledger entry.
func (r *LedgerRepository) Append(ctx context.Context, tx *gorm.DB, entry *models.InventoryTransaction) error {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	return conn.WithContext(ctx).Create(entry).Error
}

func (r *LedgerRepository) scoped(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID) *gorm.DB {
	qb := r.db.WithContext(ctx).
		Model(&models.InventoryTransaction{}).
		Where("product_id = ?", productID)
	if variationID != nil {
		qb = qb.Where("variation_id = ?", *variationID)
	}
	return qb
}

// List returns one page of entries, newest first, and the cursor of the next page.
func (r *LedgerRepository) List(ctx context.Context, query HistoryQuery) ([]models.InventoryTransaction, string, error) {
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.scoped(ctx, query.ProductID, query.VariationID)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.InventoryTransaction
	err = qb.Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(query.Limit)).
		Find(&rows).
		Error
	if err != nil {
		return nil, "", err
	}

	rows, next := pagination.Trim(rows, query.Limit, func(row models.InventoryTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return rows, next, nil
}

// Summarize aggregates the full ledger of a product or variation.
func (r *LedgerRepository) Summarize(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID) (HistorySummary, error) {
	summary := HistorySummary{CountsByType: make(map[enums.TransactionType]int)}
	for _, txType := range enums.TransactionTypes() {
		summary.CountsByType[txType] = 0
	}

	var groups []struct {
		TransactionType enums.TransactionType
		Entries         int64
		Units           int64
	}
	err := r.scoped(ctx, productID, variationID).
		Select("transaction_type, COUNT(*) AS entries, COALESCE(SUM(ABS(quantity_change)), 0) AS units").
		Group("transaction_type").
		Scan(&groups).
		Error
	if err != nil {
		return summary, err
	}
	for _, g := range groups {
		summary.CountsByType[g.TransactionType] = int(g.Entries)
		summary.TotalTransactions += int(g.Entries)
		switch g.TransactionType {
		case enums.TransactionSale:
			summary.TotalSold = int(g.Units)
		case enums.TransactionReturn:
			summary.TotalReturned = int(g.Units)
		}
	}

	var latest models.InventoryTransaction
	err = r.scoped(ctx, productID, variationID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&latest).
		Error
	if err != nil {
		return summary, err
	}
	if latest.ID != uuid.Nil {
		summary.CurrentStock = types.StockCount(latest.NewQuantity)
		at := latest.CreatedAt
		summary.LastActivityAt = &at
	}
	return summary, nil
}

// DeadLetter parks ledger entries that failed to write so they can be replayed later.
type DeadLetter struct {
	queue redis.Queue
	key   string
}

// NewDeadLetter builds a dead letter backed by a Redis list.
func NewDeadLetter(queue redis.Queue, key string) (*DeadLetter, error) {
	if queue == nil {
		return nil, fmt.Errorf("dead letter queue required")
	}
	if key == "" {
		return nil, fmt.Errorf("dead letter key required")
	}
	return &DeadLetter{queue: queue, key: key}, nil
}

// Park serialises an entry onto the queue.
func (d *DeadLetter) Park(ctx context.Context, entry *models.InventoryTransaction) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return d.queue.Push(ctx, d.key, string(payload))
}

// Pending reports how many entries are waiting.
func (d *DeadLetter) Pending(ctx context.Context) (int64, error) {
	return d.queue.Len(ctx, d.key)
}

// Replay pops up to limit entries and appends them to the ledger. Entries that
// fail again are pushed back; entries already present are dropped.
func (d *DeadLetter) Replay(ctx context.Context, ledger LedgerWriter, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		written  int
		retry    []string
		combined error
	)
	for i := 0; i < limit; i++ {
		raw, ok, err := d.queue.Pop(ctx, d.key)
		if err != nil {
			combined = multierr.Append(combined, fmt.Errorf("pop dead letter: %w", err))
			break
		}
		if !ok {
			break
		}

		var entry models.InventoryTransaction
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("decode dead letter: %w", err))
			continue
		}
		if err := ledger.Append(ctx, nil, &entry); err != nil {
			if db.IsUniqueViolation(err, "") {
				continue
			}
			retry = append(retry, raw)
			combined = multierr.Append(combined, fmt.Errorf("replay ledger entry %s: %w", entry.ID, err))
			continue
		}
		written++
	}

	if len(retry) > 0 {
		if err := d.queue.Push(ctx, d.key, retry...); err != nil {
			combined = multierr.Append(combined, fmt.Errorf("requeue dead letters: %w", err))
		}
	}
	return written, combined
}
