package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type harness struct {
	conn       *gorm.DB
	products   *products.Repository
	ledger     *LedgerRepository
	queue      *memoryQueue
	deadLetter *DeadLetter
	accessor   *Accessor
	svc        Service
	registry   *prometheus.Registry
}

type harnessOption func(*AccessorParams)

func withLedger(w LedgerWriter) harnessOption {
	return func(p *AccessorParams) { p.Ledger = w }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.ProductVariation{}, &models.InventoryTransaction{}))

	h := &harness{
		conn:     conn,
		products: products.NewRepository(conn),
		ledger:   NewLedgerRepository(conn),
		queue:    newMemoryQueue(),
		registry: prometheus.NewRegistry(),
	}
	h.deadLetter, err = NewDeadLetter(h.queue, "sf:queue:ledger:dead_letter")
	require.NoError(t, err)

	params := AccessorParams{
		Tx:         db.FromGorm(conn),
		Products:   h.products,
		Ledger:     h.ledger,
		DeadLetter: h.deadLetter,
		Metrics:    metrics.NewInventoryMetrics(h.registry),
		Logger:     logger.Nop(),
		Now:        steppingClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	for _, opt := range opts {
		opt(&params)
	}
	h.accessor, err = NewAccessor(params)
	require.NoError(t, err)

	h.svc, err = NewService(ServiceParams{
		Tx:       db.FromGorm(conn),
		Products: h.products,
		Ledger:   h.ledger,
		Accessor: h.accessor,
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)
	return h
}

// steppingClock returns a clock that advances one second per call so ledger
// entries have a stable order.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func (h *harness) seedProduct(t *testing.T, name string, units, moq int, variations ...models.ProductVariation) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:             name,
		SKU:              "SKU-" + uuid.NewString()[:8],
		Price:            decimal.RequireFromString("12.50"),
		Units:            units,
		MinOrderQuantity: moq,
		IsActive:         true,
		StockStatus:      enums.StockStatusInStock,
		Variations:       variations,
	}
	require.NoError(t, h.products.CreateProduct(context.Background(), product))
	return product
}

func variation(color, size string, stock int) models.ProductVariation {
	return models.ProductVariation{
		Color:         color,
		Size:          size,
		SKU:           color + "-" + size + "-" + uuid.NewString()[:6],
		StockQuantity: stock,
		IsActive:      true,
	}
}

func (h *harness) variationStock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	v, err := h.products.FindVariation(context.Background(), id)
	require.NoError(t, err)
	return v.StockQuantity
}

func (h *harness) product(t *testing.T, id uuid.UUID) *models.Product {
	t.Helper()
	p, err := h.products.FindProduct(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (h *harness) ledgerEntries(t *testing.T, productID uuid.UUID) []models.InventoryTransaction {
	t.Helper()
	var rows []models.InventoryTransaction
	require.NoError(t, h.conn.Where("product_id = ?", productID).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func ptr[T any](v T) *T {
	return &v
}

type memoryQueue struct {
	mu      sync.Mutex
	lists   map[string][]string
	pushErr error
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{lists: make(map[string][]string)}
}

func (q *memoryQueue) Push(_ context.Context, key string, payloads ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pushErr != nil {
		return q.pushErr
	}
	q.lists[key] = append(q.lists[key], payloads...)
	return nil
}

func (q *memoryQueue) Pop(_ context.Context, key string) (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.lists[key]
	if len(list) == 0 {
		return "", false, nil
	}
	q.lists[key] = list[1:]
	return list[0], true, nil
}

func (q *memoryQueue) Len(_ context.Context, key string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.lists[key])), nil
}

type failingLedger struct {
	err   error
	calls int
}

func (f *failingLedger) Append(context.Context, *gorm.DB, *models.InventoryTransaction) error {
	f.calls++
	if f.err == nil {
		return errors.New("ledger unavailable")
	}
	return f.err
}
