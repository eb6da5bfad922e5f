package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type testEnv struct {
	conn      *gorm.DB
	products  *products.Repository
	repo      Repository
	inventory inventory.Service
	registry  *prometheus.Registry
	metrics   *metrics.InventoryMetrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.ProductVariation{},
		&models.InventoryTransaction{},
		&models.Order{},
		&models.OrderLineItem{},
	))

	registry := prometheus.NewRegistry()
	env := &testEnv{
		conn:     conn,
		products: products.NewRepository(conn),
		repo:     NewRepository(conn),
		registry: registry,
		metrics:  metrics.NewInventoryMetrics(registry),
	}
	ledger := inventory.NewLedgerRepository(conn)
	accessor, err := inventory.NewAccessor(inventory.AccessorParams{
		Tx:       db.FromGorm(conn),
		Products: env.products,
		Ledger:   ledger,
		Metrics:  env.metrics,
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)
	env.inventory, err = inventory.NewService(inventory.ServiceParams{
		Tx:       db.FromGorm(conn),
		Products: env.products,
		Ledger:   ledger,
		Accessor: accessor,
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)
	return env
}

func (e *testEnv) service(t *testing.T, reserver StockReserver, notifier Notifier) Service {
	t.Helper()
	return e.serviceWithRepo(t, e.repo, reserver, notifier)
}

func (e *testEnv) serviceWithRepo(t *testing.T, repo Repository, reserver StockReserver, notifier Notifier) Service {
	t.Helper()
	if reserver == nil {
		reserver = e.inventory
	}
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Inventory: reserver,
		Notifier:  notifier,
		Metrics:   e.metrics,
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func (e *testEnv) seedProduct(t *testing.T, name string, stocks ...int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:             name,
		SKU:              "SKU-" + uuid.NewString()[:8],
		Price:            decimal.RequireFromString("20.00"),
		MinOrderQuantity: 1,
		IsActive:         true,
		StockStatus:      enums.StockStatusInStock,
	}
	for i, stock := range stocks {
		product.Variations = append(product.Variations, models.ProductVariation{
			Color:         "Black",
			Size:          []string{"S", "M", "L", "XL"}[i%4],
			SKU:           "VAR-" + uuid.NewString()[:8],
			StockQuantity: stock,
			IsActive:      true,
		})
	}
	require.NoError(t, e.products.CreateProduct(context.Background(), product))
	return product
}

func (e *testEnv) variationStock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	v, err := e.products.FindVariation(context.Background(), id)
	require.NoError(t, err)
	return v.StockQuantity
}

func (e *testEnv) countOrders(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.conn.Model(&models.Order{}).Count(&count).Error)
	return count
}

func (e *testEnv) countLineItems(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.conn.Model(&models.OrderLineItem{}).Count(&count).Error)
	return count
}

func (e *testEnv) outcomeCount(t *testing.T, outcome Outcome) float64 {
	t.Helper()
	families, err := e.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "storefront_order_placements_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			if hasLabel(metric, "outcome", string(outcome)) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func orderInput(items ...LineItemInput) PlaceOrderInput {
	address := types.Address{Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701"}
	return PlaceOrderInput{
		CustomerName:    "Dana Reyes",
		CustomerEmail:   "dana@example.com",
		ShippingAddress: address,
		BillingAddress:  address,
		Items:           items,
		Actor:           "checkout",
	}
}

func line(product *models.Product, variation int, quantity int) LineItemInput {
	v := product.Variations[variation]
	return LineItemInput{
		ProductID:   product.ID,
		VariationID: &v.ID,
		Name:        product.Name + " " + v.Size,
		Quantity:    quantity,
		UnitPrice:   decimal.RequireFromString("20.00"),
	}
}

// vanishingReserver passes the availability check and then removes a
// variation so the reservation that follows fails part way through.
type vanishingReserver struct {
	inventory.Service
	conn   *gorm.DB
	remove uuid.UUID
}

func (v *vanishingReserver) CheckStockAvailability(ctx context.Context, items []inventory.CartItem) (*inventory.AvailabilityResult, error) {
	result, err := v.Service.CheckStockAvailability(ctx, items)
	if err != nil {
		return nil, err
	}
	if err := v.conn.Delete(&models.ProductVariation{}, "id = ?", v.remove).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// flakyReleaser fails the release of one variation a fixed number of times.
type flakyReleaser struct {
	inventory.Service
	variation uuid.UUID
	failures  int
}

func (f *flakyReleaser) ReleaseStock(ctx context.Context, orderID uuid.UUID, items []inventory.OrderItem, actor string) error {
	for _, item := range items {
		if item.VariationID != nil && *item.VariationID == f.variation && f.failures > 0 {
			f.failures--
			return errors.New("variation row locked out")
		}
	}
	return f.Service.ReleaseStock(ctx, orderID, items, actor)
}

type recordingNotifier struct {
	placed    []uuid.UUID
	cancelled []enums.OrderStatus
	err       error
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, order *models.Order) error {
	n.placed = append(n.placed, order.ID)
	return n.err
}

func (n *recordingNotifier) OrderCancelled(_ context.Context, _ *models.Order, previous enums.OrderStatus) error {
	n.cancelled = append(n.cancelled, previous)
	return n.err
}

type failingDeleteRepo struct {
	Repository
}

func (failingDeleteRepo) DeleteOrder(context.Context, uuid.UUID) error {
	return errors.New("connection reset")
}
