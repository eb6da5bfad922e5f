package products

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.ProductVariation{}))
	return conn
}

func seedProduct(t *testing.T, repo *Repository, name string, units, moq int, variations ...models.ProductVariation) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:             name,
		SKU:              "SKU-" + uuid.NewString()[:8],
		Price:            decimal.RequireFromString("19.99"),
		Units:            units,
		MinOrderQuantity: moq,
		IsActive:         true,
		StockStatus:      enums.StockStatusInStock,
		Variations:       variations,
	}
	require.NoError(t, repo.CreateProduct(context.Background(), product))
	return product
}

func TestCreateAndFindProductWithVariations(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()

	product := seedProduct(t, repo, "Tee", 0, 1,
		models.ProductVariation{Color: "Red", Size: "M", SKU: "TEE-R-M", StockQuantity: 4, IsActive: true},
		models.ProductVariation{Color: "Blue", Size: "L", SKU: "TEE-B-L", StockQuantity: 6, IsActive: true},
	)
	require.NotEqual(t, uuid.Nil, product.ID)

	found, err := repo.FindProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tee", found.Name)

	variation, err := repo.FindVariationForUpdate(ctx, product.Variations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, variation.ProductID)
	assert.Equal(t, "Red / M", variation.Label())

	_, err = repo.FindVariation(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSumActiveVariationStockIgnoresInactive(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()

	product := seedProduct(t, repo, "Hoodie", 0, 1,
		models.ProductVariation{Color: "Black", SKU: "H-B", StockQuantity: 3, IsActive: true},
		models.ProductVariation{Color: "Grey", SKU: "H-G", StockQuantity: 5, IsActive: true},
	)
	inactive := &models.ProductVariation{ProductID: product.ID, Color: "Pink", SKU: "H-P", StockQuantity: 50}
	require.NoError(t, repo.CreateVariation(ctx, inactive))
	require.NoError(t, repo.DB(ctx).Model(inactive).Update("is_active", false).Error)

	total, count, err := repo.SumActiveVariationStock(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, total)
	assert.Equal(t, 2, count)

	total, count, err = repo.SumActiveVariationStock(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, count)
}

func TestUpdateStockAndAggregate(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()

	product := seedProduct(t, repo, "Mug", 10, 1,
		models.ProductVariation{Color: "White", SKU: "MUG-W", StockQuantity: 2, IsActive: true},
	)

	require.NoError(t, repo.UpdateVariationStock(ctx, product.Variations[0].ID, 0))
	require.NoError(t, repo.UpdateProductUnits(ctx, product.ID, 7))

	restocked := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateAggregate(ctx, product.ID, StockAggregate{
		AvailableUnits:  0,
		ReservedUnits:   2,
		StockStatus:     enums.StockStatusOutOfStock,
		LastRestockedAt: &restocked,
	}))

	found, err := repo.FindProductForUpdate(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, found.Units)
	assert.Equal(t, 0, found.AvailableUnits)
	assert.Equal(t, 2, found.ReservedUnits)
	assert.Equal(t, enums.StockStatusOutOfStock, found.StockStatus)
	require.NotNil(t, found.LastRestockedAt)

	variation, err := repo.FindVariation(ctx, product.Variations[0].ID)
	require.NoError(t, err)
	assert.Zero(t, variation.StockQuantity)

	require.NoError(t, repo.UpdateAggregate(ctx, product.ID, StockAggregate{AvailableUnits: 3, StockStatus: enums.StockStatusLowStock}))
	found, err = repo.FindProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, found.AvailableUnits)
	assert.NotNil(t, found.LastRestockedAt, "restock time kept when not provided")
}

func TestListLowStock(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()

	flatLow := seedProduct(t, repo, "Sticker", 3, 1)
	seedProduct(t, repo, "Poster", 40, 1)
	moqBound := seedProduct(t, repo, "Crate", 15, 20)
	withVariations := seedProduct(t, repo, "Cap", 0, 1,
		models.ProductVariation{Color: "Olive", SKU: "CAP-O", StockQuantity: 1, IsActive: true},
		models.ProductVariation{Color: "Navy", SKU: "CAP-N", StockQuantity: 30, IsActive: true},
	)

	products, err := repo.ListLowStockProducts(ctx, 10)
	require.NoError(t, err)
	ids := map[uuid.UUID]bool{}
	for _, p := range products {
		ids[p.ID] = true
	}
	assert.True(t, ids[flatLow.ID])
	assert.True(t, ids[moqBound.ID])
	assert.True(t, ids[withVariations.ID], "flat units are flagged even when variations carry stock")
	assert.Len(t, products, 3)

	variations, err := repo.ListLowStockVariations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, variations, 1)
	assert.Equal(t, "Cap", variations[0].ProductName)
	assert.Equal(t, "CAP-O", variations[0].SKU)

	all, err := repo.ListProductIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
