package products

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists catalog products and their variations.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository bound to the provided connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{Base: r.Bind(tx)}
}

// StockAggregate is the cached product-level view of variation stock.
type StockAggregate struct {
	AvailableUnits  int
	ReservedUnits   int
	StockStatus     enums.StockStatus
	LastRestockedAt *time.Time
}

// LowStockVariation is a variation row joined with its parent's display fields.
type LowStockVariation struct {
	models.ProductVariation
	ProductName string
}

// CreateProduct inserts a product together with any variations attached to it.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.DB(ctx).Create(product).Error
}

// CreateVariation inserts a variation under an existing product.
func (r *Repository) CreateVariation(ctx context.Context, variation *models.ProductVariation) error {
	return r.DB(ctx).Create(variation).Error
}

// FindProduct loads a product by ID.
func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProductForUpdate loads a product and locks its row until the surrounding transaction ends.
func (r *Repository) FindProductForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindVariation loads a variation by ID.
func (r *Repository) FindVariation(ctx context.Context, id uuid.UUID) (*models.ProductVariation, error) {
	var variation models.ProductVariation
	if err := r.DB(ctx).First(&variation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variation, nil
}

// FindVariationForUpdate loads a variation and locks its row until the surrounding transaction ends.
func (r *Repository) FindVariationForUpdate(ctx context.Context, id uuid.UUID) (*models.ProductVariation, error) {
	var variation models.ProductVariation
	err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&variation, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &variation, nil
}

// SumActiveVariationStock returns the summed stock and the number of active variations of a product.
func (r *Repository) SumActiveVariationStock(ctx context.Context, productID uuid.UUID) (int, int, error) {
	var row struct {
		Total int64
		Count int64
	}
	err := r.DB(ctx).
		Model(&models.ProductVariation{}).
		Select("COALESCE(SUM(stock_quantity), 0) AS total, COUNT(*) AS count").
		Where("product_id = ? AND is_active = ?", productID, true).
		Scan(&row).
		Error
	if err != nil {
		return 0, 0, err
	}
	return int(row.Total), int(row.Count), nil
}

// UpdateVariationStock writes a variation's stock quantity.
func (r *Repository) UpdateVariationStock(ctx context.Context, id uuid.UUID, quantity int) error {
	return r.DB(ctx).
		Model(&models.ProductVariation{}).
		Where("id = ?", id).
		Update("stock_quantity", quantity).
		Error
}

// UpdateProductUnits writes the flat stock of a product without variations.
func (r *Repository) UpdateProductUnits(ctx context.Context, id uuid.UUID, units int) error {
	return r.DB(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("units", units).
		Error
}

// UpdateAggregate writes the cached stock aggregate of a product.
// LastRestockedAt is only written when set.
func (r *Repository) UpdateAggregate(ctx context.Context, productID uuid.UUID, agg StockAggregate) error {
	fields := map[string]any{
		"available_units": agg.AvailableUnits,
		"reserved_units":  agg.ReservedUnits,
		"stock_status":    agg.StockStatus,
	}
	if agg.LastRestockedAt != nil {
		fields["last_restocked_at"] = *agg.LastRestockedAt
	}
	return r.DB(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(fields).
		Error
}

// ListLowStockProducts returns active products whose flat units are at or
// below max(threshold, min_order_quantity). Variations are not consulted; they
// have their own scan.
func (r *Repository) ListLowStockProducts(ctx context.Context, threshold int) ([]models.Product, error) {
	var rows []models.Product
	err := r.DB(ctx).
		Where("is_active = ?", true).
		Where("(units <= ? OR units <= min_order_quantity)", threshold).
		Find(&rows).
		Error
	return rows, err
}

// ListLowStockVariations returns active variations at or below threshold along with their parent name.
func (r *Repository) ListLowStockVariations(ctx context.Context, threshold int) ([]LowStockVariation, error) {
	var rows []LowStockVariation
	err := r.DB(ctx).
		Table("product_variations").
		Select("product_variations.*, products.name AS product_name").
		Joins("JOIN products ON products.id = product_variations.product_id").
		Where("product_variations.is_active = ?", true).
		Where("product_variations.stock_quantity <= ?", threshold).
		Scan(&rows).
		Error
	return rows, err
}

// ListProductIDs returns every product ID in creation order.
func (r *Repository) ListProductIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).
		Model(&models.Product{}).
		Order("created_at ASC").
		Pluck("id", &ids).
		Error
	return ids, err
}
