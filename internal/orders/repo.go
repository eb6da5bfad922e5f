package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

// CreateOrder inserts the order together with its line items.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&order, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// DeleteOrder removes an order and its line items. Deleting a missing order is not an error.
func (r *repository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderLineItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Order{}).Error
	})
}

// MarkCancelled moves a pending or confirmed order to cancelled. It reports
// false when the order was already past that point.
func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed}).
		Updates(map[string]any{
			"status":      enums.OrderStatusCancelled,
			"canceled_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RevertCancelled hands a cancelled order back to its previous status so the
// cancellation can be retried.
func (r *repository) RevertCancelled(ctx context.Context, id uuid.UUID, previous enums.OrderStatus) error {
	return r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusCancelled).
		Updates(map[string]any{
			"status":      previous,
			"canceled_at": nil,
		}).
		Error
}

// MarkLineReleased stamps a line whose stock was returned. It reports false
// when the line was already stamped.
func (r *repository) MarkLineReleased(ctx context.Context, lineID uuid.UUID, at time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.OrderLineItem{}).
		Where("id = ? AND released_at IS NULL", lineID).
		Update("released_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindStalePending lists unpaid pending orders created before cutoff, oldest first.
func (r *repository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB(ctx).
		Where("status = ? AND payment_status = ? AND created_at < ?", enums.OrderStatusPending, enums.PaymentStatusUnpaid, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).
		Error
	return orders, err
}
