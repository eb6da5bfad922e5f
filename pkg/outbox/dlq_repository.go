package outbox

import (
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// DLQRepository writes to outbox_dlq, the parking table for events the
// publisher gave up on. Rows are kept for manual inspection and replay.
type DLQRepository struct{}

func NewDLQRepository() *DLQRepository {
	return &DLQRepository{}
}

// InsertTx records entry in the publisher's transaction so the dead letter
// and the terminal mark on the source row commit together.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !entry.ErrorReason.IsValid() {
		return errors.New("unknown dlq reason " + string(entry.ErrorReason))
	}
	if entry.ErrorMessage != nil {
		msg := clip(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}
