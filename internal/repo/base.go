package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base holds the connection shared by domain repositories. The connection may
// be the root pool or an open transaction.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx returns the raw connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bind returns a Base on tx, or b itself when tx is nil.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}
