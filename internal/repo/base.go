package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by the gorm repositories for scans and allergy profiles.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx, or the raw connection when ctx is nil.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// ForUser scopes a query to rows owned by userID. model may be nil when the caller sets a table.
func (b Base) ForUser(ctx context.Context, model any, userID string) *gorm.DB {
	tx := b.DB(ctx)
	if model != nil {
		tx = tx.Model(model)
	}
	return tx.Where("user_id = ?", userID)
}

// Configured reports whether a connection was supplied.
func (b Base) Configured() bool {
	return b.db != nil
}

// Transaction runs fn inside a transaction bound to ctx.
func (b Base) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return b.DB(ctx).Transaction(fn)
}
