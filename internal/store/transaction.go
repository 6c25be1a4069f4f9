package store

import (
	"context"

	"gorm.io/gorm"
)

// Transaction runs fn inside a single database transaction, matching the
// teacher's JobStore pattern of handing callers a *gorm.DB rather than
// hiding transaction boundaries behind single-purpose methods — callers
// compose read/compute/commit-if-still-valid logic themselves.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}
