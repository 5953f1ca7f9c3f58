package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"toko/internal/apperr"
	"toko/internal/models"
)

// StockLedger moves variant stock in and out of the available pool. Both operations join
// the caller's transaction so they commit or roll back with the order change that caused them.
type StockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantID string, qty int) error
	Release(ctx context.Context, tx *gorm.DB, variantID string, qty int) error
}

// GORMStockLedger implements StockLedger with conditional column updates.
type GORMStockLedger struct{}

// NewGORMStockLedger creates a new GORMStockLedger.
func NewGORMStockLedger() *GORMStockLedger {
	return &GORMStockLedger{}
}

// Reserve decrements stock by qty only if at least qty units are available. The check and
// the decrement are one UPDATE statement, so they run under the same row lock.
func (l *GORMStockLedger) Reserve(ctx context.Context, tx *gorm.DB, variantID string, qty int) error {
	if qty <= 0 {
		return apperr.Validation("reserve quantity must be positive, got %d", qty)
	}
	res := tx.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND stock >= ?", variantID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return fmt.Errorf("failed to reserve stock for variant %s: %w", variantID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: variant %s (requested %d)", apperr.ErrInsufficientStock, variantID, qty)
	}
	return nil
}

// Release returns qty units to the pool. It cannot tell whether they were ever reserved;
// callers release exactly what their order lines reserved.
func (l *GORMStockLedger) Release(ctx context.Context, tx *gorm.DB, variantID string, qty int) error {
	if qty <= 0 {
		return apperr.Validation("release quantity must be positive, got %d for variant %s", qty, variantID)
	}
	res := tx.WithContext(ctx).
		Unscoped(). // soft-deleted variants still get their stock back
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return fmt.Errorf("failed to release stock for variant %s: %w", variantID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Consistency("release for unknown variant %s", variantID)
	}
	return nil
}
