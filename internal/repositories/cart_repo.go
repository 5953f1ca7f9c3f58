package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"toko/internal/models"
	"toko/internal/pricing"
)

// PriceableCart is a cart snapshot holding everything the pricing resolver needs.
type PriceableCart struct {
	CartID string
	UserID string
	Lines  []pricing.Line
}

// Empty reports whether there is nothing to price. An empty cart is not an error.
func (c *PriceableCart) Empty() bool {
	return c == nil || len(c.Lines) == 0
}

// CartRepository defines the interface for cart data access.
type CartRepository interface {
	LoadPriceableCart(ctx context.Context, userID string, asOf time.Time) (*PriceableCart, error)
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	AddItem(ctx context.Context, userID, variantID string, qty int) (*models.CartItem, error)
	SetQuantity(ctx context.Context, userID, variantID string, qty int) error
	ClearTx(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
}
