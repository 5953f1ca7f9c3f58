package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toko/internal/apperr"
	"toko/internal/models"
	"toko/internal/pricing"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

// LoadPriceableCart loads the user's cart with variant, product, category and the discounts
// whose window contains asOf. Items whose variant or product was soft-deleted are skipped.
func (r *GORMCartRepository) LoadPriceableCart(ctx context.Context, userID string, asOf time.Time) (*PriceableCart, error) {
	activeAt := func(db *gorm.DB) *gorm.DB {
		return db.Where("valid_from <= ? AND valid_to >= ?", asOf, asOf)
	}

	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Preload("Items.Variant").
		Preload("Items.Variant.Product").
		Preload("Items.Variant.Product.Discounts", activeAt).
		Preload("Items.Variant.Product.Category").
		Preload("Items.Variant.Product.Category.Discounts", activeAt).
		Where("user_id = ?", userID).
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &PriceableCart{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart for user %s: %w", userID, err)
	}

	pc := &PriceableCart{CartID: cart.ID, UserID: userID, Lines: make([]pricing.Line, 0, len(cart.Items))}
	for _, item := range cart.Items {
		v := item.Variant
		if v.ID == "" || v.Product.ID == "" {
			continue
		}
		pc.Lines = append(pc.Lines, pricing.Line{
			VariantID:         v.ID,
			SKU:               v.SKU,
			ProductName:       v.Product.Name,
			Quantity:          item.Quantity,
			UnitPrice:         v.Price,
			ProductDiscounts:  toPricingDiscounts(v.Product.Discounts),
			CategoryDiscounts: toCategoryPricingDiscounts(v.Product.Category.Discounts),
		})
	}
	return pc, nil
}

func toPricingDiscounts(ds []models.ProductDiscount) []pricing.Discount {
	out := make([]pricing.Discount, 0, len(ds))
	for _, d := range ds {
		out = append(out, termsToDiscount(d.DiscountTerms, d.DeletedAt.Valid))
	}
	return out
}

func toCategoryPricingDiscounts(ds []models.CategoryDiscount) []pricing.Discount {
	out := make([]pricing.Discount, 0, len(ds))
	for _, d := range ds {
		out = append(out, termsToDiscount(d.DiscountTerms, d.DeletedAt.Valid))
	}
	return out
}

func termsToDiscount(t models.DiscountTerms, deleted bool) pricing.Discount {
	return pricing.Discount{
		Percent:   t.Percent,
		Type:      string(t.Type),
		ValidFrom: t.ValidFrom,
		ValidTo:   t.ValidTo,
		Deleted:   deleted,
	}
}

// GetCart returns the user's cart with its items, or an empty cart if none exists yet.
func (r *GORMCartRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Preload("Items.Variant").
		Preload("Items.Variant.Product").
		Where("user_id = ?", userID).
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart for user %s: %w", userID, err)
	}
	return &cart, nil
}

func (r *GORMCartRepository) ensureCart(tx *gorm.DB, userID string) (*models.Cart, error) {
	cart := models.Cart{ID: uuid.New().String(), UserID: userID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&cart).Error; err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	var stored models.Cart
	if err := tx.Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &stored, nil
}

// AddItem adds qty units of a variant, creating the cart on first use.
func (r *GORMCartRepository) AddItem(ctx context.Context, userID, variantID string, qty int) (*models.CartItem, error) {
	if qty <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}
	var item models.CartItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var variant models.ProductVariant
		if err := tx.Select("id").First(&variant, "id = ?", variantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("variant %s", variantID)
			}
			return err
		}

		cart, err := r.ensureCart(tx, userID)
		if err != nil {
			return err
		}

		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND variant_id = ?", cart.ID, variantID).
			Update("quantity", gorm.Expr("quantity + ?", qty))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("cart_id = ? AND variant_id = ?", cart.ID, variantID).First(&item).Error
		}

		item = models.CartItem{ID: uuid.New().String(), CartID: cart.ID, VariantID: variantID, Quantity: qty}
		return tx.Omit(clause.Associations).Create(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SetQuantity overwrites an item's quantity. A quantity of zero removes the item.
func (r *GORMCartRepository) SetQuantity(ctx context.Context, userID, variantID string, qty int) error {
	if qty < 0 {
		return apperr.Validation("quantity must not be negative")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.Where("user_id = ?", userID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("cart item %s", variantID)
			}
			return err
		}

		q := tx.Where("cart_id = ? AND variant_id = ?", cart.ID, variantID)
		var res *gorm.DB
		if qty == 0 {
			res = q.Delete(&models.CartItem{})
		} else {
			res = q.Model(&models.CartItem{}).Update("quantity", qty)
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("cart item %s", variantID)
		}
		return nil
	})
}

// ClearTx empties the user's cart inside the caller's transaction. The cart row is kept.
func (r *GORMCartRepository) ClearTx(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	res := tx.WithContext(ctx).
		Where("cart_id IN (?)", tx.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear cart for user %s: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}
