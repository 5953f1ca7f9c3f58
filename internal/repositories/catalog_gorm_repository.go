package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toko/internal/apperr"
	"toko/internal/models"
)

var hundred = decimal.NewFromInt(100)

// GORMCatalogRepository is a GORM implementation of CatalogRepository.
type GORMCatalogRepository struct {
	db *gorm.DB
}

// NewGORMCatalogRepository creates a new instance of GORMCatalogRepository.
func NewGORMCatalogRepository(db *gorm.DB) *GORMCatalogRepository {
	return &GORMCatalogRepository{db: db}
}

// CreateCategory creates a new category in the database.
func (r *GORMCatalogRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(category).Error; err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// CreateProduct creates a product together with its variants.
func (r *GORMCatalogRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	for i := range product.Variants {
		v := &product.Variants[i]
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		v.ProductID = product.ID
		if v.Stock < 0 {
			return apperr.Validation("variant %s: stock must not be negative", v.SKU)
		}
		if v.Price.IsNegative() {
			return apperr.Validation("variant %s: price must not be negative", v.SKU)
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(product).Error; err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		if len(product.Variants) == 0 {
			return nil
		}
		if err := tx.Omit(clause.Associations).Create(&product.Variants).Error; err != nil {
			return fmt.Errorf("failed to create variants: %w", err)
		}
		return nil
	})
}

func validateTerms(t models.DiscountTerms) error {
	if t.Percent.IsNegative() || t.Percent.GreaterThan(hundred) {
		return apperr.Validation("discount must be between 0 and 100")
	}
	if t.ValidTo.Before(t.ValidFrom) {
		return apperr.Validation("discount window ends before it starts")
	}
	if t.Type != models.SaleRegular && t.Type != models.SaleFlash {
		return apperr.Validation("unknown sale type %q", t.Type)
	}
	return nil
}

// CreateProductDiscount attaches a discount to a product.
func (r *GORMCatalogRepository) CreateProductDiscount(ctx context.Context, discount *models.ProductDiscount) error {
	if discount.Type == "" {
		discount.Type = models.SaleRegular
	}
	if err := validateTerms(discount.DiscountTerms); err != nil {
		return err
	}
	if discount.ID == "" {
		discount.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(discount).Error; err != nil {
		return fmt.Errorf("failed to create product discount: %w", err)
	}
	return nil
}

// CreateCategoryDiscount attaches a discount to a category.
func (r *GORMCatalogRepository) CreateCategoryDiscount(ctx context.Context, discount *models.CategoryDiscount) error {
	if discount.Type == "" {
		discount.Type = models.SaleRegular
	}
	if err := validateTerms(discount.DiscountTerms); err != nil {
		return err
	}
	if discount.ID == "" {
		discount.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(discount).Error; err != nil {
		return fmt.Errorf("failed to create category discount: %w", err)
	}
	return nil
}

// GetProduct retrieves a product with its variants.
func (r *GORMCatalogRepository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Preload("Variants").First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product %s", id)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// GetVariant retrieves a single variant, including soft-deleted ones, with its product.
func (r *GORMCatalogRepository) GetVariant(ctx context.Context, id string) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).Unscoped().
		Preload("Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&variant, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("variant %s", id)
		}
		return nil, fmt.Errorf("failed to get variant by ID %s: %w", id, err)
	}
	return &variant, nil
}

// DeleteProduct soft-deletes a product and its variants. Order snapshots keep referencing them.
func (r *GORMCatalogRepository) DeleteProduct(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete product: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("product %s", id)
		}
		return tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error
	})
}
