package repositories

import (
	"context"

	"toko/internal/models"
)

// CatalogRepository defines the interface for product catalog data access.
type CatalogRepository interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	CreateProduct(ctx context.Context, product *models.Product) error
	CreateProductDiscount(ctx context.Context, discount *models.ProductDiscount) error
	CreateCategoryDiscount(ctx context.Context, discount *models.CategoryDiscount) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetVariant(ctx context.Context, id string) (*models.ProductVariant, error)
	DeleteProduct(ctx context.Context, id string) error
}
