package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SaleType distinguishes long running discounts from short flash sales.
type SaleType string

const (
	SaleRegular SaleType = "REGULAR"
	SaleFlash   SaleType = "FLASH"
)

// DiscountTerms is the percentage and validity window shared by product and category discounts.
type DiscountTerms struct {
	Percent   decimal.Decimal `json:"discount" gorm:"column:discount;type:decimal(5,2);not null"`
	Type      SaleType        `json:"type" gorm:"type:varchar(16);not null"`
	ValidFrom time.Time       `json:"valid_from" gorm:"not null"`
	ValidTo   time.Time       `json:"valid_to" gorm:"not null"`
}

// Category groups products; category discounts apply to every product in it.
type Category struct {
	ID        string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string             `json:"name" gorm:"type:varchar(100)"`
	Discounts []CategoryDiscount `json:"discounts,omitempty" gorm:"foreignKey:CategoryID"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	DeletedAt gorm.DeletedAt     `json:"-" gorm:"index"`
}

// Product represents a product in the store. Stock and price live on its variants.
type Product struct {
	ID          string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string            `json:"name" gorm:"type:varchar(100)"`
	Description string            `json:"description" gorm:"type:varchar(500)"`
	CategoryID  string            `json:"category_id" gorm:"index;type:varchar(36)"`
	Category    Category          `json:"category"`
	Discounts   []ProductDiscount `json:"discounts,omitempty" gorm:"foreignKey:ProductID"`
	Variants    []ProductVariant  `json:"variants,omitempty" gorm:"foreignKey:ProductID"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	DeletedAt   gorm.DeletedAt    `json:"-" gorm:"index"`
}

// ProductVariant is the sellable unit. Stock is only changed through the stock ledger.
type ProductVariant struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID string          `json:"product_id" gorm:"index;type:varchar(36);not null"`
	Product   Product         `json:"product"`
	SKU       string          `json:"sku" gorm:"uniqueIndex;type:varchar(64);not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Stock     int             `json:"stock" gorm:"not null;default:0;check:stock >= 0"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt gorm.DeletedAt  `json:"-" gorm:"index"`
}

// ProductDiscount is a discount attached directly to a product.
type ProductDiscount struct {
	ID            string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductID     string `json:"product_id" gorm:"index;type:varchar(36);not null"`
	DiscountTerms `gorm:"embedded"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// CategoryDiscount is a discount attached to a category.
type CategoryDiscount struct {
	ID            string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CategoryID    string `json:"category_id" gorm:"index;type:varchar(36);not null"`
	DiscountTerms `gorm:"embedded"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}
