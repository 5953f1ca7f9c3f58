// Package testutil builds throwaway SQLite stores and catalog fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"toko/internal/models"
	"toko/pkg/database"
)

// NewDB opens a private in-memory database with every table migrated. One connection is
// used, so transactions from concurrent goroutines run one after another.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.Open(context.Background(), database.Config{Driver: "sqlite", DSN: dsn, MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Fixtures creates catalog and customer rows directly through GORM.
type Fixtures struct {
	t  testing.TB
	db *gorm.DB
}

func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

func (f *Fixtures) User(role models.Role) models.User {
	f.t.Helper()
	id := uuid.New().String()
	u := models.User{ID: id, Username: "user-" + id[:8], Email: id[:8] + "@example.com", Role: role}
	require.NoError(f.t, f.db.Create(&u).Error)
	return u
}

func (f *Fixtures) Address(userID string) models.Address {
	f.t.Helper()
	a := models.Address{
		ID: uuid.New().String(), UserID: userID, Name: "Asha Rao", Line1: "12 MG Road",
		City: "Pune", State: "MH", PostalCode: "411001", Country: "IN", Phone: "+91-9000000000",
	}
	require.NoError(f.t, f.db.Create(&a).Error)
	return a
}

func (f *Fixtures) Category(name string) models.Category {
	f.t.Helper()
	c := models.Category{ID: uuid.New().String(), Name: name}
	require.NoError(f.t, f.db.Omit("Discounts").Create(&c).Error)
	return c
}

// Variant creates a product in categoryID with a single variant.
func (f *Fixtures) Variant(categoryID, name, price string, stock int) models.ProductVariant {
	f.t.Helper()
	p := models.Product{ID: uuid.New().String(), Name: name, CategoryID: categoryID}
	require.NoError(f.t, f.db.Omit("Category", "Discounts", "Variants").Create(&p).Error)

	v := models.ProductVariant{
		ID:        uuid.New().String(),
		ProductID: p.ID,
		SKU:       "SKU-" + p.ID[:8],
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
	}
	require.NoError(f.t, f.db.Omit("Product").Create(&v).Error)
	v.Product = p
	return v
}

// ProductDiscount attaches pct to the product, active from one day before to one day after at.
func (f *Fixtures) ProductDiscount(productID, pct string, at time.Time) models.ProductDiscount {
	f.t.Helper()
	d := models.ProductDiscount{
		ID:            uuid.New().String(),
		ProductID:     productID,
		DiscountTerms: terms(pct, at),
	}
	require.NoError(f.t, f.db.Create(&d).Error)
	return d
}

func (f *Fixtures) CategoryDiscount(categoryID, pct string, at time.Time) models.CategoryDiscount {
	f.t.Helper()
	d := models.CategoryDiscount{
		ID:            uuid.New().String(),
		CategoryID:    categoryID,
		DiscountTerms: terms(pct, at),
	}
	require.NoError(f.t, f.db.Create(&d).Error)
	return d
}

func terms(pct string, at time.Time) models.DiscountTerms {
	return models.DiscountTerms{
		Percent:   decimal.RequireFromString(pct),
		Type:      models.SaleRegular,
		ValidFrom: at.Add(-24 * time.Hour).UTC(),
		ValidTo:   at.Add(24 * time.Hour).UTC(),
	}
}

// CartItem puts qty of variantID in the user's cart, creating the cart if needed.
func (f *Fixtures) CartItem(userID, variantID string, qty int) {
	f.t.Helper()
	var cart models.Cart
	err := f.db.Where("user_id = ?", userID).First(&cart).Error
	if err != nil {
		cart = models.Cart{ID: uuid.New().String(), UserID: userID}
		require.NoError(f.t, f.db.Omit("Items").Create(&cart).Error)
	}
	item := models.CartItem{ID: uuid.New().String(), CartID: cart.ID, VariantID: variantID, Quantity: qty}
	require.NoError(f.t, f.db.Omit("Variant").Create(&item).Error)
}

// Stock reads a variant's current stock, including soft-deleted variants.
func (f *Fixtures) Stock(variantID string) int {
	f.t.Helper()
	var v models.ProductVariant
	require.NoError(f.t, f.db.Unscoped().Select("stock").First(&v, "id = ?", variantID).Error)
	return v.Stock
}

func (f *Fixtures) CartSize(userID string) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(&models.CartItem{}).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID).
		Count(&n).Error)
	return n
}
