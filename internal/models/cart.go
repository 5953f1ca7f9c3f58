package models

import "time"

// Cart is created lazily, one per user. It is emptied, never deleted, once an order is paid.
type Cart struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string     `json:"user_id" gorm:"uniqueIndex;type:varchar(36);not null"`
	Items     []CartItem `json:"items" gorm:"foreignKey:CartID"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem holds a positive quantity of one variant. Zero quantity items are deleted instead.
type CartItem struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CartID    string         `json:"cart_id" gorm:"uniqueIndex:idx_cart_variant;type:varchar(36);not null"`
	VariantID string         `json:"variant_id" gorm:"uniqueIndex:idx_cart_variant;type:varchar(36);not null"`
	Variant   ProductVariant `json:"variant"`
	Quantity  int            `json:"quantity" gorm:"not null;check:quantity > 0"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
