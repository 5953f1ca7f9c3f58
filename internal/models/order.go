package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is an immutable price/quantity snapshot taken when the order was created.
type OrderItem struct {
	ID             string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID        string          `json:"order_id" gorm:"index;type:varchar(36);not null"`
	VariantID      string          `json:"variant_id" gorm:"index;type:varchar(36);not null"`
	Variant        ProductVariant  `json:"variant"`
	Quantity       int             `json:"quantity" gorm:"not null"`
	UnitPrice      decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`      // list price at purchase
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(18,6);not null"` // per unit
	LineSubtotal   decimal.Decimal `json:"line_subtotal" gorm:"type:decimal(12,2);not null"`
}

// EffectiveUnitPrice is the price actually paid per unit, rounded to the currency unit.
func (i OrderItem) EffectiveUnitPrice() decimal.Decimal {
	return i.UnitPrice.Sub(i.DiscountAmount).Round(2)
}

// Order represents a customer order. Orders are never hard-deleted.
type Order struct {
	ID                string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID            string          `json:"user_id" gorm:"index;type:varchar(36);not null"`
	User              User            `json:"user"`
	ShippingAddressID string          `json:"shipping_address_id" gorm:"type:varchar(36);not null"`
	ShippingAddress   Address         `json:"shipping_address"`
	BillingAddressID  string          `json:"billing_address_id" gorm:"type:varchar(36);not null"`
	BillingAddress    Address         `json:"billing_address"`
	Items             []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	TotalAmount       decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	Status            OrderStatus     `json:"status" gorm:"index;type:varchar(32);not null"`
	Payment           PaymentStatus   `json:"payment" gorm:"index;type:varchar(16);not null"`
	GatewayOrderID    string          `json:"gateway_order_id" gorm:"uniqueIndex;type:varchar(64);not null"`
	GatewayPaymentID  string          `json:"gateway_payment_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// HoldsStock reports whether the order's lines are still deducted from variant stock.
func (o *Order) HoldsStock() bool {
	if o.Status == StatusCancelled {
		return false
	}
	return o.Payment != PaymentFailed && o.Payment != PaymentRefunded
}
