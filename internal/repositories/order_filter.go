package repositories

import (
	"gorm.io/gorm"

	"toko/internal/models"
)

// OrderFilter narrows an order listing. Filters are typed so callers cannot inject columns.
type OrderFilter interface {
	apply(db *gorm.DB) *gorm.DB
}

type orderFilterFunc func(db *gorm.DB) *gorm.DB

func (f orderFilterFunc) apply(db *gorm.DB) *gorm.DB { return f(db) }

func ByOrderID(id string) OrderFilter {
	return orderFilterFunc(func(db *gorm.DB) *gorm.DB { return db.Where("orders.id = ?", id) })
}

func ByStatus(status models.OrderStatus) OrderFilter {
	return orderFilterFunc(func(db *gorm.DB) *gorm.DB { return db.Where("orders.status = ?", status) })
}

func ByPayment(payment models.PaymentStatus) OrderFilter {
	return orderFilterFunc(func(db *gorm.DB) *gorm.DB { return db.Where("orders.payment = ?", payment) })
}

// ByUser restricts the listing to orders owned by userID.
func ByUser(userID string) OrderFilter {
	return orderFilterFunc(func(db *gorm.DB) *gorm.DB { return db.Where("orders.user_id = ?", userID) })
}
