package repositories

import (
	"context"

	"gorm.io/gorm"

	"toko/internal/models"
)

// OrderState is the (status, payment) pair guarded by conditional updates.
type OrderState struct {
	Status  models.OrderStatus
	Payment models.PaymentStatus
}

// OrderRepository defines the interface for order data access.
// Methods taking a tx run inside the caller's transaction.
type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, page, limit int, filters ...OrderFilter) ([]models.Order, int64, error)
	LockByID(ctx context.Context, tx *gorm.DB, id string) (*models.Order, error)
	LockByGatewayOrderID(ctx context.Context, tx *gorm.DB, gatewayOrderID string) (*models.Order, error)
	UpdateState(ctx context.Context, tx *gorm.DB, id string, from, to OrderState) error
	RecordPayment(ctx context.Context, tx *gorm.DB, id, paymentID string) error
	LockPendingForExport(ctx context.Context, tx *gorm.DB, limit int) ([]models.Order, error)
	MarkOrdered(ctx context.Context, tx *gorm.DB, ids []string) (int64, error)
}
