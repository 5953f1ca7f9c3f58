package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toko/internal/apperr"
	"toko/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// Create inserts the order and its item snapshots.
func (r *GORMOrderRepository) Create(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	items := order.Items
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.New().String()
		}
		items[i].OrderID = order.ID
	}

	db := tx.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	if err := db.Omit(clause.Associations).Create(&items).Error; err != nil {
		return fmt.Errorf("failed to create order items: %w", err)
	}
	return nil
}

// withDetails preloads what an order view needs. Catalog rows are loaded unscoped so
// soft-deleted products still render in order history.
func withDetails(db *gorm.DB) *gorm.DB {
	unscoped := func(db *gorm.DB) *gorm.DB { return db.Unscoped() }
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Variant", unscoped).
		Preload("Items.Variant.Product", unscoped).
		Preload("User").
		Preload("ShippingAddress").
		Preload("BillingAddress")
}

// GetByID retrieves an order with items, customer and addresses.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := withDetails(r.db.WithContext(ctx)).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %s", id)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// List returns one page of orders, newest first, and the total matching count.
func (r *GORMOrderRepository) List(ctx context.Context, page, limit int, filters ...OrderFilter) ([]models.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	for _, f := range filters {
		q = f.apply(q)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	err := q.Session(&gorm.Session{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("created_at DESC, id").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

func (r *GORMOrderRepository) lockWhere(ctx context.Context, tx *gorm.DB, cond string, arg string) (*models.Order, error) {
	var order models.Order
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(cond, arg).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %s", arg)
		}
		return nil, fmt.Errorf("failed to lock order %s: %w", arg, err)
	}
	if err := tx.WithContext(ctx).Where("order_id = ?", order.ID).Order("id").Find(&order.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load items for order %s: %w", order.ID, err)
	}
	return &order, nil
}

// LockByID loads an order and its items under a row lock held until tx ends.
func (r *GORMOrderRepository) LockByID(ctx context.Context, tx *gorm.DB, id string) (*models.Order, error) {
	return r.lockWhere(ctx, tx, "id = ?", id)
}

// LockByGatewayOrderID is LockByID keyed by the payment gateway's order reference.
func (r *GORMOrderRepository) LockByGatewayOrderID(ctx context.Context, tx *gorm.DB, gatewayOrderID string) (*models.Order, error) {
	return r.lockWhere(ctx, tx, "gateway_order_id = ?", gatewayOrderID)
}

// UpdateState moves an order from one state to another. It fails with a precondition error
// when the stored state is no longer from, so concurrent writers cannot both win.
func (r *GORMOrderRepository) UpdateState(ctx context.Context, tx *gorm.DB, id string, from, to OrderState) error {
	res := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment = ?", id, from.Status, from.Payment).
		Updates(map[string]interface{}{"status": to.Status, "payment": to.Payment})
	if res.Error != nil {
		return fmt.Errorf("failed to update order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Precondition("order %s is no longer %s/%s", id, from.Status, from.Payment)
	}
	return nil
}

func (r *GORMOrderRepository) RecordPayment(ctx context.Context, tx *gorm.DB, id, paymentID string) error {
	res := tx.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("gateway_payment_id", paymentID)
	if res.Error != nil {
		return fmt.Errorf("failed to record payment for order %s: %w", id, res.Error)
	}
	return nil
}

// LockPendingForExport locks up to limit paid PENDING orders, oldest first. Rows locked by a
// concurrent export are skipped.
func (r *GORMOrderRepository) LockPendingForExport(ctx context.Context, tx *gorm.DB, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := withDetails(tx.WithContext(ctx)).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND payment = ?", models.StatusPending, models.PaymentSuccessful).
		Order("created_at, id").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock orders for export: %w", err)
	}
	return orders, nil
}

// MarkOrdered flips the given PENDING orders to ORDERED and returns how many changed.
func (r *GORMOrderRepository) MarkOrdered(ctx context.Context, tx *gorm.DB, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id IN ? AND status = ?", ids, models.StatusPending).
		Update("status", models.StatusOrdered)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark orders as ordered: %w", res.Error)
	}
	return res.RowsAffected, nil
}
