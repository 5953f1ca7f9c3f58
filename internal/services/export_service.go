package services

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"toko/internal/apperr"
	"toko/internal/export"
	"toko/internal/repositories"
)

// ExportService hands paid orders over to fulfillment.
type ExportService struct {
	store     repositories.TxRunner
	orders    repositories.OrderRepository
	publisher EventPublisher
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

// NewExportService creates a new ExportService. A nil now uses the wall clock in UTC.
func NewExportService(store repositories.TxRunner, orders repositories.OrderRepository, publisher EventPublisher, logger *slog.Logger, batchSize int, now func() time.Time) *ExportService {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ExportService{store: store, orders: orders, publisher: publisher, logger: logger, batchSize: batchSize, now: now}
}

func (s *ExportService) BatchSize() int { return s.batchSize }

// BulkConfirmPending exports one batch of at most limit paid PENDING orders and moves them
// to ORDERED in the same transaction. Rows are only returned once the batch has committed.
func (s *ExportService) BulkConfirmPending(ctx context.Context, limit int) ([]export.Row, error) {
	if limit <= 0 {
		return nil, apperr.Validation("limit must be positive")
	}
	if limit > s.batchSize {
		limit = s.batchSize
	}

	var (
		rows []export.Row
		ids  []string
	)
	err := s.store.WithTx(ctx, func(tx *gorm.DB) error {
		orders, err := s.orders.LockPendingForExport(ctx, tx, limit)
		if err != nil {
			return err
		}
		rows = rows[:0]
		ids = ids[:0]
		for _, o := range orders {
			rows = append(rows, export.RowsFor(o)...)
			ids = append(ids, o.ID)
		}

		n, err := s.orders.MarkOrdered(ctx, tx, ids)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return apperr.Consistency("confirmed %d of %d locked orders", n, len(ids))
		}
		return nil
	})
	if err != nil {
		s.logger.Error("export batch rolled back", "error", err)
		return nil, err
	}

	if len(ids) > 0 {
		s.logger.Info("orders exported", "orders", len(ids), "rows", len(rows))
		publish(s.publisher, s.logger, OrderEvent{Event: EventOrdersExported, OrderIDs: ids, OccurredAt: s.now()})
	}
	if rows == nil {
		rows = []export.Row{}
	}
	return rows, nil
}
