package repositories

import (
	"context"

	"gorm.io/gorm"
)

// TxRunner runs fn inside one store transaction. fn's error rolls everything back.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Store is the explicitly constructed store handle shared by the repositories.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open GORM connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle for non-transactional reads.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithTx runs fn in a transaction that commits only if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}
