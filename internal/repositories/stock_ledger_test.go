package repositories_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"toko/internal/apperr"
	"toko/internal/models"
	"toko/internal/repositories"
	"toko/internal/testutil"
)

func TestReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	v := fx.Variant(fx.Category("apparel").ID, "T-Shirt", "1000", 5)
	ledger := repositories.NewGORMStockLedger()

	require.NoError(t, ledger.Reserve(ctx, db, v.ID, 3))
	assert.Equal(t, 2, fx.Stock(v.ID))

	err := ledger.Reserve(ctx, db, v.ID, 3)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 2, fx.Stock(v.ID), "a failed reserve leaves stock untouched")

	require.NoError(t, ledger.Reserve(ctx, db, v.ID, 2))
	assert.Equal(t, 0, fx.Stock(v.ID))

	require.NoError(t, ledger.Release(ctx, db, v.ID, 5))
	assert.Equal(t, 5, fx.Stock(v.ID))
}

func TestLedgerRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	ledger := repositories.NewGORMStockLedger()

	assert.ErrorIs(t, ledger.Reserve(ctx, db, "any", 0), apperr.ErrValidation)
	assert.ErrorIs(t, ledger.Release(ctx, db, "any", -1), apperr.ErrValidation)
	assert.ErrorIs(t, ledger.Reserve(ctx, db, "missing", 1), apperr.ErrInsufficientStock)
	assert.ErrorIs(t, ledger.Release(ctx, db, "missing", 1), apperr.ErrConsistency)
}

func TestReleaseSoftDeletedVariant(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	v := fx.Variant(fx.Category("apparel").ID, "T-Shirt", "10", 1)
	require.NoError(t, db.Delete(&models.ProductVariant{}, "id = ?", v.ID).Error)

	require.NoError(t, repositories.NewGORMStockLedger().Release(ctx, db, v.ID, 2))
	assert.Equal(t, 3, fx.Stock(v.ID))
}

func TestReserveRollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	cat := fx.Category("apparel").ID
	a := fx.Variant(cat, "A", "10", 5)
	b := fx.Variant(cat, "B", "10", 1)
	store := repositories.NewStore(db)
	ledger := repositories.NewGORMStockLedger()

	err := store.WithTx(ctx, func(tx *gorm.DB) error {
		if err := ledger.Reserve(ctx, tx, a.ID, 2); err != nil {
			return err
		}
		return ledger.Reserve(ctx, tx, b.ID, 2)
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 5, fx.Stock(a.ID), "partial reservations are rolled back")
	assert.Equal(t, 1, fx.Stock(b.ID))
}
