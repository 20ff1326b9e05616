package db_test

import (
	"context"
	"errors"
	"testing"

	"labour_connect/internal/db"
	"labour_connect/internal/domain"
	"labour_connect/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTransactRetriesConflicts(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	calls := 0

	err := db.Transact(context.Background(), gdb, 3, func(tx *gorm.DB) error {
		calls++
		if calls < 3 {
			return db.Conflict("wallet")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestTransactSurfacesConflictAfterAttempts(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	calls := 0

	err := db.Transact(context.Background(), gdb, 2, func(tx *gorm.DB) error {
		calls++
		return db.Conflict("job")
	})

	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	require.Equal(t, 2, calls)
}

func TestTransactDoesNotRetryOtherErrors(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	calls := 0
	boom := errors.New("boom")

	err := db.Transact(context.Background(), gdb, 5, func(tx *gorm.DB) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestUpdateVersionedDetectsStaleVersion(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	w := domain.Wallet{ID: uuid.New(), UserID: uuid.New(), Balance: 5}
	require.NoError(t, gdb.Create(&w).Error)

	require.NoError(t, db.UpdateVersioned(gdb, &domain.Wallet{}, "wallet", w.ID, 0, map[string]any{"balance": 4}))

	err := db.UpdateVersioned(gdb, &domain.Wallet{}, "wallet", w.ID, 0, map[string]any{"balance": 3})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	var got domain.Wallet
	require.NoError(t, gdb.First(&got, "id = ?", w.ID).Error)
	require.Equal(t, int64(4), got.Balance)
	require.Equal(t, int64(1), got.Version)
}
