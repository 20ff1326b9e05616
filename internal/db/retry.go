package db

import (
	"context" // Cancellation
	"errors"  // Error matching
	"time"    // Backoff delay

	"labour_connect/internal/domain" // Error taxonomy

	"github.com/avast/retry-go/v4" // Bounded retries
	"gorm.io/gorm"                 // GORM ORM library
)

// errConflict marks a lost optimistic update inside a transaction
var errConflict = domain.ErrConcurrencyConflict

// Conflict returns the error a transaction body should return when a
// versioned update matched no rows.
func Conflict(entity string) error {
	return domain.NewError(domain.CodeConcurrencyConflict, "%s was modified concurrently", entity)
}

// Transact runs fn in a database transaction and re-runs the whole transaction
// when it fails with a concurrency conflict, at most attempts times. Any other
// error aborts immediately. Exhausted retries surface concurrency_conflict.
func Transact(ctx context.Context, db *gorm.DB, attempts int, fn func(tx *gorm.DB) error) error {
	if attempts < 1 {
		attempts = 1
	}
	err := retry.Do(
		func() error {
			return db.WithContext(ctx).Transaction(fn)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(5*time.Millisecond),
		retry.MaxJitter(10*time.Millisecond),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errConflict) }),
		retry.LastErrorOnly(true),
	)
	return err
}

// UpdateVersioned applies updates to the row identified by id when its version
// still equals version, bumping the version. A miss yields a conflict error.
func UpdateVersioned(tx *gorm.DB, model any, entity string, id any, version int64, updates map[string]any) error {
	updates["version"] = version + 1
	res := tx.Model(model).Where("id = ? AND version = ?", id, version).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Conflict(entity)
	}
	return nil
}
