// Package ledger owns wallet balances and the append-only token transaction log.
// No other package writes to the wallets or transactions tables.
package ledger

import (
	"context" // Cancellation
	"errors"  // Error matching
	"fmt"     // Error formatting
	"time"    // Timestamps

	"labour_connect/internal/db"     // Retried transactions
	"labour_connect/internal/domain" // Domain models

	"github.com/google/uuid"     // UUID identifiers
	"github.com/sirupsen/logrus" // Structured logging
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/clause"        // Upsert clauses
)

// Invalidator drops cached wallet reads after a mutation commits
type Invalidator interface {
	InvalidateWallet(ctx context.Context, userID uuid.UUID)
}

// Ledger is the WalletLedger
type Ledger struct {
	db       *gorm.DB
	attempts int
	cache    Invalidator
}

// New creates a Ledger retrying conflicting updates up to attempts times
func New(gdb *gorm.DB, attempts int, cache Invalidator) *Ledger {
	return &Ledger{db: gdb, attempts: attempts, cache: cache}
}

// Entry describes one balance movement. Amount is always positive.
type Entry struct {
	UserID      uuid.UUID
	Amount      int64
	Kind        domain.TransactionKind
	ReferenceID string
}

// Wallet returns the user's wallet, creating it on first reference
func (l *Ledger) Wallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	var w *domain.Wallet
	err := db.Transact(ctx, l.db, l.attempts, func(tx *gorm.DB) error {
		var err error
		w, err = l.walletTx(tx, userID)
		return err
	})
	return w, err
}

// GetBalance returns the user's current token balance
func (l *Ledger) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	w, err := l.Wallet(ctx, userID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// Transactions returns the newest entries of the user's wallet
func (l *Ledger) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	w, err := l.Wallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txs []domain.Transaction
	err = l.db.WithContext(ctx).
		Where("wallet_id = ?", w.ID).
		Order("created_at desc").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

// History returns one page of the user's wallet entries, newest first, with the total
func (l *Ledger) History(ctx context.Context, userID uuid.UUID, page, size int) ([]domain.Transaction, int64, error) {
	w, err := l.Wallet(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	var total int64
	q := l.db.WithContext(ctx).Model(&domain.Transaction{}).Where("wallet_id = ?", w.ID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txs []domain.Transaction
	err = q.Order("created_at desc").Offset((page - 1) * size).Limit(size).Find(&txs).Error
	return txs, total, err
}

// Debit removes tokens, failing with insufficient_balance when the balance is short
func (l *Ledger) Debit(ctx context.Context, userID uuid.UUID, amount int64, kind domain.TransactionKind, refID string) (int64, error) {
	return l.apply(ctx, Entry{UserID: userID, Amount: amount, Kind: kind, ReferenceID: refID}, -1)
}

// Credit adds tokens
func (l *Ledger) Credit(ctx context.Context, userID uuid.UUID, amount int64, kind domain.TransactionKind, refID string) (int64, error) {
	return l.apply(ctx, Entry{UserID: userID, Amount: amount, Kind: kind, ReferenceID: refID}, 1)
}

// CreditInTx credits inside the caller's transaction. A concurrency conflict
// is returned as-is so the caller can retry its whole transaction.
func (l *Ledger) CreditInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int64, kind domain.TransactionKind, refID string) (int64, error) {
	return l.applyTx(tx.WithContext(ctx), Entry{UserID: userID, Amount: amount, Kind: kind, ReferenceID: refID}, 1)
}

// AfterCommit invalidates cached reads for userID; callers of CreditInTx
// invoke it once their transaction has committed.
func (l *Ledger) AfterCommit(ctx context.Context, userID uuid.UUID) {
	if l.cache != nil {
		l.cache.InvalidateWallet(ctx, userID)
	}
}

func (l *Ledger) apply(ctx context.Context, e Entry, sign int64) (int64, error) {
	var balance int64
	err := db.Transact(ctx, l.db, l.attempts, func(tx *gorm.DB) error {
		b, err := l.applyTx(tx, e, sign)
		balance = b
		return err
	})
	if err != nil {
		fields := logrus.Fields{
			"user_id": e.UserID,      // Wallet owner
			"amount":  e.Amount,      // Requested amount
			"kind":    e.Kind,        // Entry kind
			"ref_id":  e.ReferenceID, // Reference
			"error":   err.Error(),   // Error message
		}
		if errors.Is(err, domain.ErrInsufficientBalance) || errors.Is(err, domain.ErrValidation) {
			logrus.WithFields(fields).Warn("Ledger entry rejected")
		} else {
			logrus.WithFields(fields).Error("Ledger entry failed")
		}
		return 0, err
	}
	l.AfterCommit(ctx, e.UserID)
	logrus.WithFields(logrus.Fields{
		"user_id":       e.UserID,                        // Wallet owner
		"amount":        sign * e.Amount,                 // Signed amount
		"kind":          e.Kind,                          // Entry kind
		"ref_id":        e.ReferenceID,                   // Reference
		"balance_after": balance,                         // Resulting balance
		"timestamp":     time.Now().Format(time.RFC3339), // Current timestamp
	}).Info("Ledger transaction")
	return balance, nil
}

// applyTx performs one versioned balance update and appends its transaction
func (l *Ledger) applyTx(tx *gorm.DB, e Entry, sign int64) (int64, error) {
	if e.Amount <= 0 {
		return 0, domain.Validation("amount must be positive, got %d", e.Amount)
	}
	if !e.Kind.Valid() {
		return 0, domain.Validation("unknown transaction kind %q", e.Kind)
	}
	w, err := l.walletTx(tx, e.UserID)
	if err != nil {
		return 0, err
	}

	updates := map[string]any{}
	newBalance := w.Balance + sign*e.Amount
	if sign < 0 {
		if w.Balance < e.Amount {
			return 0, domain.ErrInsufficientBalance.WithCause(
				fmt.Errorf("balance %d, required %d", w.Balance, e.Amount))
		}
		updates["total_spent"] = w.TotalSpent + e.Amount
	} else if e.Kind == domain.KindPurchase || e.Kind == domain.KindAdminGrant {
		updates["total_purchased"] = w.TotalPurchased + e.Amount
	}
	updates["balance"] = newBalance

	if err := db.UpdateVersioned(tx, &domain.Wallet{}, "wallet", w.ID, w.Version, updates); err != nil {
		return 0, err
	}

	t := domain.Transaction{
		ID:           uuid.New(),      // Entry ID
		WalletID:     w.ID,            // Owning wallet
		Amount:       sign * e.Amount, // Signed amount
		Kind:         e.Kind,          // Entry kind
		BalanceAfter: newBalance,      // Post-entry balance
		ReferenceID:  e.ReferenceID,   // Reference
	}
	if err := tx.Create(&t).Error; err != nil {
		return 0, err // Return error to rollback
	}
	return newBalance, nil
}

// walletTx loads the wallet, inserting an empty one if none exists yet.
// Concurrent first references race on the unique user_id index; the loser's
// insert is ignored and both read the same row. A snapshot that cannot see the
// winner's row yet reports a conflict so the transaction reruns.
func (l *Ledger) walletTx(tx *gorm.DB, userID uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	err := tx.Where("user_id = ?", userID).First(&w).Error
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	fresh := domain.Wallet{ID: uuid.New(), UserID: userID}
	if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, err
	}
	var stored domain.Wallet // Re-read, the row may belong to a concurrent insert
	if err := tx.Where("user_id = ?", userID).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, db.Conflict("wallet")
		}
		return nil, err
	}
	return &stored, nil
}
