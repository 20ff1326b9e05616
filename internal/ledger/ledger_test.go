package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"labour_connect/internal/domain"
	"labour_connect/internal/testutil"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	logrus.SetLevel(logrus.PanicLevel)
}

type invalidatorStub struct {
	mu    sync.Mutex
	users []uuid.UUID
}

func (s *invalidatorStub) InvalidateWallet(ctx context.Context, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, userID)
}

func newLedger(t *testing.T) (*Ledger, *invalidatorStub) {
	cache := &invalidatorStub{}
	return New(testutil.NewTestDB(t), 5, cache), cache
}

func sumAmounts(txs []domain.Transaction) int64 {
	var sum int64
	for _, tx := range txs {
		sum += tx.Amount
	}
	return sum
}

func TestWalletCreatedLazily(t *testing.T) {
	l, _ := newLedger(t)
	user := uuid.New()

	w, err := l.Wallet(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, user, w.UserID)
	require.Zero(t, w.Balance)

	again, err := l.Wallet(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, w.ID, again.ID)
}

func TestDebitAppendsTransactionWithBalanceAfter(t *testing.T) {
	l, cache := newLedger(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := l.Credit(ctx, user, 5, domain.KindPurchase, "intent-1")
	require.NoError(t, err)

	balance, err := l.Debit(ctx, user, 2, domain.KindJobPost, "job-1")
	require.NoError(t, err)
	require.Equal(t, int64(3), balance)

	txs, err := l.Transactions(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	var debit domain.Transaction
	for _, tx := range txs {
		if tx.Kind == domain.KindJobPost {
			debit = tx
		}
	}
	require.Equal(t, int64(-2), debit.Amount)
	require.Equal(t, int64(3), debit.BalanceAfter)
	require.Equal(t, "job-1", debit.ReferenceID)

	w, err := l.Wallet(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(5), w.TotalPurchased)
	require.Equal(t, int64(2), w.TotalSpent)
	require.Len(t, cache.users, 2)
}

func TestDebitInsufficientBalanceLeavesWalletUntouched(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := l.Credit(ctx, user, 1, domain.KindPurchase, "")
	require.NoError(t, err)

	_, err = l.Debit(ctx, user, 2, domain.KindOfferSend, "offer-1")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	balance, err := l.GetBalance(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(1), balance)

	txs, err := l.Transactions(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
}

func TestRejectsNonPositiveAmountsAndUnknownKinds(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := l.Credit(ctx, user, 0, domain.KindPurchase, "")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.Debit(ctx, user, -3, domain.KindJobPost, "")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.Credit(ctx, user, 1, domain.TransactionKind("gift"), "")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestBalanceEqualsSumOfTransactions(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	user := uuid.New()

	ops := []struct {
		credit bool
		amount int64
	}{
		{true, 10}, {false, 2}, {false, 1}, {true, 3}, {false, 9}, {false, 4}, {true, 1},
	}
	for _, op := range ops {
		if op.credit {
			_, err := l.Credit(ctx, user, op.amount, domain.KindPurchase, "")
			require.NoError(t, err)
			continue
		}
		_, _ = l.Debit(ctx, user, op.amount, domain.KindMessageSend, "")
	}

	balance, err := l.GetBalance(ctx, user)
	require.NoError(t, err)
	txs, err := l.Transactions(ctx, user, 100)
	require.NoError(t, err)
	require.Equal(t, sumAmounts(txs), balance)
	require.GreaterOrEqual(t, balance, int64(0))
	// 10-2-1+3 = 10; 9 succeeds -> 1; 4 is rejected; +1 -> 2
	require.Equal(t, int64(2), balance)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := l.Credit(ctx, user, 5, domain.KindPurchase, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Debit(ctx, user, 1, domain.KindMessageSend, ""); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, succeeded)
	balance, err := l.GetBalance(ctx, user)
	require.NoError(t, err)
	require.Zero(t, balance)

	txs, err := l.Transactions(ctx, user, 100)
	require.NoError(t, err)
	require.Equal(t, sumAmounts(txs), balance)
}

func TestHistoryPaginates(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	user := uuid.New()
	for i := 0; i < 5; i++ {
		_, err := l.Credit(ctx, user, 1, domain.KindAdminGrant, "")
		require.NoError(t, err)
	}

	page, total, err := l.History(ctx, user, 2, 2)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Len(t, page, 2)

	last, _, err := l.History(ctx, user, 3, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
}

// hideWallets makes the first n wallet reads find nothing, the way a
// transaction snapshot taken before a concurrent insert does
func hideWallets(t *testing.T, gdb *gorm.DB, n int32) {
	var seen atomic.Int32
	err := gdb.Callback().Query().After("gorm:query").Register("test:hide_wallets", func(tx *gorm.DB) {
		if tx.Statement.Table != "wallets" || seen.Add(1) > n {
			return
		}
		tx.Statement.RowsAffected = 0
		if tx.Error == nil {
			tx.AddError(gorm.ErrRecordNotFound)
		}
	})
	require.NoError(t, err)
}

func TestInvisibleRacedWalletRetries(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	l := New(gdb, 5, nil)
	hideWallets(t, gdb, 2) // first attempt misses its own re-read

	balance, err := l.Credit(context.Background(), uuid.New(), 3, domain.KindPurchase, "")
	require.NoError(t, err)
	require.Equal(t, int64(3), balance)

	var wallets int64
	require.NoError(t, gdb.Model(&domain.Wallet{}).Count(&wallets).Error)
	require.Equal(t, int64(1), wallets)
}

func TestInvisibleWalletSurfacesConflict(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	l := New(gdb, 3, nil)
	hideWallets(t, gdb, 1000)

	_, err := l.Credit(context.Background(), uuid.New(), 3, domain.KindPurchase, "")
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}
