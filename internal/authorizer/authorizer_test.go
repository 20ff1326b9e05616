package authorizer

import (
	"context"
	"errors"
	"testing"

	"labour_connect/internal/domain"
	"labour_connect/internal/ledger"
	"labour_connect/internal/testutil"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	logrus.SetLevel(logrus.PanicLevel)
}

var testCosts = Costs{ActionJobPost: 2, ActionOfferSend: 1, ActionMessageSend: 1}

func setup(t *testing.T) (*Authorizer, *ledger.Ledger, *gorm.DB) {
	gdb := testutil.NewTestDB(t)
	l := ledger.New(gdb, 5, nil)
	return New(l, testCosts, gdb), l, gdb
}

type creditFailingLedger struct {
	Ledger
}

func (creditFailingLedger) Credit(ctx context.Context, userID uuid.UUID, amount int64, kind domain.TransactionKind, refID string) (int64, error) {
	return 0, errors.New("ledger unavailable")
}

func TestAuthorizeDebitsBeforeSideEffect(t *testing.T) {
	a, l, _ := setup(t)
	ctx := context.Background()
	employer := domain.User{ID: uuid.New(), Role: domain.RoleEmployer}
	_, err := l.Credit(ctx, employer.ID, 5, domain.KindPurchase, "")
	require.NoError(t, err)

	var balanceSeen int64
	err = a.Authorize(ctx, employer, ActionJobPost, "job-1", func(ctx context.Context) error {
		balanceSeen, err = l.GetBalance(ctx, employer.ID)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), balanceSeen)

	balance, err := l.GetBalance(ctx, employer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), balance)
}

func TestAuthorizeAbortsWithoutSideEffectWhenBroke(t *testing.T) {
	a, l, _ := setup(t)
	ctx := context.Background()
	worker := domain.User{ID: uuid.New(), Role: domain.RoleEmployee}

	ran := false
	err := a.Authorize(ctx, worker, ActionOfferSend, "offer-1", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	require.False(t, ran)

	txs, err := l.Transactions(ctx, worker.ID, 10)
	require.NoError(t, err)
	require.Empty(t, txs)
}

func TestAuthorizeRefundsWhenSideEffectFails(t *testing.T) {
	a, l, gdb := setup(t)
	ctx := context.Background()
	employer := domain.User{ID: uuid.New(), Role: domain.RoleEmployer}
	_, err := l.Credit(ctx, employer.ID, 5, domain.KindPurchase, "")
	require.NoError(t, err)

	boom := domain.NotFound("job")
	err = a.Authorize(ctx, employer, ActionJobPost, "job-2", func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, domain.ErrNotFound)

	balance, err := l.GetBalance(ctx, employer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), balance)

	txs, err := l.Transactions(ctx, employer.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	kinds := map[domain.TransactionKind]int64{}
	for _, tx := range txs {
		kinds[tx.Kind] += tx.Amount
	}
	require.Equal(t, int64(-2), kinds[domain.KindJobPost])
	require.Equal(t, int64(2), kinds[domain.KindRefund])

	var audits []domain.AuditLog
	require.NoError(t, gdb.Where("action = ?", "refund").Find(&audits).Error)
	require.Len(t, audits, 1)
	require.Equal(t, "job-2", audits[0].EntityID)
}

func TestAuthorizeRecordsFailedRefund(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	l := ledger.New(gdb, 5, nil)
	ctx := context.Background()
	user := domain.User{ID: uuid.New(), Role: domain.RoleEmployee}
	_, err := l.Credit(ctx, user.ID, 1, domain.KindPurchase, "")
	require.NoError(t, err)

	a := New(creditFailingLedger{Ledger: l}, testCosts, gdb)
	err = a.Authorize(ctx, user, ActionMessageSend, "msg-1", func(ctx context.Context) error {
		return errors.New("transport rejected")
	})
	require.Error(t, err)

	var audits []domain.AuditLog
	require.NoError(t, gdb.Where("action = ?", "refund_failed").Find(&audits).Error)
	require.Len(t, audits, 1)
}

func TestAuthorizeChecksCapabilitiesBeforeCharging(t *testing.T) {
	a, l, _ := setup(t)
	ctx := context.Background()
	worker := domain.User{ID: uuid.New(), Role: domain.RoleEmployee}
	_, err := l.Credit(ctx, worker.ID, 5, domain.KindPurchase, "")
	require.NoError(t, err)

	err = a.Authorize(ctx, worker, ActionJobPost, "job-3", func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, domain.ErrForbidden)

	balance, err := l.GetBalance(ctx, worker.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), balance)
}

func TestChargeMessage(t *testing.T) {
	a, l, _ := setup(t)
	ctx := context.Background()
	admin := domain.User{ID: uuid.New(), Role: domain.RoleAdmin}
	_, err := l.Credit(ctx, admin.ID, 1, domain.KindAdminGrant, "")
	require.NoError(t, err)

	require.NoError(t, a.ChargeMessage(ctx, admin, "msg-2"))
	require.ErrorIs(t, a.ChargeMessage(ctx, admin, "msg-3"), domain.ErrInsufficientBalance)
}

func TestCapabilityTable(t *testing.T) {
	require.True(t, Can(domain.RoleEmployer, ActionJobPost))
	require.False(t, Can(domain.RoleEmployee, ActionJobPost))
	require.True(t, Can(domain.RoleEmployee, ActionOfferSend))
	require.False(t, Can(domain.RoleAdmin, ActionOfferSend))
	require.False(t, Can(domain.Role("guest"), ActionMessageSend))
}
