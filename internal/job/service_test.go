package job

import (
	"context"
	"errors"
	"sync"
	"testing"

	"labour_connect/internal/authorizer"
	"labour_connect/internal/domain"
	"labour_connect/internal/ledger"
	"labour_connect/internal/notify"
	"labour_connect/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	logrus.SetLevel(logrus.PanicLevel)
}

type hookStub struct {
	mu   sync.Mutex
	jobs []uuid.UUID
	err  error
}

func (h *hookStub) OnJobCompleted(tx *gorm.DB, job *domain.Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.jobs = append(h.jobs, job.ID)
	return nil
}

type fixture struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	svc      *Service
	hook     *hookStub
	recorder *notify.Recorder
	cast     cast
}

func newFixture(t *testing.T) *fixture {
	gdb := testutil.NewTestDB(t)
	l := ledger.New(gdb, 5, nil)
	gate := authorizer.New(l, authorizer.Costs{authorizer.ActionJobPost: 2, authorizer.ActionOfferSend: 1}, gdb)
	recorder := &notify.Recorder{}
	svc := NewService(gdb, gate, recorder, 5)
	hook := &hookStub{}
	svc.SetCompletionHook(hook)
	return &fixture{db: gdb, ledger: l, svc: svc, hook: hook, recorder: recorder, cast: newCast()}
}

func (f *fixture) fund(t *testing.T, user uuid.UUID, amount int64) {
	_, err := f.ledger.Credit(context.Background(), user, amount, domain.KindPurchase, "")
	require.NoError(t, err)
}

func (f *fixture) post(t *testing.T) *domain.Job {
	f.fund(t, f.cast.employer.ID, 2)
	job, err := f.svc.Create(context.Background(), f.cast.employer, CreateInput{
		Title:     "Fix leaking tap",
		Category:  "plumbing",
		BudgetMin: decimal.NewFromInt(20),
		BudgetMax: decimal.NewFromInt(60),
	})
	require.NoError(t, err)
	return job
}

// assign moves job to assigned the way an accepted offer does
func (f *fixture) assign(t *testing.T, actor domain.User, jobID uuid.UUID, worker uuid.UUID, agreed int64) *domain.Job {
	ctx := context.Background()
	var updated *domain.Job
	err := f.db.Transaction(func(tx *gorm.DB) error {
		current, err := Load(tx, jobID)
		if err != nil {
			return err
		}
		updated, err = f.svc.TransitionTx(ctx, tx, current, actor, Change{To: domain.JobAssigned, WorkerID: &worker, AgreedPrice: price(agreed)})
		return err
	})
	require.NoError(t, err)
	return updated
}

func TestCreateChargesEmployer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, f.cast.employer.ID, 5)

	job, err := f.svc.Create(ctx, f.cast.employer, CreateInput{Title: "Paint fence", Category: "painting"})
	require.NoError(t, err)
	require.Equal(t, domain.JobRequested, job.Status)
	require.Equal(t, int64(2), job.TokenCost)

	balance, err := f.ledger.GetBalance(ctx, f.cast.employer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), balance)

	txs, err := f.ledger.Transactions(ctx, f.cast.employer.ID, 0)
	require.NoError(t, err)
	require.Equal(t, int64(-2), txs[0].Amount)
	require.Equal(t, int64(3), txs[0].BalanceAfter)
	require.Equal(t, job.ID.String(), txs[0].ReferenceID)

	require.Len(t, f.recorder.OfType(domain.EventJobCreated), 1)
}

func TestCreateWithoutTokensPostsNothing(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.cast.employer.ID, 1)

	_, err := f.svc.Create(context.Background(), f.cast.employer, CreateInput{Title: "Paint fence", Category: "painting"})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	var count int64
	require.NoError(t, f.db.Model(&domain.Job{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateRejectedForEmployees(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.cast.worker.ID, 5)

	_, err := f.svc.Create(context.Background(), f.cast.worker, CreateInput{Title: "Paint fence", Category: "painting"})
	require.ErrorIs(t, err, domain.ErrForbidden)

	balance, err := f.ledger.GetBalance(context.Background(), f.cast.worker.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), balance)
}

func TestCreateValidatesBeforeCharging(t *testing.T) {
	f := newFixture(t)
	f.fund(t, f.cast.employer.ID, 5)

	_, err := f.svc.Create(context.Background(), f.cast.employer, CreateInput{
		Title:     "Paint fence",
		Category:  "painting",
		BudgetMin: decimal.NewFromInt(90),
		BudgetMax: decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	balance, err := f.ledger.GetBalance(context.Background(), f.cast.employer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5), balance)
}

func TestWorkerCannotSkipToEnRoute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.post(t)

	_, err := f.svc.UpdateStatus(ctx, f.cast.worker, job.ID, domain.JobEnRoute)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobRequested, stored.Status)
	require.Equal(t, job.Version, stored.Version)
	require.Empty(t, f.recorder.OfType(domain.EventJobStatusChanged))
}

func TestStatusUpdateCannotAssignWithoutOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.post(t)

	for _, actor := range []domain.User{f.cast.stranger, f.cast.worker, f.cast.employer, f.cast.admin} {
		_, err := f.svc.UpdateStatus(ctx, actor, job.ID, domain.JobAssigned)
		require.ErrorIs(t, err, domain.ErrInvalidTransition, actor.ID)
	}

	stored, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobRequested, stored.Status)
	require.Nil(t, stored.WorkerID)
	require.Nil(t, stored.AgreedPrice)
	require.Equal(t, job.Version, stored.Version)
}

func TestFullLifecycleRunsHookOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.post(t)
	c := f.cast

	_, err := f.svc.UpdateStatus(ctx, c.employer, job.ID, domain.JobOffered)
	require.NoError(t, err)
	f.assign(t, c.employer, job.ID, c.worker.ID, 45)

	steps := []struct {
		actor domain.User
		to    domain.JobStatus
	}{
		{c.worker, domain.JobEnRoute},
		{c.worker, domain.JobOnSite},
		{c.worker, domain.JobCompleted},
		{c.employer, domain.JobDisputed},
		{c.admin, domain.JobCompleted},
	}
	for _, step := range steps {
		updated, err := f.svc.UpdateStatus(ctx, step.actor, job.ID, step.to)
		require.NoError(t, err, step.to)
		require.Equal(t, step.to, updated.Status)
	}

	stored, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobCompleted, stored.Status)
	require.Equal(t, c.worker.ID, *stored.WorkerID)
	require.True(t, decimal.NewFromInt(45).Equal(*stored.AgreedPrice))
	require.NotNil(t, stored.CompletedAt)
	require.Equal(t, []uuid.UUID{job.ID}, f.hook.jobs)
	require.Len(t, f.recorder.OfType(domain.EventJobStatusChanged), len(steps)+1)
}

func TestHookFailureRollsBackCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.post(t)
	c := f.cast

	f.assign(t, c.employer, job.ID, c.worker.ID, 45)
	_, err := f.svc.UpdateStatus(ctx, c.worker, job.ID, domain.JobEnRoute)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, c.worker, job.ID, domain.JobOnSite)
	require.NoError(t, err)

	f.hook.err = errors.New("profile store down")
	_, err = f.svc.UpdateStatus(ctx, c.employer, job.ID, domain.JobCompleted)
	require.Error(t, err)

	stored, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobOnSite, stored.Status)
	require.Nil(t, stored.CompletedAt)
}

func TestConcurrentTransitionsApplyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.post(t)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.UpdateStatus(ctx, f.cast.employer, job.ID, domain.JobOffered)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	}
	require.Equal(t, 1, ok)
}

func TestGetUnknownJob(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListScopesByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.cast
	open := f.post(t)
	assigned := f.post(t)
	f.assign(t, c.employer, assigned.ID, c.worker.ID, 30)

	other := domain.User{ID: uuid.New(), Role: domain.RoleEmployer}
	f.fund(t, other.ID, 2)
	_, err := f.svc.Create(ctx, other, CreateInput{Title: "Mow lawn", Category: "gardening"})
	require.NoError(t, err)

	mine, total, err := f.svc.List(ctx, c.employer, Filter{})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, mine, 2)

	forWorker, total, err := f.svc.List(ctx, c.worker, Filter{})
	require.NoError(t, err)
	require.Equal(t, int64(3), total, "open jobs plus own assignment")
	require.Len(t, forWorker, 3)

	forStranger, _, err := f.svc.List(ctx, c.stranger, Filter{})
	require.NoError(t, err)
	require.Len(t, forStranger, 2)

	plumbing, total, err := f.svc.List(ctx, c.admin, Filter{Category: "plumbing", Status: domain.JobRequested})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, open.ID, plumbing[0].ID)
}
