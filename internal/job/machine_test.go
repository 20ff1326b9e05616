package job

import (
	"testing"
	"time"

	"labour_connect/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type cast struct {
	employer domain.User
	worker   domain.User
	stranger domain.User
	admin    domain.User
}

func newCast() cast {
	return cast{
		employer: domain.User{ID: uuid.New(), Role: domain.RoleEmployer},
		worker:   domain.User{ID: uuid.New(), Role: domain.RoleEmployee},
		stranger: domain.User{ID: uuid.New(), Role: domain.RoleEmployee},
		admin:    domain.User{ID: uuid.New(), Role: domain.RoleAdmin},
	}
}

func jobAt(c cast, status domain.JobStatus) *domain.Job {
	j := &domain.Job{ID: uuid.New(), EmployerID: c.employer.ID, Status: status}
	if status != domain.JobRequested && status != domain.JobOffered {
		w := c.worker.ID
		p := decimal.NewFromInt(50)
		j.WorkerID = &w
		j.AgreedPrice = &p
	}
	return j
}

func price(v int64) *decimal.Decimal {
	p := decimal.NewFromInt(v)
	return &p
}

func TestMachineEdges(t *testing.T) {
	c := newCast()
	m := Machine{}

	cases := []struct {
		name  string
		from  domain.JobStatus
		actor domain.User
		ch    Change
		ok    bool
	}{
		{"employer opens for offers", domain.JobRequested, c.employer, Change{To: domain.JobOffered}, true},
		{"stranger cannot open for offers", domain.JobRequested, c.stranger, Change{To: domain.JobOffered}, false},
		{"employer withdraws offers", domain.JobOffered, c.employer, Change{To: domain.JobRequested}, true},
		{"worker accepts assignment", domain.JobOffered, c.worker, Change{To: domain.JobAssigned, WorkerID: &c.worker.ID, AgreedPrice: price(40)}, true},
		{"assignment needs price", domain.JobRequested, c.employer, Change{To: domain.JobAssigned, WorkerID: &c.worker.ID}, false},
		{"assignment needs worker", domain.JobRequested, c.employer, Change{To: domain.JobAssigned, AgreedPrice: price(40)}, false},
		{"bare assignment needs worker and price on the job", domain.JobRequested, c.employer, Change{To: domain.JobAssigned}, false},
		{"stranger cannot assign someone else", domain.JobRequested, c.stranger, Change{To: domain.JobAssigned, WorkerID: &c.worker.ID, AgreedPrice: price(40)}, false},
		{"worker en route", domain.JobAssigned, c.worker, Change{To: domain.JobEnRoute}, true},
		{"employer cannot go en route", domain.JobAssigned, c.employer, Change{To: domain.JobEnRoute}, false},
		{"worker on site", domain.JobEnRoute, c.worker, Change{To: domain.JobOnSite}, true},
		{"admin cannot go on site", domain.JobEnRoute, c.admin, Change{To: domain.JobOnSite}, false},
		{"employer completes", domain.JobOnSite, c.employer, Change{To: domain.JobCompleted}, true},
		{"worker completes", domain.JobOnSite, c.worker, Change{To: domain.JobCompleted}, true},
		{"stranger cannot complete", domain.JobOnSite, c.stranger, Change{To: domain.JobCompleted}, false},
		{"cannot skip to completed", domain.JobAssigned, c.employer, Change{To: domain.JobCompleted}, false},
		{"admin resolves dispute", domain.JobDisputed, c.admin, Change{To: domain.JobCompleted}, true},
		{"employer cannot resolve dispute", domain.JobDisputed, c.employer, Change{To: domain.JobCompleted}, false},
		{"employer cancels", domain.JobEnRoute, c.employer, Change{To: domain.JobCancelled}, true},
		{"admin disputes", domain.JobOnSite, c.admin, Change{To: domain.JobDisputed}, true},
		{"worker cannot cancel", domain.JobAssigned, c.worker, Change{To: domain.JobCancelled}, false},
		{"disputed cannot be disputed", domain.JobDisputed, c.employer, Change{To: domain.JobDisputed}, false},
		{"cancelled is terminal", domain.JobCancelled, c.admin, Change{To: domain.JobRequested}, false},
		{"rated is terminal", domain.JobRated, c.admin, Change{To: domain.JobDisputed}, false},
		{"rated needs both ratings", domain.JobCompleted, c.employer, Change{To: domain.JobRated}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := m.Check(jobAt(c, tc.from), tc.actor, tc.ch)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, domain.ErrInvalidTransition)
		})
	}
}

func TestMachineRejectsUnknownStatus(t *testing.T) {
	c := newCast()
	err := Machine{}.Check(jobAt(c, domain.JobRequested), c.employer, Change{To: "teleported"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestMachineRatedAfterBothRatings(t *testing.T) {
	c := newCast()
	j := jobAt(c, domain.JobCompleted)
	j.RatedByEmployer = true
	require.ErrorIs(t, Machine{}.Check(j, c.worker, Change{To: domain.JobRated}), domain.ErrInvalidTransition)
	j.RatedByWorker = true
	require.NoError(t, Machine{}.Check(j, c.worker, Change{To: domain.JobRated}))
}

func TestApplyLeavesInputUntouched(t *testing.T) {
	c := newCast()
	j := jobAt(c, domain.JobRequested)
	now := time.Now()

	next, err := Machine{}.Apply(j, c.worker, Change{To: domain.JobAssigned, WorkerID: &c.worker.ID, AgreedPrice: price(55)}, now)
	require.NoError(t, err)
	require.Equal(t, domain.JobAssigned, next.Status)
	require.Equal(t, c.worker.ID, *next.WorkerID)
	require.True(t, decimal.NewFromInt(55).Equal(*next.AgreedPrice))
	require.NotNil(t, next.AssignedAt)

	require.Equal(t, domain.JobRequested, j.Status)
	require.Nil(t, j.WorkerID)
	require.Nil(t, j.AgreedPrice)

	_, err = Machine{}.Apply(j, c.worker, Change{To: domain.JobEnRoute}, now)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.Equal(t, domain.JobRequested, j.Status)
}

func TestApplyStampsFirstCompletionOnly(t *testing.T) {
	c := newCast()
	j := jobAt(c, domain.JobOnSite)
	first := time.Now().Add(-time.Hour)

	done, err := Machine{}.Apply(j, c.employer, Change{To: domain.JobCompleted}, first)
	require.NoError(t, err)
	require.Equal(t, first, *done.CompletedAt)

	disputed, err := Machine{}.Apply(done, c.employer, Change{To: domain.JobDisputed}, time.Now())
	require.NoError(t, err)
	again, err := Machine{}.Apply(disputed, c.admin, Change{To: domain.JobCompleted}, time.Now())
	require.NoError(t, err)
	require.Equal(t, first, *again.CompletedAt)
}
