// Package job owns the job lifecycle state machine and job persistence.
package job

import (
	"time" // Timestamps

	"labour_connect/internal/domain" // Domain models

	"github.com/google/uuid"        // UUID identifiers
	"github.com/shopspring/decimal" // Currency amounts
)

// Change is a requested transition plus the fields it may populate
type Change struct {
	To          domain.JobStatus `json:"status"`                 // Target state
	WorkerID    *uuid.UUID       `json:"worker_id,omitempty"`    // Worker to assign
	AgreedPrice *decimal.Decimal `json:"agreed_price,omitempty"` // Price to agree
}

// Machine checks and applies lifecycle transitions. It holds no state.
type Machine struct{}

// Check reports whether actor may move job according to ch. Every violation,
// of the edge, the actor or a required field, is an invalid_transition.
func (Machine) Check(job *domain.Job, actor domain.User, ch Change) error {
	from, to := job.Status, ch.To
	if _, ok := domain.ParseJobStatus(string(to)); !ok {
		return domain.Validation("unknown job status %q", to)
	}
	if from.Terminal() {
		return domain.InvalidTransition("job is %s, no further transitions", from)
	}
	if from == to {
		return domain.InvalidTransition("job is already %s", from)
	}

	owner := job.EmployerID == actor.ID || actor.IsAdmin()
	switch to {
	case domain.JobCancelled, domain.JobDisputed:
		if !owner {
			return domain.InvalidTransition("only the employer or an admin may move a job to %s", to)
		}

	case domain.JobOffered:
		if from != domain.JobRequested {
			return edge(from, to)
		}
		if !owner {
			return domain.InvalidTransition("only the employer or an admin may open a job for offers")
		}

	case domain.JobRequested:
		if from != domain.JobOffered {
			return edge(from, to)
		}
		if !owner {
			return domain.InvalidTransition("only the employer or an admin may withdraw a job")
		}

	case domain.JobAssigned:
		if from != domain.JobRequested && from != domain.JobOffered {
			return edge(from, to)
		}
		worker := job.WorkerID // An existing worker is kept
		if worker == nil {
			worker = ch.WorkerID
		}
		price := ch.AgreedPrice
		if price == nil {
			price = job.AgreedPrice
		}
		if worker == nil || *worker == uuid.Nil {
			return domain.InvalidTransition("assignment requires worker_id")
		}
		if price == nil || !price.IsPositive() {
			return domain.InvalidTransition("assignment requires a positive agreed_price")
		}
		if *worker == job.EmployerID {
			return domain.InvalidTransition("employer cannot be assigned to their own job")
		}
		if !owner && actor.ID != *worker {
			return domain.InvalidTransition("only job participants may assign a job")
		}

	case domain.JobEnRoute, domain.JobOnSite:
		prev := domain.JobAssigned
		if to == domain.JobOnSite {
			prev = domain.JobEnRoute
		}
		if from != prev {
			return edge(from, to)
		}
		if !job.IsWorker(actor.ID) {
			return domain.InvalidTransition("only the assigned worker may move a job to %s", to)
		}

	case domain.JobCompleted:
		switch from {
		case domain.JobOnSite:
			if !job.IsParticipant(actor.ID) {
				return domain.InvalidTransition("only the employer or the worker may complete a job")
			}
		case domain.JobDisputed:
			if !actor.IsAdmin() {
				return domain.InvalidTransition("only an admin may resolve a dispute as completed")
			}
		default:
			return edge(from, to)
		}

	case domain.JobRated:
		if from != domain.JobCompleted {
			return edge(from, to)
		}
		if !job.IsParticipant(actor.ID) && !actor.IsAdmin() {
			return domain.InvalidTransition("only job participants may close a job as rated")
		}
		if !job.RatedByEmployer || !job.RatedByWorker {
			return domain.InvalidTransition("both parties must rate before the job is rated")
		}
	}
	return nil
}

// Apply returns a copy of job moved according to ch, leaving job untouched
func (m Machine) Apply(job *domain.Job, actor domain.User, ch Change, now time.Time) (*domain.Job, error) {
	if err := m.Check(job, actor, ch); err != nil {
		return nil, err
	}
	next := *job
	next.Status = ch.To
	next.UpdatedAt = now
	if ch.To == domain.JobAssigned {
		if ch.WorkerID != nil && next.WorkerID == nil {
			w := *ch.WorkerID
			next.WorkerID = &w
		}
		if ch.AgreedPrice != nil {
			p := *ch.AgreedPrice
			next.AgreedPrice = &p
		}
		if next.AssignedAt == nil {
			next.AssignedAt = &now
		}
	}
	if ch.To == domain.JobCompleted && next.CompletedAt == nil {
		next.CompletedAt = &now
	}
	return &next, nil
}

func edge(from, to domain.JobStatus) error {
	return domain.InvalidTransition("cannot move job from %s to %s", from, to)
}
