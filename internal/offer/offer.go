// Package offer handles priced offers on jobs and their acceptance.
package offer

import (
	"context" // Cancellation
	"errors"  // Error matching
	"strings" // Input trimming
	"time"    // Timestamps

	"labour_connect/internal/authorizer" // Gated actions
	"labour_connect/internal/db"         // Retried transactions
	"labour_connect/internal/domain"     // Domain models
	"labour_connect/internal/job"        // Job lifecycle
	"labour_connect/internal/notify"     // Status events

	"github.com/google/uuid"        // UUID identifiers
	"github.com/shopspring/decimal" // Currency amounts
	"github.com/sirupsen/logrus"    // Structured logging
	"gorm.io/gorm"                  // GORM ORM library
)

// Jobs is the part of the JobLifecycle offers drive
type Jobs interface {
	TransitionTx(ctx context.Context, tx *gorm.DB, current *domain.Job, user domain.User, ch job.Change) (*domain.Job, error)
	Announce(ctx context.Context, from domain.JobStatus, j *domain.Job, actor domain.User)
}

// CreateInput is a new offer
type CreateInput struct {
	JobID    uuid.UUID       `json:"job_id"`
	ToUserID uuid.UUID       `json:"to_user_id"`
	Amount   decimal.Decimal `json:"amount"`
	Message  string          `json:"message"`
}

// Service is the OfferNegotiation
type Service struct {
	db       *gorm.DB
	gate     job.Gate
	jobs     Jobs
	notifier notify.Notifier
	attempts int
}

// NewService creates an offer Service
func NewService(gdb *gorm.DB, gate job.Gate, jobs Jobs, notifier notify.Notifier, attempts int) *Service {
	return &Service{db: gdb, gate: gate, jobs: jobs, notifier: notifier, attempts: attempts}
}

// Create sends an offer, charging the sender first. Job checks run after the
// charge, so a rejected offer is refunded.
func (s *Service) Create(ctx context.Context, user domain.User, in CreateInput) (*domain.Offer, error) {
	if in.JobID == uuid.Nil || in.ToUserID == uuid.Nil {
		return nil, domain.Validation("job_id and to_user_id are required")
	}
	if !in.Amount.IsPositive() {
		return nil, domain.Validation("amount must be positive")
	}
	if in.ToUserID == user.ID {
		return nil, domain.Validation("cannot send an offer to yourself")
	}

	o := domain.Offer{
		ID:         uuid.New(),                    // Offer ID
		JobID:      in.JobID,                      // Job
		FromUserID: user.ID,                       // Sender
		ToUserID:   in.ToUserID,                   // Recipient
		Amount:     in.Amount,                     // Price
		Message:    strings.TrimSpace(in.Message), // Note
		Status:     domain.OfferPending,           // Initial status
	}
	err := s.gate.Authorize(ctx, user, authorizer.ActionOfferSend, o.ID.String(), func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			j, err := job.Load(tx, in.JobID)
			if err != nil {
				return err
			}
			if j.Status != domain.JobRequested && j.Status != domain.JobOffered {
				return domain.NewError(domain.CodeJobAlreadyAssigned, "job is %s and no longer takes offers", j.Status)
			}
			if j.EmployerID != user.ID && j.EmployerID != in.ToUserID {
				return domain.Forbidden("offers must be between the job's employer and a worker")
			}
			return tx.Create(&o).Error
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"offer_id": o.ID,         // Offer
		"job_id":   o.JobID,      // Job
		"from":     o.FromUserID, // Sender
		"to":       o.ToUserID,   // Recipient
		"amount":   o.Amount,     // Price
	}).Info("Offer sent")
	notify.Emit(ctx, s.notifier, domain.NewEvent(domain.EventOfferCreated, o.ID,
		map[string]any{"job_id": o.JobID, "amount": o.Amount}, o.ToUserID))
	return &o, nil
}

// Respond accepts or rejects a pending offer as its recipient. Acceptance
// assigns the job in the same transaction; once a job is assigned every
// further acceptance fails with job_already_assigned.
func (s *Service) Respond(ctx context.Context, user domain.User, offerID uuid.UUID, accept bool) (*domain.Offer, *domain.Job, error) {
	var (
		o       domain.Offer
		before  domain.JobStatus
		updated *domain.Job
	)
	err := db.Transact(ctx, s.db, s.attempts, func(tx *gorm.DB) error {
		updated = nil
		if err := loadPending(tx, offerID, user, &o); err != nil {
			return err
		}

		next := domain.OfferRejected
		if accept {
			next = domain.OfferAccepted
			j, err := job.Load(tx, o.JobID)
			if err != nil {
				return err
			}
			switch j.Status {
			case domain.JobRequested, domain.JobOffered:
			case domain.JobCancelled:
				return domain.InvalidTransition("job is cancelled")
			default:
				return domain.ErrJobAlreadyAssigned
			}
			worker := o.FromUserID
			if worker == j.EmployerID {
				worker = o.ToUserID
			}
			before = j.Status
			updated, err = s.jobs.TransitionTx(ctx, tx, j, user, job.Change{
				To:          domain.JobAssigned,
				WorkerID:    &worker,
				AgreedPrice: &o.Amount,
			})
			if err != nil {
				return err
			}
		}

		if err := mark(tx, o.ID, next); err != nil {
			return err
		}
		o.Status = next
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"offer_id": offerID,     // Offer
			"user_id":  user.ID,     // Actor
			"accept":   accept,      // Decision
			"error":    err.Error(), // Error message
		}).Warn("Offer response rejected")
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"offer_id":  o.ID,                            // Offer
		"job_id":    o.JobID,                         // Job
		"status":    o.Status,                        // Decision
		"timestamp": time.Now().Format(time.RFC3339), // Current timestamp
	}).Info("Offer responded")
	notify.Emit(ctx, s.notifier, domain.NewEvent(domain.EventOfferResponded, o.ID,
		map[string]any{"job_id": o.JobID, "status": o.Status}, o.FromUserID))
	if updated != nil {
		s.jobs.Announce(ctx, before, updated, user)
	}
	return &o, updated, nil
}

// CounterInput answers an offer with a different price
type CounterInput struct {
	Amount  decimal.Decimal `json:"counter_amount"`
	Message string          `json:"counter_message"`
}

// Counter answers a pending offer with a reverse offer from its recipient
// back to its sender. The original is marked countered and the counter is
// charged like any other offer, refunded if it cannot be placed.
func (s *Service) Counter(ctx context.Context, user domain.User, offerID uuid.UUID, in CounterInput) (*domain.Offer, *domain.Offer, error) {
	if !in.Amount.IsPositive() {
		return nil, nil, domain.Validation("counter_amount must be positive")
	}

	var original domain.Offer
	counter := domain.Offer{
		ID:      uuid.New(),                    // Offer ID
		Amount:  in.Amount,                     // Price
		Message: strings.TrimSpace(in.Message), // Note
		Status:  domain.OfferPending,           // Initial status
	}
	err := s.gate.Authorize(ctx, user, authorizer.ActionOfferSend, counter.ID.String(), func(ctx context.Context) error {
		return db.Transact(ctx, s.db, s.attempts, func(tx *gorm.DB) error {
			if err := loadPending(tx, offerID, user, &original); err != nil {
				return err
			}
			j, err := job.Load(tx, original.JobID)
			if err != nil {
				return err
			}
			if j.Status != domain.JobRequested && j.Status != domain.JobOffered {
				return domain.NewError(domain.CodeJobAlreadyAssigned, "job is %s and no longer takes offers", j.Status)
			}
			if err := mark(tx, original.ID, domain.OfferCountered); err != nil {
				return err
			}
			original.Status = domain.OfferCountered

			counter.JobID = original.JobID
			counter.FromUserID = user.ID
			counter.ToUserID = original.FromUserID
			counter.CounterOf = &original.ID
			return tx.Create(&counter).Error
		})
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"offer_id": offerID,     // Offer
			"user_id":  user.ID,     // Actor
			"amount":   in.Amount,   // Counter price
			"error":    err.Error(), // Error message
		}).Warn("Counter offer rejected")
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"offer_id":   counter.ID,         // Counter offer
		"counter_of": original.ID,        // Answered offer
		"job_id":     counter.JobID,      // Job
		"from":       counter.FromUserID, // Sender
		"to":         counter.ToUserID,   // Recipient
		"amount":     counter.Amount,     // Price
	}).Info("Offer countered")
	notify.Emit(ctx, s.notifier, domain.NewEvent(domain.EventOfferResponded, original.ID,
		map[string]any{"job_id": original.JobID, "status": original.Status, "counter_id": counter.ID}, original.FromUserID))
	notify.Emit(ctx, s.notifier, domain.NewEvent(domain.EventOfferCreated, counter.ID,
		map[string]any{"job_id": counter.JobID, "amount": counter.Amount, "counter_of": original.ID}, counter.ToUserID))
	return &original, &counter, nil
}

// loadPending reads an offer user may still respond to
func loadPending(tx *gorm.DB, offerID uuid.UUID, user domain.User, o *domain.Offer) error {
	if err := tx.Where("id = ?", offerID).First(o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NotFound("offer")
		}
		return err
	}
	if o.ToUserID != user.ID {
		return domain.Forbidden("only the recipient may respond to an offer")
	}
	if o.Status != domain.OfferPending {
		return domain.InvalidTransition("offer is already %s", o.Status)
	}
	return nil
}

// mark moves a pending offer to next, failing with a conflict if it was
// answered concurrently
func mark(tx *gorm.DB, id uuid.UUID, next domain.OfferStatus) error {
	res := tx.Model(&domain.Offer{}).
		Where("id = ? AND status = ?", id, domain.OfferPending).
		Update("status", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.Conflict("offer")
	}
	return nil
}

// List returns a job's offers, newest first
func (s *Service) List(ctx context.Context, jobID uuid.UUID) ([]domain.Offer, error) {
	var offers []domain.Offer
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at desc").
		Find(&offers).Error
	return offers, err
}
