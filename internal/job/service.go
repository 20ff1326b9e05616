package job

import (
	"context" // Cancellation
	"errors"  // Error matching
	"strings" // Input trimming
	"time"    // Timestamps

	"labour_connect/internal/authorizer" // Gated actions
	"labour_connect/internal/db"         // Retried transactions
	"labour_connect/internal/domain"     // Domain models
	"labour_connect/internal/notify"     // Status events

	"github.com/google/uuid"        // UUID identifiers
	"github.com/shopspring/decimal" // Currency amounts
	"github.com/sirupsen/logrus"    // Structured logging
	"gorm.io/gorm"                  // GORM ORM library
)

// Gate charges for token-priced actions
type Gate interface {
	Authorize(ctx context.Context, user domain.User, action authorizer.Action, refID string, fn func(ctx context.Context) error) error
	Cost(action authorizer.Action) int64
}

// CompletionHook runs inside the transaction that first moves a job to completed
type CompletionHook interface {
	OnJobCompleted(tx *gorm.DB, job *domain.Job) error
}

// CreateInput is a new job posting
type CreateInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	BudgetMin   decimal.Decimal `json:"budget_min"`
	BudgetMax   decimal.Decimal `json:"budget_max"`
}

// Filter narrows a job listing
type Filter struct {
	Status   domain.JobStatus
	Category string
	Page     int
	Size     int
}

// Service is the JobLifecycle
type Service struct {
	db       *gorm.DB
	gate     Gate
	notifier notify.Notifier
	attempts int
	machine  Machine
	hook     CompletionHook
}

// NewService creates a job Service
func NewService(gdb *gorm.DB, gate Gate, notifier notify.Notifier, attempts int) *Service {
	return &Service{db: gdb, gate: gate, notifier: notifier, attempts: attempts}
}

// SetCompletionHook registers the hook run on a job's first completion
func (s *Service) SetCompletionHook(h CompletionHook) {
	s.hook = h
}

func (in *CreateInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	if in.Title == "" {
		return domain.Validation("title is required")
	}
	if in.Category == "" {
		return domain.Validation("category is required")
	}
	if in.BudgetMin.IsNegative() || in.BudgetMax.IsNegative() {
		return domain.Validation("budget must not be negative")
	}
	if !in.BudgetMax.IsZero() && in.BudgetMin.GreaterThan(in.BudgetMax) {
		return domain.Validation("budget_min must not exceed budget_max")
	}
	return nil
}

// Create posts a job, charging the employer for it first
func (s *Service) Create(ctx context.Context, user domain.User, in CreateInput) (*domain.Job, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	job := domain.Job{
		ID:          uuid.New(),                            // Job ID
		EmployerID:  user.ID,                               // Poster
		Title:       in.Title,                              // Title
		Description: in.Description,                        // Description
		Category:    in.Category,                           // Category
		BudgetMin:   in.BudgetMin,                          // Budget
		BudgetMax:   in.BudgetMax,                          // Budget
		Status:      domain.JobRequested,                   // Initial state
		TokenCost:   s.gate.Cost(authorizer.ActionJobPost), // Charged tokens
	}
	err := s.gate.Authorize(ctx, user, authorizer.ActionJobPost, job.ID.String(), func(ctx context.Context) error {
		return s.db.WithContext(ctx).Create(&job).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"job_id":      job.ID,        // Job
		"employer_id": user.ID,       // Poster
		"category":    job.Category,  // Category
		"token_cost":  job.TokenCost, // Charge
	}).Info("Job posted")
	notify.Emit(ctx, s.notifier, domain.NewEvent(domain.EventJobCreated, job.ID,
		map[string]any{"title": job.Title, "category": job.Category}, user.ID))
	return &job, nil
}

// Get returns one job
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return load(s.db.WithContext(ctx), id)
}

// List returns the jobs visible to user and the total count. Employers see
// their own postings, employees see open jobs and their assignments.
func (s *Service) List(ctx context.Context, user domain.User, f Filter) ([]domain.Job, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Size < 1 || f.Size > 100 {
		f.Size = 20
	}
	q := s.db.WithContext(ctx).Model(&domain.Job{})
	switch user.Role {
	case domain.RoleEmployer:
		q = q.Where("employer_id = ?", user.ID)
	case domain.RoleEmployee:
		q = q.Where("(status IN ? OR worker_id = ?)", []domain.JobStatus{domain.JobRequested, domain.JobOffered}, user.ID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var jobs []domain.Job
	err := q.Order("created_at desc").
		Offset((f.Page - 1) * f.Size).
		Limit(f.Size).
		Find(&jobs).Error
	return jobs, total, err
}

// UpdateStatus moves a job through the lifecycle. It never populates the
// worker or the price, so assignment only succeeds for a job that already
// carries both; offers assign jobs through TransitionTx. Concurrent updates of
// the same job are retried; a rejected change leaves the job untouched.
func (s *Service) UpdateStatus(ctx context.Context, user domain.User, id uuid.UUID, to domain.JobStatus) (*domain.Job, error) {
	ch := Change{To: to}
	var before domain.JobStatus
	var updated *domain.Job
	err := db.Transact(ctx, s.db, s.attempts, func(tx *gorm.DB) error {
		current, err := load(tx, id)
		if err != nil {
			return err
		}
		before = current.Status
		updated, err = s.TransitionTx(ctx, tx, current, user, ch)
		return err
	})
	if err != nil {
		fields := logrus.Fields{
			"job_id":  id,          // Job
			"user_id": user.ID,     // Actor
			"to":      ch.To,       // Requested state
			"error":   err.Error(), // Error message
		}
		logrus.WithFields(fields).Warn("Job transition rejected")
		return nil, err
	}
	s.Announce(ctx, before, updated, user)
	return updated, nil
}

// TransitionTx checks and persists one transition inside tx. It runs the
// completion hook on the job's first arrival at completed. The worker and
// price in ch are trusted, so callers must derive them from an accepted offer.
func (s *Service) TransitionTx(ctx context.Context, tx *gorm.DB, current *domain.Job, user domain.User, ch Change) (*domain.Job, error) {
	next, err := s.machine.Apply(current, user, ch, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	updates := map[string]any{"status": next.Status}
	if next.WorkerID != nil {
		updates["worker_id"] = *next.WorkerID
	}
	if next.AgreedPrice != nil {
		updates["agreed_price"] = *next.AgreedPrice
	}
	if next.AssignedAt != nil {
		updates["assigned_at"] = *next.AssignedAt
	}
	if next.CompletedAt != nil {
		updates["completed_at"] = *next.CompletedAt
	}
	if err := db.UpdateVersioned(tx.WithContext(ctx), &domain.Job{}, "job", current.ID, current.Version, updates); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1

	if next.Status == domain.JobCompleted && current.CompletedAt == nil && s.hook != nil {
		if err := s.hook.OnJobCompleted(tx.WithContext(ctx), next); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// Announce logs and publishes a committed transition
func (s *Service) Announce(ctx context.Context, from domain.JobStatus, job *domain.Job, actor domain.User) {
	logrus.WithFields(logrus.Fields{
		"job_id":    job.ID,                          // Job
		"user_id":   actor.ID,                        // Actor
		"from":      from,                            // Previous state
		"to":        job.Status,                      // New state
		"timestamp": time.Now().Format(time.RFC3339), // Current timestamp
	}).Info("Job status changed")

	recipients := []uuid.UUID{job.EmployerID}
	if job.WorkerID != nil {
		recipients = append(recipients, *job.WorkerID)
	}
	notify.Emit(ctx, s.notifier, domain.NewEvent(domain.EventJobStatusChanged, job.ID,
		map[string]any{"from": from, "to": job.Status}, recipients...))
}

// Load reads a job inside tx
func Load(tx *gorm.DB, id uuid.UUID) (*domain.Job, error) {
	return load(tx, id)
}

func load(tx *gorm.DB, id uuid.UUID) (*domain.Job, error) {
	var job domain.Job
	if err := tx.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("job")
		}
		return nil, err
	}
	return &job, nil
}
