package domain

import (
	"time" // Timestamps

	"github.com/google/uuid"         // UUID identifiers
	"github.com/shopspring/decimal" // Currency amounts
)

// JobStatus is a state of the job lifecycle
type JobStatus string

const (
	JobRequested JobStatus = "requested"
	JobOffered   JobStatus = "offered"
	JobAssigned  JobStatus = "assigned"
	JobEnRoute   JobStatus = "en_route"
	JobOnSite    JobStatus = "on_site"
	JobCompleted JobStatus = "completed"
	JobRated     JobStatus = "rated"
	JobCancelled JobStatus = "cancelled"
	JobDisputed  JobStatus = "disputed"
)

// ParseJobStatus converts a raw value into a known JobStatus
func ParseJobStatus(raw string) (JobStatus, bool) {
	switch s := JobStatus(raw); s {
	case JobRequested, JobOffered, JobAssigned, JobEnRoute, JobOnSite,
		JobCompleted, JobRated, JobCancelled, JobDisputed:
		return s, true
	}
	return "", false
}

// Terminal reports whether the status accepts no further transitions
func (s JobStatus) Terminal() bool {
	return s == JobRated || s == JobCancelled
}

// Job Model
type Job struct {
	ID              uuid.UUID        `gorm:"type:char(36);primaryKey" json:"id"`                  // Primary key
	EmployerID      uuid.UUID        `gorm:"type:char(36);index;not null" json:"employer_id"`     // Posting employer
	WorkerID        *uuid.UUID       `gorm:"type:char(36);index" json:"worker_id"`                // Assigned worker, nil until assigned
	Title           string           `gorm:"type:varchar(255);not null" json:"title"`             // Short title
	Description     string           `gorm:"type:text" json:"description"`                        // Free text
	Category        string           `gorm:"type:varchar(100);index;not null" json:"category"`    // Trade category
	BudgetMin       decimal.Decimal  `gorm:"type:decimal(12,2)" json:"budget_min"`                // Lower budget bound
	BudgetMax       decimal.Decimal  `gorm:"type:decimal(12,2)" json:"budget_max"`                // Upper budget bound
	AgreedPrice     *decimal.Decimal `gorm:"type:decimal(12,2)" json:"agreed_price"`              // Set when an offer is accepted
	Status          JobStatus        `gorm:"type:varchar(16);index;not null" json:"status"`       // Lifecycle state
	TokenCost       int64            `gorm:"not null;default:0" json:"token_cost"`                // Tokens charged at posting
	RatedByEmployer bool             `gorm:"not null;default:false" json:"rated_by_employer"`     // Employer submitted a rating
	RatedByWorker   bool             `gorm:"not null;default:false" json:"rated_by_worker"`       // Worker submitted a rating
	Version         int64            `gorm:"not null;default:0" json:"-"`                         // Optimistic concurrency counter
	AssignedAt      *time.Time       `json:"assigned_at"`                                         // First assignment time
	CompletedAt     *time.Time       `json:"completed_at"`                                        // First completion time
	CreatedAt       time.Time        `json:"created_at"`                                          // Creation time
	UpdatedAt       time.Time        `json:"updated_at"`                                          // Last transition time
}

// IsParticipant reports whether userID is the employer or the assigned worker
func (j *Job) IsParticipant(userID uuid.UUID) bool {
	return j.EmployerID == userID || j.IsWorker(userID)
}

// IsWorker reports whether userID is the assigned worker
func (j *Job) IsWorker(userID uuid.UUID) bool {
	return j.WorkerID != nil && *j.WorkerID == userID
}
