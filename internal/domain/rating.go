package domain

import (
	"time" // Timestamps

	"github.com/google/uuid" // UUID identifiers
	"gorm.io/datatypes"      // JSON column types
)

// Rating Model, unique per (job, rater)
type Rating struct {
	ID        uuid.UUID                   `gorm:"type:char(36);primaryKey" json:"id"`                                   // Primary key
	JobID     uuid.UUID                   `gorm:"type:char(36);not null;uniqueIndex:idx_rating_job_rater" json:"job_id"` // Rated job
	RaterID   uuid.UUID                   `gorm:"type:char(36);not null;uniqueIndex:idx_rating_job_rater" json:"rater_id"` // Participant giving the rating
	RatedID   uuid.UUID                   `gorm:"type:char(36);index;not null" json:"rated_id"`                         // Participant receiving the rating
	Stars     int                         `gorm:"not null" json:"stars"`                                                // 1 to 5
	Comment   string                      `gorm:"type:text" json:"comment,omitempty"`                                   // Optional comment
	Tags      datatypes.JSONSlice[string] `json:"tags"`                                                                 // e.g. punctual, skilled
	CreatedAt time.Time                   `json:"created_at"`                                                           // Creation time
}

// Profile holds the reputation aggregates of a user
type Profile struct {
	UserID             uuid.UUID `gorm:"type:char(36);primaryKey" json:"user_id"`    // One profile per user
	AverageRating      float64   `gorm:"not null;default:0" json:"average_rating"`   // Mean of received stars, 2 decimals
	TotalRatings       int64     `gorm:"not null;default:0" json:"total_ratings"`    // Ratings received
	TotalJobsCompleted int64     `gorm:"not null;default:0" json:"total_jobs_completed"` // Jobs that reached completed
	UpdatedAt          time.Time `json:"updated_at"`                                 // Last recompute
}
