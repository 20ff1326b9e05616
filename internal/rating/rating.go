// Package rating records post-job ratings and maintains user reputation.
package rating

import (
	"context" // Cancellation
	"errors"  // Error matching
	"math"    // Rounding
	"strings" // Input trimming
	"time"    // Timestamps

	"labour_connect/internal/db"     // Retried transactions
	"labour_connect/internal/domain" // Domain models
	"labour_connect/internal/job"    // Job lifecycle
	"labour_connect/internal/notify" // Status events

	"github.com/google/uuid"     // UUID identifiers
	"github.com/sirupsen/logrus" // Structured logging
	"gorm.io/datatypes"          // JSON columns
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/clause"        // Upsert clauses
)

const maxTags = 10

// Jobs is the part of the JobLifecycle ratings drive
type Jobs interface {
	TransitionTx(ctx context.Context, tx *gorm.DB, current *domain.Job, user domain.User, ch job.Change) (*domain.Job, error)
	Announce(ctx context.Context, from domain.JobStatus, j *domain.Job, actor domain.User)
}

// SubmitInput is one participant's rating of the other
type SubmitInput struct {
	JobID   uuid.UUID `json:"job_id"`
	RatedID uuid.UUID `json:"rated_id"`
	Stars   int       `json:"stars"`
	Comment string    `json:"comment"`
	Tags    []string  `json:"tags"`
}

// Service is the RatingTrigger
type Service struct {
	db       *gorm.DB
	jobs     Jobs
	notifier notify.Notifier
	attempts int
}

// NewService creates a rating Service
func NewService(gdb *gorm.DB, jobs Jobs, notifier notify.Notifier, attempts int) *Service {
	return &Service{db: gdb, jobs: jobs, notifier: notifier, attempts: attempts}
}

func (in *SubmitInput) validate() error {
	if in.JobID == uuid.Nil || in.RatedID == uuid.Nil {
		return domain.Validation("job_id and rated_id are required")
	}
	if in.Stars < 1 || in.Stars > 5 {
		return domain.Validation("stars must be between 1 and 5")
	}
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) > maxTags {
		return domain.Validation("at most %d tags", maxTags)
	}
	in.Tags = tags
	in.Comment = strings.TrimSpace(in.Comment)
	return nil
}

// Submit records user's rating of the other participant of a completed job.
// When both parties have rated, the job moves to rated.
func (s *Service) Submit(ctx context.Context, user domain.User, in SubmitInput) (*domain.Rating, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		r       domain.Rating
		profile domain.Profile
		closed  *domain.Job
	)
	err := db.Transact(ctx, s.db, s.attempts, func(tx *gorm.DB) error {
		closed = nil
		j, err := job.Load(tx, in.JobID)
		if err != nil {
			return err
		}
		if j.Status != domain.JobCompleted && j.Status != domain.JobRated {
			return domain.InvalidTransition("job is %s, ratings open once it is completed", j.Status)
		}
		if !j.IsParticipant(user.ID) {
			return domain.Forbidden("only job participants may rate")
		}
		if j.WorkerID == nil {
			return domain.InvalidTransition("job has no assigned worker to rate")
		}
		other := j.EmployerID
		if user.ID == j.EmployerID {
			other = *j.WorkerID
		}
		if in.RatedID != other {
			return domain.Validation("rated_id must be the other participant of the job")
		}

		var existing int64
		if err := tx.Model(&domain.Rating{}).Where("job_id = ? AND rater_id = ?", j.ID, user.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return domain.ErrAlreadyRated
		}

		r = domain.Rating{
			ID:      uuid.New(),                           // Rating ID
			JobID:   j.ID,                                 // Job
			RaterID: user.ID,                              // Rater
			RatedID: in.RatedID,                           // Rated
			Stars:   in.Stars,                             // Stars
			Comment: in.Comment,                           // Comment
			Tags:    datatypes.JSONSlice[string](in.Tags), // Tags
		}
		if err := tx.Create(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAlreadyRated // A concurrent submission won the unique index
			}
			return err
		}
		if profile, err = recompute(tx, in.RatedID); err != nil {
			return err
		}

		flag := "rated_by_worker"
		if user.ID == j.EmployerID {
			flag = "rated_by_employer"
			j.RatedByEmployer = true
		} else {
			j.RatedByWorker = true
		}
		// Serializes concurrent raters of the same job
		if err := db.UpdateVersioned(tx, &domain.Job{}, "job", j.ID, j.Version, map[string]any{flag: true}); err != nil {
			return err
		}
		j.Version++

		if j.Status == domain.JobCompleted && j.RatedByEmployer && j.RatedByWorker {
			closed, err = s.jobs.TransitionTx(ctx, tx, j, user, job.Change{To: domain.JobRated})
			return err
		}
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"job_id":  in.JobID,    // Job
			"user_id": user.ID,     // Rater
			"error":   err.Error(), // Error message
		}).Warn("Rating rejected")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"rating_id":      r.ID,                  // Rating
		"job_id":         r.JobID,               // Job
		"rated_id":       r.RatedID,             // Rated
		"stars":          r.Stars,               // Stars
		"average_rating": profile.AverageRating, // New average
	}).Info("Rating submitted")
	notify.Emit(ctx, s.notifier, domain.NewEvent(domain.EventRatingSubmitted, r.ID,
		map[string]any{"job_id": r.JobID, "stars": r.Stars}, r.RatedID))
	if closed != nil {
		s.jobs.Announce(ctx, domain.JobCompleted, closed, user)
	}
	return &r, nil
}

// OnJobCompleted counts the job for both participants. The job lifecycle calls
// it once, inside the transaction that first moves the job to completed.
func (s *Service) OnJobCompleted(tx *gorm.DB, j *domain.Job) error {
	users := []uuid.UUID{j.EmployerID}
	if j.WorkerID != nil {
		users = append(users, *j.WorkerID)
	}
	for _, id := range users {
		p := domain.Profile{UserID: id, TotalJobsCompleted: 1, UpdatedAt: time.Now().UTC()}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"total_jobs_completed": gorm.Expr("profiles.total_jobs_completed + ?", 1),
				"updated_at":           p.UpdatedAt,
			}),
		}).Create(&p).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// recompute refreshes the average and count of ratings received by userID
func recompute(tx *gorm.DB, userID uuid.UUID) (domain.Profile, error) {
	var agg struct {
		Avg   float64
		Total int64
	}
	err := tx.Model(&domain.Rating{}).
		Select("COALESCE(AVG(stars), 0) AS avg, COUNT(*) AS total").
		Where("rated_id = ?", userID).
		Scan(&agg).Error
	if err != nil {
		return domain.Profile{}, err
	}
	p := domain.Profile{
		UserID:        userID,
		AverageRating: math.Round(agg.Avg*100) / 100,
		TotalRatings:  agg.Total,
		UpdatedAt:     time.Now().UTC(),
	}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"average_rating", "total_ratings", "updated_at"}),
	}).Create(&p).Error
	return p, err
}

// Profile returns a user's reputation; users never rated get a zero profile
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var p domain.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.Profile{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListForUser returns ratings received by userID, newest first, with the total
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, page, size int) ([]domain.Rating, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	var total int64
	q := s.db.WithContext(ctx).Model(&domain.Rating{}).Where("rated_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var ratings []domain.Rating
	err := q.Order("created_at desc").Offset((page - 1) * size).Limit(size).Find(&ratings).Error
	return ratings, total, err
}
