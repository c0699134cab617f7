package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ref-mill/models"
)

// ErrJobNotFound distinguishes an unknown job id from a lookup failure.
var ErrJobNotFound = errors.New("job not found")

// Progress floors per status. A status change never moves progress
// backwards; these are minimums, not assignments.
const (
	progressProcessing = 10
	progressAnalyzing  = 40
	progressCompleted  = 100
)

// JobService owns the job state machine:
// pending -> processing -> (analyzing) -> completed | failed.
// Progress is monotonic and pinned to 100 on completion.
type JobService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewJobService creates the service.
func NewJobService(db *gorm.DB, logger *zap.Logger) *JobService {
	return &JobService{DB: db, Logger: logger}
}

// Create registers a new pending job and returns it with a fresh id.
func (s *JobService) Create(contentKey, filename, contentKind, parentJobID string) (*models.Job, error) {
	job := models.Job{
		JobID:       uuid.NewString(),
		ContentKey:  contentKey,
		Filename:    filename,
		ContentKind: contentKind,
		ParentJobID: parentJobID,
		Status:      models.JobStatusPending,
	}
	if err := s.DB.Create(&job).Error; err != nil {
		return nil, err
	}
	s.Logger.Info("job created",
		zap.String("job_id", job.JobID),
		zap.String("content_kind", contentKind))
	return &job, nil
}

// Get fetches one job by id.
func (s *JobService) Get(jobID string) (*models.Job, error) {
	var job models.Job
	err := s.DB.Where("job_id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkProcessing moves a job into processing, counts the attempt and lifts
// progress to at least the processing floor.
func (s *JobService) MarkProcessing(jobID string) error {
	now := time.Now()
	return s.update(jobID, map[string]any{
		"status":     models.JobStatusProcessing,
		"attempts":   gorm.Expr("attempts + 1"),
		"started_at": &now,
		"error":      "",
		"progress":   progressFloor(progressProcessing),
	})
}

// MarkAnalyzing moves a job into the analyzing phase.
func (s *JobService) MarkAnalyzing(jobID string) error {
	return s.update(jobID, map[string]any{
		"status":   models.JobStatusAnalyzing,
		"progress": progressFloor(progressAnalyzing),
	})
}

// UpdateProgress lifts progress to p. Lower values are ignored, so retried
// jobs never appear to move backwards.
func (s *JobService) UpdateProgress(jobID string, p int) error {
	return s.DB.Model(&models.Job{}).
		Where("job_id = ? AND progress < ?", jobID, p).
		Update("progress", p).Error
}

// Complete finishes a job, pins progress to 100 and records the sequence
// number of the document it produced.
func (s *JobService) Complete(jobID string, resultSeq *int) error {
	now := time.Now()
	err := s.update(jobID, map[string]any{
		"status":      models.JobStatusCompleted,
		"progress":    progressCompleted,
		"result_seq":  resultSeq,
		"finished_at": &now,
	})
	if err == nil {
		s.Logger.Info("job completed", zap.String("job_id", jobID))
	}
	return err
}

// Fail finishes a job with an error message. Progress is left where it was.
func (s *JobService) Fail(jobID, message string) error {
	now := time.Now()
	err := s.update(jobID, map[string]any{
		"status":      models.JobStatusFailed,
		"error":       message,
		"finished_at": &now,
	})
	if err == nil {
		s.Logger.Warn("job failed",
			zap.String("job_id", jobID),
			zap.String("error", message))
	}
	return err
}

// SubJobs lists the jobs spawned by a parent, oldest first.
func (s *JobService) SubJobs(parentJobID string) ([]models.Job, error) {
	var jobs []models.Job
	err := s.DB.Where("parent_job_id = ?", parentJobID).
		Order("created_at asc, id asc").
		Find(&jobs).Error
	return jobs, err
}

// PurgeTerminal deletes terminal jobs older than retention and returns how
// many were removed.
func (s *JobService) PurgeTerminal(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res := s.DB.Where("status IN ? AND finished_at < ?",
		[]string{models.JobStatusCompleted, models.JobStatusFailed}, cutoff).
		Delete(&models.Job{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.Logger.Info("old jobs purged", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (s *JobService) update(jobID string, values map[string]any) error {
	res := s.DB.Model(&models.Job{}).Where("job_id = ?", jobID).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// progressFloor builds an update expression that lifts progress to at least
// floor without ever lowering it.
func progressFloor(floor int) any {
	return gorm.Expr("CASE WHEN progress < ? THEN ? ELSE progress END", floor, floor)
}
