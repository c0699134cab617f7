// Package queue implements a durable work queue on a database table.
// Delivery state is explicit row data: a visibility deadline hides in-flight
// messages, a receive counter drives the redrive policy, and messages whose
// retry budget is spent are parked as dead letters instead of being lost.
package queue

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ref-mill/models"
)

// Queue hands out messages with at-least-once semantics. Consumers must Ack
// a finished message or Release one they cannot process.
type Queue struct {
	DB                *gorm.DB
	Logger            *zap.Logger
	VisibilityTimeout time.Duration
	MaxReceiveCount   int
}

// New creates a queue over db.
func New(db *gorm.DB, logger *zap.Logger, visibilityTimeout time.Duration, maxReceiveCount int) *Queue {
	return &Queue{
		DB:                db,
		Logger:            logger,
		VisibilityTimeout: visibilityTimeout,
		MaxReceiveCount:   maxReceiveCount,
	}
}

// Enqueue adds a message, immediately visible.
func (q *Queue) Enqueue(jobID, contentKey, contentKind string) error {
	now := time.Now()
	msg := models.QueueMessage{
		JobID:       jobID,
		ContentKey:  contentKey,
		ContentKind: contentKind,
		EnqueuedAt:  now,
		VisibleAt:   now,
	}
	if err := q.DB.Create(&msg).Error; err != nil {
		return err
	}
	q.Logger.Debug("message enqueued", zap.String("job_id", jobID))
	return nil
}

// Receive claims the oldest visible message and hides it for the visibility
// timeout. A message that has already used up its receive budget is parked
// as a dead letter and the next one is tried. Returns (nil, nil) when the
// queue is empty.
//
// The claim is an optimistic compare-and-set on the visibility deadline, so
// concurrent receivers never share a message.
func (q *Queue) Receive() (*models.QueueMessage, error) {
	now := time.Now()

	for {
		var msg models.QueueMessage
		err := q.DB.
			Where("dead = ? AND visible_at <= ?", false, now).
			Order("enqueued_at asc, id asc").
			First(&msg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		if msg.ReceiveCount >= q.MaxReceiveCount {
			res := q.DB.Model(&models.QueueMessage{}).
				Where("id = ? AND visible_at = ?", msg.ID, msg.VisibleAt).
				Update("dead", true)
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected == 1 {
				q.Logger.Warn("message dead-lettered",
					zap.String("job_id", msg.JobID),
					zap.Int("receive_count", msg.ReceiveCount))
			}
			continue
		}

		res := q.DB.Model(&models.QueueMessage{}).
			Where("id = ? AND visible_at = ?", msg.ID, msg.VisibleAt).
			Updates(map[string]any{
				"visible_at":    now.Add(q.VisibilityTimeout),
				"receive_count": msg.ReceiveCount + 1,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Another receiver claimed it first.
			continue
		}

		msg.VisibleAt = now.Add(q.VisibilityTimeout)
		msg.ReceiveCount++
		return &msg, nil
	}
}

// Ack deletes a processed message.
func (q *Queue) Ack(id uint) error {
	return q.DB.Delete(&models.QueueMessage{}, id).Error
}

// Release makes a message visible again after delay, for transient
// failures. The receive count is kept, so repeated releases still converge
// on the dead-letter path.
func (q *Queue) Release(id uint, delay time.Duration) error {
	return q.DB.Model(&models.QueueMessage{}).
		Where("id = ?", id).
		Update("visible_at", time.Now().Add(delay)).Error
}

// DeadLetters lists parked messages, oldest first.
func (q *Queue) DeadLetters() ([]models.QueueMessage, error) {
	var msgs []models.QueueMessage
	err := q.DB.Where("dead = ?", true).Order("enqueued_at asc").Find(&msgs).Error
	return msgs, err
}

// Redrive returns a dead letter to the live queue with a fresh receive
// budget.
func (q *Queue) Redrive(id uint) error {
	res := q.DB.Model(&models.QueueMessage{}).
		Where("id = ? AND dead = ?", id, true).
		Updates(map[string]any{
			"dead":          false,
			"receive_count": 0,
			"visible_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	q.Logger.Info("dead letter redriven", zap.Uint("id", id))
	return nil
}

// Depth returns the number of live messages, visible or in flight.
func (q *Queue) Depth() (int64, error) {
	var n int64
	err := q.DB.Model(&models.QueueMessage{}).Where("dead = ?", false).Count(&n).Error
	return n, err
}
