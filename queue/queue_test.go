package queue

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ref-mill/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.QueueMessage{}))
	return db
}

func TestEnqueueReceiveAck(t *testing.T) {
	q := New(testDB(t), zap.NewNop(), time.Minute, 3)

	require.NoError(t, q.Enqueue("job-1", "uploads/a.pdf", models.ContentKindPDF))

	msg, err := q.Receive()
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "job-1", msg.JobID)
	assert.Equal(t, "uploads/a.pdf", msg.ContentKey)
	assert.Equal(t, 1, msg.ReceiveCount)

	require.NoError(t, q.Ack(msg.ID))

	msg, err = q.Receive()
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestReceiveOrderIsOldestFirst(t *testing.T) {
	q := New(testDB(t), zap.NewNop(), time.Minute, 3)

	require.NoError(t, q.Enqueue("job-1", "a", models.ContentKindPDF))
	require.NoError(t, q.Enqueue("job-2", "b", models.ContentKindPDF))

	m1, err := q.Receive()
	require.NoError(t, err)
	m2, err := q.Receive()
	require.NoError(t, err)
	assert.Equal(t, "job-1", m1.JobID)
	assert.Equal(t, "job-2", m2.JobID)
}

func TestInFlightMessageIsHidden(t *testing.T) {
	q := New(testDB(t), zap.NewNop(), 30*time.Millisecond, 5)

	require.NoError(t, q.Enqueue("job-1", "a", models.ContentKindPDF))

	first, err := q.Receive()
	require.NoError(t, err)
	require.NotNil(t, first)

	// Hidden while in flight.
	hidden, err := q.Receive()
	require.NoError(t, err)
	assert.Nil(t, hidden)

	// Redelivered once the visibility timeout expires, with the receive
	// count carried forward.
	time.Sleep(50 * time.Millisecond)
	second, err := q.Receive()
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.ReceiveCount)
}

func TestReleaseMakesMessageVisible(t *testing.T) {
	q := New(testDB(t), zap.NewNop(), time.Minute, 5)

	require.NoError(t, q.Enqueue("job-1", "a", models.ContentKindPDF))

	msg, err := q.Receive()
	require.NoError(t, err)
	require.NotNil(t, msg)

	require.NoError(t, q.Release(msg.ID, 0))

	again, err := q.Receive()
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, msg.ID, again.ID)
	assert.Equal(t, 2, again.ReceiveCount)
}

func TestDeadLetterAfterMaxReceives(t *testing.T) {
	q := New(testDB(t), zap.NewNop(), time.Minute, 2)

	require.NoError(t, q.Enqueue("job-1", "a", models.ContentKindPDF))

	for i := 0; i < 2; i++ {
		msg, err := q.Receive()
		require.NoError(t, err)
		require.NotNil(t, msg)
		require.NoError(t, q.Release(msg.ID, 0))
	}

	// Budget spent: the next receive parks it instead of delivering.
	msg, err := q.Receive()
	require.NoError(t, err)
	assert.Nil(t, msg)

	dead, err := q.DeadLetters()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "job-1", dead[0].JobID)

	depth, err := q.Depth()
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestRedrive(t *testing.T) {
	q := New(testDB(t), zap.NewNop(), time.Minute, 1)

	require.NoError(t, q.Enqueue("job-1", "a", models.ContentKindPDF))

	msg, err := q.Receive()
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.NoError(t, q.Release(msg.ID, 0))

	parked, err := q.Receive()
	require.NoError(t, err)
	assert.Nil(t, parked)

	dead, err := q.DeadLetters()
	require.NoError(t, err)
	require.Len(t, dead, 1)

	require.NoError(t, q.Redrive(dead[0].ID))

	msg, err = q.Receive()
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, 1, msg.ReceiveCount)

	// Redriving a live message is a no-op error.
	assert.ErrorIs(t, q.Redrive(msg.ID), gorm.ErrRecordNotFound)
}
