package models

import (
	"time"
)

// QueueMessage ist ein dauerhafter Queue-Eintrag. Sichtbarkeit und
// Empfangszähler liegen explizit auf der Zeile, die Redrive-Logik hängt
// damit an keinem bestimmten Broker.
type QueueMessage struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"-"`

	JobID       string    `json:"job_id" gorm:"size:36;index;not null"`
	ContentKey  string    `json:"content_key" gorm:"size:512"`
	ContentKind string    `json:"content_kind" gorm:"size:32"`
	EnqueuedAt  time.Time `json:"enqueued_at"`

	// VisibleAt verbirgt eine in Bearbeitung befindliche Nachricht vor
	// anderen Konsumenten, bis das Visibility-Timeout abläuft.
	VisibleAt    time.Time `json:"visible_at" gorm:"index"`
	ReceiveCount int       `json:"receive_count"`
	Dead         bool      `json:"dead" gorm:"index"`
}

// TableName legt den Tabellennamen explizit fest.
func (QueueMessage) TableName() string {
	return "queue_messages"
}
