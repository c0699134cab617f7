package models

import (
	"time"
)

// Job-Status bilden eine strikte Zustandsmaschine:
// pending -> processing -> (analyzing) -> completed, oder
// pending -> processing -> failed.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusAnalyzing  = "analyzing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Bei der Annahme akzeptierte Inhaltsarten.
const (
	ContentKindPDF           = "pdf"
	ContentKindReferencesPDF = "references_pdf"
	ContentKindReferenceText = "reference_text"
)

// Job verfolgt einen asynchronen Extraktionslauf. Geschrieben wird er nur
// vom besitzenden Worker, gelesen parallel von abfragenden Clients.
type Job struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	JobID       string `json:"job_id" gorm:"column:job_id;uniqueIndex;size:36;not null"`
	ContentKey  string `json:"content_key" gorm:"size:512"`
	Filename    string `json:"filename,omitempty" gorm:"size:255"`
	ContentKind string `json:"content_kind" gorm:"size:32;index"`

	// ParentJobID verknüpft einen synthetischen Sub-Job (eine Referenz
	// aus einem Literatur-PDF) mit dem Job, der ihn erzeugt hat.
	ParentJobID string `json:"parent_job_id,omitempty" gorm:"size:36;index"`

	Status   string `json:"status" gorm:"size:16;index"`
	Progress int    `json:"progress"`
	Attempts int    `json:"attempts"`

	Error      string `json:"error,omitempty" gorm:"type:text"`
	ResultSeq  *int   `json:"result_seq,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Terminal meldet, ob der Job einen Endzustand erreicht hat.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// TableName legt den Tabellennamen explizit fest.
func (Job) TableName() string {
	return "jobs"
}
