package models

import (
	"time"
)

// Dokumenttypen gemäß dem kontrollierten Vokabular des Katalogs.
const (
	DocTypeJournalArticle = "Artículo en revista científica"
	DocTypeBookChapter    = "Capítulo de libro"
	DocTypeBook           = "Libro"
	DocTypeConference     = "Ponencia en congreso"
	DocTypeThesis         = "Tesis"
	DocTypeReport         = "Informe técnico"
	DocTypeOtherLabel     = "Otro"
)

// Ja/Nein-Spaltenwerte, als Strings für das Exportlayout.
const (
	AnswerYes = "Sí"
	AnswerNo  = "No"
)

// Document repräsentiert den fertigen bibliographischen Datensatz der
// Pipeline. Die Spalten entsprechen dem zwanzigspaltigen Layout, das der
// nachgelagerte Export unverändert übernimmt.
type Document struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// SeqNum wird beim Speichern fortlaufend vergeben und nie wiederverwendet.
	SeqNum int `json:"seq_num" gorm:"column:seq_num;uniqueIndex;not null"`

	Authors       string `json:"authors,omitempty" gorm:"type:text"`
	Year          int    `json:"year,omitempty"`
	OriginalTitle string `json:"original_title,omitempty" gorm:"type:text"`
	Keywords      string `json:"keywords,omitempty" gorm:"type:text"`
	Abstract      string `json:"abstract,omitempty" gorm:"type:text"`

	PubPlace      string `json:"pub_place,omitempty" gorm:"type:text"`
	Publisher     string `json:"publisher,omitempty" gorm:"type:text"`
	VolumeEdition string `json:"volume_edition,omitempty" gorm:"size:100"`
	ISBNISSN      string `json:"isbn_issn,omitempty" gorm:"column:isbn_issn;size:50"`
	ArticleNumber string `json:"article_number,omitempty" gorm:"size:100"`
	Pages         string `json:"pages,omitempty" gorm:"size:50"`

	DOI  string `json:"doi,omitempty" gorm:"column:doi;size:255;index"`
	Link string `json:"link,omitempty" gorm:"type:text"`

	Language     string `json:"language,omitempty" gorm:"size:50"`
	DocType      string `json:"doc_type,omitempty" gorm:"size:100"`
	DocTypeOther string `json:"doc_type_other,omitempty" gorm:"size:100"`

	PeerReviewed  string `json:"peer_reviewed,omitempty" gorm:"size:10"`
	OpenAccess    string `json:"open_access,omitempty" gorm:"size:10"`
	FullTextInDB  string `json:"full_text_in_db,omitempty" gorm:"size:10"`

	// ContentHash ist der stabile Upsert-Schlüssel; eine erneute
	// Zustellung desselben Jobs erzeugt nie eine zweite Zeile.
	ContentHash string `json:"-" gorm:"uniqueIndex;size:64;not null"`
	JobID       string `json:"job_id,omitempty" gorm:"index;size:36"`

	Enriched      bool `json:"enriched"`
	LowConfidence bool `json:"low_confidence"`
}

// TableName legt den Tabellennamen explizit fest.
func (Document) TableName() string {
	return "documents"
}
