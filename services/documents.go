package services

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ref-mill/models"
)

// DocumentService persists extraction results. Writes are idempotent on the
// content hash: redelivered jobs update the existing row instead of creating
// a second one, and sequence numbers are never reassigned.
type DocumentService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewDocumentService creates the service.
func NewDocumentService(db *gorm.DB, logger *zap.Logger) *DocumentService {
	return &DocumentService{DB: db, Logger: logger}
}

// Upsert stores one extraction result keyed by contentHash. A new record
// gets the next free sequence number; an existing one keeps its number and
// has its fields refreshed.
func (s *DocumentService) Upsert(f Fields, contentHash, jobID string, enriched, lowConfidence bool) (*models.Document, error) {
	var doc models.Document

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("content_hash = ?", contentHash).First(&doc).Error
		if err == nil {
			applyFields(&doc, f, jobID, enriched, lowConfidence)
			return tx.Save(&doc).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var maxSeq int
		if err := tx.Model(&models.Document{}).
			Select("COALESCE(MAX(seq_num), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}

		doc = models.Document{SeqNum: maxSeq + 1, ContentHash: contentHash}
		applyFields(&doc, f, jobID, enriched, lowConfidence)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "content_hash"}},
			DoNothing: true,
		}).Create(&doc).Error
	})
	if err != nil {
		return nil, err
	}

	// A concurrent writer may have won the conflict; read the surviving row.
	if doc.ID == 0 {
		if err := s.DB.Where("content_hash = ?", contentHash).First(&doc).Error; err != nil {
			return nil, err
		}
	}

	s.Logger.Info("document stored",
		zap.Int("seq_num", doc.SeqNum),
		zap.String("job_id", jobID),
		zap.Bool("enriched", doc.Enriched))
	return &doc, nil
}

func applyFields(doc *models.Document, f Fields, jobID string, enriched, lowConfidence bool) {
	doc.Authors = f.Authors
	doc.Year = f.Year
	doc.OriginalTitle = f.Title
	doc.Keywords = f.Keywords
	doc.Abstract = f.Abstract
	doc.PubPlace = f.Journal
	doc.Publisher = f.Publisher
	doc.VolumeEdition = f.Volume
	doc.ISBNISSN = f.ISBNISSN
	doc.ArticleNumber = f.ArticleNumber
	doc.Pages = f.Pages
	doc.DOI = f.DOI
	doc.Link = f.Link
	doc.Language = f.Language
	doc.DocType = f.DocType
	doc.DocTypeOther = f.DocTypeOther
	doc.PeerReviewed = f.PeerReviewed
	doc.OpenAccess = f.OpenAccess
	if doc.FullTextInDB == "" {
		doc.FullTextInDB = models.AnswerNo
	}
	doc.JobID = jobID
	doc.Enriched = enriched
	doc.LowConfidence = lowConfidence
}

// GetBySeq fetches one document by its sequence number.
func (s *DocumentService) GetBySeq(seq int) (*models.Document, error) {
	var doc models.Document
	if err := s.DB.Where("seq_num = ?", seq).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns documents ordered by sequence number, paginated.
func (s *DocumentService) List(offset, limit int) ([]models.Document, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var total int64
	if err := s.DB.Model(&models.Document{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []models.Document
	err := s.DB.Order("seq_num asc").Offset(offset).Limit(limit).Find(&docs).Error
	return docs, total, err
}
