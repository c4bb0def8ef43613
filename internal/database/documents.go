package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrDocumentNotFound = errors.New("document not found")

// Document sources.
const (
	SourceUpload = "upload"
	SourceJSON   = "json"
	SourceJob    = "job"
)

// CreateDocument records a stored output document.
func CreateDocument(doc *Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.Source == "" {
		doc.Source = SourceUpload
	}
	if err := DB.Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// ListDocuments returns documents newest first along with the total count.
func ListDocuments(limit, offset int) ([]Document, int64, error) {
	var total int64
	if err := DB.Model(&Document{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}
	var docs []Document
	q := DB.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&docs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, total, nil
}

// GetDocument loads one document by ID.
func GetDocument(id uuid.UUID) (*Document, error) {
	var doc Document
	if err := DB.First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	return &doc, nil
}

// DeleteDocument removes the record. The stored object is the caller's job.
func DeleteDocument(id uuid.UUID) error {
	res := DB.Delete(&Document{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// ExpiredDocuments lists documents whose expiry is at or before now.
func ExpiredDocuments(now time.Time, limit int) ([]Document, error) {
	var docs []Document
	q := DB.Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC()).Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to query expired documents: %w", err)
	}
	return docs, nil
}

// RecordLoginAttempt stores one login attempt.
func RecordLoginAttempt(ip, username, userAgent string, success bool) error {
	return DB.Create(&LoginAttempt{
		IPAddress: ip,
		Username:  username,
		UserAgent: userAgent,
		Success:   success,
	}).Error
}

// PruneLoginAttempts deletes attempts older than before.
func PruneLoginAttempts(before time.Time) (int64, error) {
	res := DB.Where("attempted_at < ?", before.UTC()).Delete(&LoginAttempt{})
	return res.RowsAffected, res.Error
}

// DeleteAllDocuments removes every document record.
func DeleteAllDocuments() (int64, error) {
	res := DB.Where("1 = 1").Delete(&Document{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", res.Error)
	}
	return res.RowsAffected, nil
}
