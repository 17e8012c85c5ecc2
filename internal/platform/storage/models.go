package storage

import (
	"time"

	"gorm.io/datatypes"
)

// Upload outcome values stored in UploadRecord.Status.
const (
	UploadStatusCompleted = "completed"
	UploadStatusFailed    = "failed"
)

// Path values stored in UploadRecord.Path.
const (
	UploadPathDirect   = "direct"
	UploadPathFallback = "fallback"
)

// UploadRecord is the audit trail row written once per resume upload.
type UploadRecord struct {
	ID          uint           `gorm:"primaryKey" json:"-"`
	RequestID   string         `gorm:"uniqueIndex;size:64;not null" json:"request_id"`
	UserID      string         `gorm:"index;size:64;not null" json:"user_id"`
	Filename    string         `gorm:"size:256" json:"filename"`
	ContentType string         `gorm:"size:128" json:"content_type"`
	SizeBytes   int64          `json:"size_bytes"`
	Path        string         `gorm:"size:16" json:"path"`
	Status      string         `gorm:"index;size:16" json:"status"`
	StatusCode  int            `json:"status_code"`
	Detail      datatypes.JSON `json:"detail,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (UploadRecord) TableName() string {
	return "upload_records"
}
