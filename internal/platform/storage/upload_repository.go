package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/thependalorian/cea-gateway/internal/platform/errors"
)

// UploadRepository persists and queries upload audit records.
type UploadRepository interface {
	Save(ctx context.Context, record *UploadRecord) error
	FindByRequestID(ctx context.Context, requestID string) (*UploadRecord, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]UploadRecord, int64, error)
}

type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository creates a repository backed by the provided handle.
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{
		db: db,
	}
}

func (r *uploadRepository) Save(ctx context.Context, record *UploadRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "upload.save", "failed to save upload record", err)
	}
	return nil
}

func (r *uploadRepository) FindByRequestID(ctx context.Context, requestID string) (*UploadRecord, error) {
	var record UploadRecord
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil // record does not exist
		}
		return nil, errors.Wrap(errors.KindStorage, "upload.find_by_request_id", "failed to find upload record", err)
	}
	return &record, nil
}

func (r *uploadRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]UploadRecord, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	query := r.db.WithContext(ctx).Model(&UploadRecord{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(errors.KindStorage, "upload.count_by_user", "failed to count upload records", err)
	}

	var records []UploadRecord
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
		return nil, 0, errors.Wrap(errors.KindStorage, "upload.list_by_user", "failed to list upload records", err)
	}
	return records, total, nil
}
