package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Uploads is the ingestion history.
type Uploads struct {
	db *gorm.DB
}

func NewUploads(db *gorm.DB) *Uploads {
	return &Uploads{db: db}
}

func (u *Uploads) RecordUpload(ctx context.Context, up *Upload) error {
	if up.CreatedAt.IsZero() {
		up.CreatedAt = time.Now().UTC()
	}
	if err := u.db.WithContext(ctx).Create(up).Error; err != nil {
		return errors.Wrapf(err, "failed to record upload %q", up.Source)
	}
	return nil
}

// RecentUploads returns up to n uploads, newest first.
func (u *Uploads) RecentUploads(ctx context.Context, n int) ([]Upload, error) {
	if n <= 0 {
		n = 20
	}
	var out []Upload
	if err := u.db.WithContext(ctx).Order("id DESC").Limit(n).Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list uploads")
	}
	return out, nil
}

// SeenUpload reports whether source with this digest was already ingested
// without error.
func (u *Uploads) SeenUpload(ctx context.Context, source, sha256 string) (bool, error) {
	var up Upload
	err := u.db.WithContext(ctx).
		Where("source = ? AND sha256 = ? AND error = ?", source, sha256, "").
		First(&up).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, errors.Wrap(err, "failed to look up upload")
}
