// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for HostedUser
// credentials and the UploadRecord log owned by UploadRouter.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sdforge/sdforge/internal/domain"
)

// GetHostedUser fetches a user's external-hosting credential, if any.
func GetHostedUser(ctx context.Context, db *gorm.DB, userID string) (*domain.HostedUser, error) {
	var u domain.HostedUser
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertHostedUser stores or replaces a user's external-hosting credential.
func UpsertHostedUser(ctx context.Context, db *gorm.DB, u *domain.HostedUser) error {
	u.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(u).Error
}

// RecordUpload appends one upload log entry.
func RecordUpload(ctx context.Context, db *gorm.DB, rec *domain.UploadRecord) error {
	return db.WithContext(ctx).Create(rec).Error
}

// ListUploadsByUser returns a user's upload history, most recent first.
func ListUploadsByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.UploadRecord, error) {
	var out []domain.UploadRecord
	q := db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
