// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for personas,
// per-user settings, moderation status, rate-limit events, and launch
// bookkeeping.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sdforge/sdforge/internal/domain"
)

// UpsertPersonality inserts a personality record; a record that already
// exists under the same name is left unchanged.
func UpsertPersonality(ctx context.Context, db *gorm.DB, p *domain.Personality) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(p).Error
}

// GetPersonality fetches a personality by name.
func GetPersonality(ctx context.Context, db *gorm.DB, name string) (*domain.Personality, error) {
	var p domain.Personality
	err := db.WithContext(ctx).Where("name = ?", name).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPersonalities returns every installed personality, ordered by name.
func ListPersonalities(ctx context.Context, db *gorm.DB) ([]domain.Personality, error) {
	var out []domain.Personality
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// GetOrCreateUserSettings fetches a user's settings row, auto-creating one
// with defaults if absent.
func GetOrCreateUserSettings(ctx context.Context, db *gorm.DB, userID string) (*domain.UserSettings, error) {
	var s domain.UserSettings
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if err == nil {
		return &s, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	s = domain.UserSettings{
		UserID: userID, PersonalityName: "default", MaxContextMessages: 20, Temperature: 0.7,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateUserPersonality sets a user's active personality.
func UpdateUserPersonality(ctx context.Context, db *gorm.DB, userID, personality string) error {
	return db.WithContext(ctx).Model(&domain.UserSettings{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"personality_name": personality, "updated_at": time.Now().UTC()}).Error
}

// LockUserPersonality sets a user's locked personality.
func LockUserPersonality(ctx context.Context, db *gorm.DB, userID, personality string) error {
	return db.WithContext(ctx).Model(&domain.UserSettings{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"locked_personality_name": personality, "personality_name": personality, "updated_at": time.Now().UTC()}).Error
}

// GetOrCreateModeration fetches a user's moderation row, auto-creating an
// active one if absent.
func GetOrCreateModeration(ctx context.Context, db *gorm.DB, userID string) (*domain.Moderation, error) {
	var m domain.Moderation
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if err == nil {
		return &m, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	m = domain.Moderation{UserID: userID, Status: "active", UpdatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertModeration writes a moderation status row.
func UpsertModeration(ctx context.Context, db *gorm.DB, m *domain.Moderation) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(m).Error
}

// RecordRateLimitEvent appends one rate-limit event.
func RecordRateLimitEvent(ctx context.Context, db *gorm.DB, userID, actionType string, at time.Time) error {
	return db.WithContext(ctx).Create(&domain.RateLimitEvent{UserID: userID, ActionType: actionType, Timestamp: at}).Error
}

// CountRateLimitEventsSince returns the number of events for a user/action
// strictly after since.
func CountRateLimitEventsSince(ctx context.Context, db *gorm.DB, userID, actionType string, since time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.RateLimitEvent{}).
		Where("user_id = ? AND action_type = ? AND timestamp > ?", userID, actionType, since).
		Count(&count).Error
	return count, err
}

// OldestRateLimitEventSince returns the oldest event timestamp for a
// user/action strictly after since, or nil if none exists.
func OldestRateLimitEventSince(ctx context.Context, db *gorm.DB, userID, actionType string, since time.Time) (*time.Time, error) {
	var row domain.RateLimitEvent
	err := db.WithContext(ctx).
		Where("user_id = ? AND action_type = ? AND timestamp > ?", userID, actionType, since).
		Order("timestamp ASC").Limit(1).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row.Timestamp, nil
}

// DeleteRateLimitEventsOlderThan removes rate-limit events beyond the
// cleanup slack window and returns the count deleted.
func DeleteRateLimitEventsOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&domain.RateLimitEvent{})
	return res.RowsAffected, res.Error
}

// RecordLaunch writes a new launch record and returns it.
func RecordLaunch(ctx context.Context, db *gorm.DB, id string) (*domain.LaunchRecord, error) {
	rec := &domain.LaunchRecord{ID: id, LaunchTime: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// LastCleanupLaunch returns the most recent launch with CleanupPerformed
// set, or nil if none.
func LastCleanupLaunch(ctx context.Context, db *gorm.DB) (*domain.LaunchRecord, error) {
	var rec domain.LaunchRecord
	err := db.WithContext(ctx).Where("cleanup_performed = ?", true).Order("launch_time DESC").Limit(1).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountLaunchesSince returns the number of launches at or after since.
func CountLaunchesSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.LaunchRecord{}).Where("launch_time >= ?", since).Count(&count).Error
	return count, err
}

// MarkLaunchCleaned marks a launch record as having performed cleanup.
func MarkLaunchCleaned(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Model(&domain.LaunchRecord{}).Where("id = ?", id).Update("cleanup_performed", true).Error
}
