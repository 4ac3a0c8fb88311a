// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for
// ConversationMessage, the append-only per-context message log owned by
// ConversationStore.
//
// Functions follow the teacher's "thin repository" approach: no business
// logic, only CRUD persistence and query composition. Context isolation
// (messages under different context keys never mix) is enforced purely by
// the WHERE clause on context_key; no cross-key query exists in this file.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sdforge/sdforge/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// AppendMessage inserts a new message into a context's history.
func AppendMessage(ctx context.Context, db *gorm.DB, contextKey, userID, role, content, metadata string) (*domain.ConversationMessage, error) {
	m := &domain.ConversationMessage{
		ID:         uuid.NewString(),
		ContextKey: contextKey,
		UserID:     userID,
		Role:       role,
		Content:    content,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// History returns messages for a context key in chronological ascending
// order, bounded by limit (the caller's max_context_messages setting). A
// limit <= 0 means unbounded.
func History(ctx context.Context, db *gorm.DB, contextKey string, limit int) ([]domain.ConversationMessage, error) {
	var out []domain.ConversationMessage
	q := db.WithContext(ctx).
		Where("context_key = ?", contextKey).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		// Take the most recent `limit` messages, but still return them in
		// ascending order: select the tail via a subquery-free two-step.
		var total int64
		if err := db.WithContext(ctx).Model(&domain.ConversationMessage{}).
			Where("context_key = ?", contextKey).Count(&total).Error; err != nil {
			return nil, err
		}
		offset := 0
		if int64(limit) < total {
			offset = int(total) - limit
		}
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ClearContext deletes every message under a context key and returns the
// number of rows deleted.
func ClearContext(ctx context.Context, db *gorm.DB, contextKey string) (int64, error) {
	res := db.WithContext(ctx).Unscoped().
		Where("context_key = ?", contextKey).
		Delete(&domain.ConversationMessage{})
	return res.RowsAffected, res.Error
}

// DeleteMessagesOlderThan deletes conversation messages created before cutoff,
// used by the auto-clean sweep.
func DeleteMessagesOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&domain.ConversationMessage{})
	return res.RowsAffected, res.Error
}

// GetMessage fetches a single message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.ConversationMessage, error) {
	var m domain.ConversationMessage
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
