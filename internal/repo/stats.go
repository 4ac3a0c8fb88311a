// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional HTTP responses (weak ETag generation), following the same
// pattern as the teacher's ChatsStats/MessagesStats.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sdforge/sdforge/internal/domain"
)

// ContextStats returns the message count and the most recent CreatedAt for a
// conversation context, used to build a weak ETag for history listings.
func ContextStats(ctx context.Context, db *gorm.DB, contextKey string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ConversationMessage{}).Where("context_key = ?", contextKey)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct{ CreatedAt time.Time }
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
