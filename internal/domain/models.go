// Package domain defines the persistence models for conversation state and
// idempotency records. These types are mapped with GORM, following the
// same field-tag conventions as the teacher's original Chat/Message models
// (UUID primary keys, explicit check constraints, composite indexes, soft
// deletes).
package domain

import (
	"time"

	"gorm.io/gorm"
)

// ConversationMessage is a single turn within an isolated conversation
// context. Context isolation is enforced entirely by ContextKey: two
// different context keys never share history.
type ConversationMessage struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	ContextKey string         `json:"context_key" gorm:"type:varchar(128);not null;index:idx_ctx_msgs,priority:1"`
	UserID     string         `json:"user_id"     gorm:"type:varchar(64);not null;index"`
	Role       string         `json:"role"        gorm:"type:varchar(16);not null;check:role IN ('user','assistant','system')"`
	Content    string         `json:"content"     gorm:"type:text;not null"`
	Metadata   string         `json:"metadata,omitempty" gorm:"type:text"` // opaque JSON
	CreatedAt  time.Time      `json:"created_at"  gorm:"index:idx_ctx_msgs,priority:2"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

func (ConversationMessage) TableName() string { return "conversation_messages" }

// Idempotency represents a recorded result of a previously processed request,
// keyed by (user_id, chat_id, key). It enables safe retries for POST/PUT
// operations by returning the originally produced response without
// re-executing side effects.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_chat_key,priority:1"`
	ChatID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_chat_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_chat_key,priority:3"`
	MessageID string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

func (Idempotency) TableName() string { return "idempotency" }
