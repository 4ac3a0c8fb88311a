package domain

import "time"

// Personality is a named chat persona. The store ships with a fixed
// built-in set on first init (see internal/convstore).
type Personality struct {
	Name                 string `json:"name"                   gorm:"type:varchar(64);primaryKey"`
	DisplayName          string `json:"display_name"           gorm:"type:varchar(128);not null"`
	SystemPrompt         string `json:"system_prompt"           gorm:"type:text;not null"`
	ImageInjectionPrompt string `json:"image_injection_prompt"  gorm:"type:text"`
	Description          string `json:"description,omitempty"   gorm:"type:text"`
	Emoji                string `json:"emoji,omitempty"         gorm:"type:varchar(16)"`
	Category             string `json:"category,omitempty"      gorm:"type:varchar(64)"`
}

func (Personality) TableName() string { return "personalities" }

// UserSettings holds per-user chat preferences. A row is auto-created with
// defaults the first time a user is seen.
type UserSettings struct {
	UserID                string    `json:"user_id"                  gorm:"type:varchar(64);primaryKey"`
	PersonalityName       string    `json:"personality_name"         gorm:"type:varchar(64);not null;default:'default'"`
	LockedPersonalityName *string   `json:"locked_personality_name,omitempty" gorm:"type:varchar(64)"`
	MaxContextMessages    int       `json:"max_context_messages"     gorm:"not null;default:20"`
	Temperature           float64   `json:"temperature"              gorm:"not null;default:0.7"`
	SettingsBlob          string    `json:"settings_blob,omitempty"  gorm:"type:text"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (UserSettings) TableName() string { return "user_settings" }

// Moderation tracks a user's moderation status. When Status is "timeout" and
// TimeoutUntil has elapsed, the next read must lazily transition the row
// back to "active" (see internal/convstore).
type Moderation struct {
	UserID       string     `json:"user_id"       gorm:"type:varchar(64);primaryKey"`
	Status       string     `json:"status"        gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','timeout','suspended')"`
	TimeoutUntil *time.Time `json:"timeout_until,omitempty"`
	Reason       string     `json:"reason,omitempty" gorm:"type:text"`
	AdminUserID  string     `json:"admin_user_id,omitempty" gorm:"type:varchar(64)"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Moderation) TableName() string { return "moderation" }

// RateLimitEvent is a single recorded action, retained only for the rolling
// window plus cleanup slack (see internal/convstore's rolling 60s window
// algorithm).
type RateLimitEvent struct {
	ID         uint      `json:"id"          gorm:"primaryKey;autoIncrement"`
	UserID     string    `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_rate_events,priority:1"`
	ActionType string    `json:"action_type" gorm:"type:varchar(32);not null;index:idx_rate_events,priority:2"`
	Timestamp  time.Time `json:"timestamp"   gorm:"not null;index:idx_rate_events,priority:3"`
}

func (RateLimitEvent) TableName() string { return "rate_limit_events" }
