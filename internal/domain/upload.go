package domain

import "time"

// HostedUser stores a per-user credential for the external image-hosting
// service. Credentials are stored in plaintext by design; this is a
// documented operator-facing limitation (see DESIGN.md).
type HostedUser struct {
	UserID         string    `json:"user_id"          gorm:"type:varchar(64);primaryKey"`
	PersonalAPIKey string    `json:"personal_api_key" gorm:"type:text;not null"`
	DefaultAlbumID string    `json:"default_album_id,omitempty" gorm:"type:varchar(128)"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (HostedUser) TableName() string { return "hosted_users" }

// LaunchRecord tracks process launches for the auto-clean policy: on startup
// a new launch row is written, and cleanup passes mark the most recent
// qualifying launch as CleanupPerformed.
type LaunchRecord struct {
	ID               string    `json:"id"                gorm:"type:char(36);primaryKey"`
	LaunchTime       time.Time `json:"launch_time"       gorm:"not null;index"`
	CleanupPerformed bool      `json:"cleanup_performed" gorm:"not null;default:false"`
}

func (LaunchRecord) TableName() string { return "launch_records" }

// UploadRecord is a log entry for a completed (or failed) upload attempt,
// used by UploadRouter's fallback reporting and the hosting-availability
// probe.
type UploadRecord struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string    `json:"user_id,omitempty" gorm:"type:varchar(64);index"`
	Sink       string    `json:"sink"        gorm:"type:varchar(32);not null"` // per_user|guest|local
	URL        string    `json:"url"         gorm:"type:text;not null"`
	DeleteHash string    `json:"delete_hash,omitempty" gorm:"type:varchar(128)"`
	NSFW       bool      `json:"nsfw"        gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"`
}

func (UploadRecord) TableName() string { return "upload_records" }
