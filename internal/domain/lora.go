package domain

import "time"

// LoRA is a persisted record of a known low-rank adaptation module,
// enriched with intelligence derived from its training tag frequency:
// category, trigger words, and content-type classification.
//
// Category is recomputed deterministically from TrainingTagFrequency when
// present (falling back to name/path heuristics otherwise); recomputation
// must be idempotent — see internal/loracatalog.
type LoRA struct {
	Name                 string    `json:"name"                   gorm:"type:varchar(255);primaryKey"`
	Filename             string    `json:"filename"                gorm:"type:varchar(255);not null"`
	Path                 string    `json:"path"                    gorm:"type:text;not null"`
	Alias                string    `json:"alias,omitempty"         gorm:"type:varchar(255)"`
	Category             string    `json:"category"                gorm:"type:varchar(32);not null;check:category IN ('anime','realistic','character','style','concept','general')"`
	ContentType          string    `json:"content_type"            gorm:"type:varchar(16);not null;check:content_type IN ('safe','suggestive','nsfw')"`
	Description          string    `json:"description,omitempty"   gorm:"type:text"`
	TriggerWords         string    `json:"trigger_words"           gorm:"type:text"` // JSON array of strings, ordered
	TrainingTagFrequency string    `json:"training_tag_frequency"  gorm:"type:text"` // JSON object: tag -> count
	RecommendedWeight    float64   `json:"recommended_weight"      gorm:"not null;default:1.0"`
	MinWeight            float64   `json:"min_weight"              gorm:"not null;default:0.0"`
	MaxWeight            float64   `json:"max_weight"              gorm:"not null;default:1.5"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (LoRA) TableName() string { return "loras" }

// PairwiseDeny records an explicit conflict rule between two LoRAs by name.
// The pair is unordered; LoRACatalog normalizes lookups by sorting names.
type PairwiseDeny struct {
	ID      uint   `json:"id"      gorm:"primaryKey;autoIncrement"`
	NameA   string `json:"name_a"  gorm:"type:varchar(255);not null;uniqueIndex:ux_deny_pair,priority:1"`
	NameB   string `json:"name_b"  gorm:"type:varchar(255);not null;uniqueIndex:ux_deny_pair,priority:2"`
	Reason  string `json:"reason,omitempty" gorm:"type:text"`
}

func (PairwiseDeny) TableName() string { return "lora_pairwise_deny" }

// SyncMetadata records catalog-sync bookkeeping: the hash of the last
// ingested LoRA list, used to make sync_from_gateway idempotent and cheap
// to skip when nothing has changed upstream.
type SyncMetadata struct {
	ID         uint      `json:"id"          gorm:"primaryKey;autoIncrement"`
	ListHash   string    `json:"list_hash"   gorm:"type:varchar(64);not null"`
	SyncedAt   time.Time `json:"synced_at"`
}

func (SyncMetadata) TableName() string { return "lora_sync_metadata" }
