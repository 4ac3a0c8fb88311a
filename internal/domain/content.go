package domain

// ContentCategory is a node in the hierarchical taxonomy used by
// ContentClassifier. Paths are slash-delimited (e.g. "subject/person/hair/color").
// The store is a forest: ParentPath must reference an existing category or be
// null, and no cycles are permitted (enforced on insert, not by the schema).
type ContentCategory struct {
	Path        string  `json:"path"        gorm:"type:varchar(255);primaryKey"`
	ParentPath  *string `json:"parent_path,omitempty" gorm:"type:varchar(255);index"`
	Description string  `json:"description,omitempty" gorm:"type:text"`
}

func (ContentCategory) TableName() string { return "content_categories" }

// ContentWord maps a word to a category with a match confidence. A word may
// appear under multiple categories; the pair (word, category_path) is unique.
type ContentWord struct {
	ID           uint    `json:"id"            gorm:"primaryKey;autoIncrement"`
	Word         string  `json:"word"          gorm:"type:varchar(255);not null;uniqueIndex:ux_word_category,priority:1;index"`
	CategoryPath string  `json:"category_path" gorm:"type:varchar(255);not null;uniqueIndex:ux_word_category,priority:2;index"`
	Confidence   float64 `json:"confidence"    gorm:"not null;check:confidence >= 0 AND confidence <= 1"`
}

func (ContentWord) TableName() string { return "content_words" }
