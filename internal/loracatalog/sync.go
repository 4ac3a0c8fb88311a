package loracatalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/config"
	"github.com/sdforge/sdforge/internal/domain"
	"github.com/sdforge/sdforge/internal/repo"
	"github.com/sdforge/sdforge/internal/sdgateway"
)

var tagTitleCaser = cases.Title(language.English)

const component = "loracatalog"

// Gateway is the subset of sdgateway.Client the catalog needs, narrowed to
// ease testing with a fake.
type Gateway interface {
	ListLoRAs(ctx context.Context) ([]sdgateway.LoRAListing, error)
}

// Catalog is a persistent, queryable index of LoRAs with derived
// intelligence, backed by the relational store.
type Catalog struct {
	db      *gorm.DB
	gateway Gateway
	cfg     config.CatalogConfig
}

// New builds a Catalog bound to a store and SD engine gateway.
func New(db *gorm.DB, gateway Gateway, cfg config.CatalogConfig) *Catalog {
	return &Catalog{db: db, gateway: gateway, cfg: cfg}
}

func hashListing(listings []sdgateway.LoRAListing) string {
	names := make([]string, len(listings))
	for i, l := range listings {
		names[i] = l.Name + ":" + l.Path
	}
	sort.Strings(names)
	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte("|"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SyncFromGateway pulls the engine's LoRA list and derives category,
// trigger words, and content type for each entry. It is idempotent: if the
// listing hash matches the last recorded sync, no rows are touched. Returns
// the number of records written.
func (c *Catalog) SyncFromGateway(ctx context.Context) (int, error) {
	listings, err := c.gateway.ListLoRAs(ctx)
	if err != nil {
		return 0, err
	}

	hash := hashListing(listings)
	last, err := repo.LastSyncMetadata(ctx, c.db)
	if err != nil {
		return 0, apperr.Internal(component, "read sync metadata", err)
	}
	if last != nil && last.ListHash == hash {
		return 0, nil
	}

	written := 0
	for _, l := range listings {
		record := deriveRecord(l, c.cfg)
		if err := repo.UpsertLoRA(ctx, c.db, record); err != nil {
			return written, apperr.Internal(component, "upsert lora record", err)
		}
		written++
	}

	if err := repo.RecordSync(ctx, c.db, hash); err != nil {
		return written, apperr.Internal(component, "record sync metadata", err)
	}
	return written, nil
}

func deriveRecord(l sdgateway.LoRAListing, cfg config.CatalogConfig) *domain.LoRA {
	tagFreq := l.Metadata.TagFrequency

	var category Category
	var triggers []string
	var contentType ContentType
	var description string

	if len(tagFreq) > 0 {
		category = CategorizeFromTags(tagFreq)
		triggers = ExtractTriggerWords(tagFreq, 10)
		contentType = DetectContentType(tagFreq, cfg)
		description = describeFromTopTags(tagFreq)
	} else {
		category = CategorizeFromName(l.Name, l.Path)
		triggers = ExtractTriggerWordsFromName(l.Name)
		contentType = DetectContentTypeFromName(l.Name)
		description = "LoRA: " + l.Name + " (inferred from filename)"
	}

	triggerJSON, _ := json.Marshal(triggers)
	tagFreqJSON, _ := json.Marshal(tagFreq)

	now := time.Now().UTC()
	return &domain.LoRA{
		Name:                 l.Name,
		Filename:             l.Path,
		Path:                 l.Path,
		Alias:                l.Alias,
		Category:             string(category),
		ContentType:          string(contentType),
		Description:          description,
		TriggerWords:         string(triggerJSON),
		TrainingTagFrequency: string(tagFreqJSON),
		RecommendedWeight:    1.0,
		MinWeight:            0.0,
		MaxWeight:            1.5,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func describeFromTopTags(tagFreq map[string]int) string {
	top := topTagsByFrequency(tagFreq, 5)
	if len(top) == 0 {
		return ""
	}
	desc := "Trained on: "
	for i, t := range top {
		if i > 0 {
			desc += ", "
		}
		desc += tagTitleCaser.String(strings.ReplaceAll(t, "_", " "))
	}
	return desc
}

// toEntry decodes a persisted domain.LoRA into the in-memory Entry shape
// query operations work with.
func toEntry(l domain.LoRA) Entry {
	var triggers []string
	_ = json.Unmarshal([]byte(l.TriggerWords), &triggers)
	var tagFreq map[string]int
	_ = json.Unmarshal([]byte(l.TrainingTagFrequency), &tagFreq)

	return Entry{
		Name:                 l.Name,
		Filename:             l.Filename,
		Path:                 l.Path,
		Alias:                l.Alias,
		Category:             Category(l.Category),
		ContentType:          ContentType(l.ContentType),
		Description:          l.Description,
		TriggerWords:         triggers,
		TrainingTagFrequency: tagFreq,
		RecommendedWeight:    l.RecommendedWeight,
		MinWeight:            l.MinWeight,
		MaxWeight:            l.MaxWeight,
	}
}
