package loracatalog

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	"gorm.io/gorm"

	"github.com/sdforge/sdforge/internal/config"
	"github.com/sdforge/sdforge/internal/domain"
	"github.com/sdforge/sdforge/internal/repo"
	"github.com/sdforge/sdforge/internal/sdgateway"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fakeGateway struct {
	listings []sdgateway.LoRAListing
}

func (f fakeGateway) ListLoRAs(ctx context.Context) ([]sdgateway.LoRAListing, error) {
	return f.listings, nil
}

func defaultCatalogConfig() config.CatalogConfig {
	return config.CatalogConfig{NSFWShareThreshold: 0.10, SuggestiveShareThreshold: 0.05}
}

func insertLoRA(t *testing.T, db *gorm.DB, name string, category Category, tagFreq map[string]int, minW, maxW, recW float64) {
	t.Helper()
	tf, _ := json.Marshal(tagFreq)
	tw, _ := json.Marshal(ExtractTriggerWords(tagFreq, 10))
	err := repo.UpsertLoRA(context.Background(), db, &domain.LoRA{
		Name: name, Filename: name, Path: name,
		Category: string(category), ContentType: string(ContentSafe),
		TriggerWords: string(tw), TrainingTagFrequency: string(tf),
		RecommendedWeight: recW, MinWeight: minW, MaxWeight: maxW,
	})
	if err != nil {
		t.Fatalf("insert lora %s: %v", name, err)
	}
}

func TestSuggestForPrompt_WorkedExample(t *testing.T) {
	db := newTestDB(t)
	insertLoRA(t, db, "animeStyleV4", CategoryAnime, map[string]int{
		"anime": 500, "1girl": 450, "cat ears": 80, "solo": 400,
	}, 0, 1.5, 1.0)

	cat := New(db, fakeGateway{}, defaultCatalogConfig())
	results, err := cat.SuggestForPrompt(context.Background(), "anime girl with cat ears", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	// "1girl" and "solo" tokenize to single words that never appear in the
	// prompt, so only "anime" (500) and "cat ears" (80) overlap: (500+80)/1430.
	got := results[0]
	if got.Score < 0.40 || got.Score > 0.41 {
		t.Errorf("expected score ~0.405, got %v", got.Score)
	}
	if got.Confidence != ConfidenceMedium {
		t.Errorf("expected medium confidence, got %v", got.Confidence)
	}
}

func TestSuggestForPrompt_Determinism(t *testing.T) {
	db := newTestDB(t)
	insertLoRA(t, db, "a", CategoryAnime, map[string]int{"anime": 10, "cat": 5}, 0, 1.5, 1.0)
	insertLoRA(t, db, "b", CategoryAnime, map[string]int{"anime": 20, "dog": 5}, 0, 1.5, 1.0)

	cat := New(db, fakeGateway{}, defaultCatalogConfig())
	first, err := cat.SuggestForPrompt(context.Background(), "anime cat dog", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := cat.SuggestForPrompt(context.Background(), "anime cat dog", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("non-deterministic result count")
	}
	for i := range first {
		if !reflect.DeepEqual(first[i], second[i]) {
			t.Fatalf("non-deterministic ordering at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestValidateCombination_TwoCharactersConflict(t *testing.T) {
	db := newTestDB(t)
	insertLoRA(t, db, "miku", CategoryCharacter, nil, 0, 1.5, 1.0)
	insertLoRA(t, db, "zelda", CategoryCharacter, nil, 0, 1.5, 1.0)

	cat := New(db, fakeGateway{}, defaultCatalogConfig())
	conflicts, err := cat.ValidateCombination(context.Background(), []Selection{
		{Name: "miku", Weight: 0.9}, {Name: "zelda", Weight: 0.9},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].Rule != "at-most-one-character" {
		t.Fatalf("expected at-most-one-character conflict, got %+v", conflicts)
	}
}

func TestValidateCombination_RemovingOneClearsConflict(t *testing.T) {
	db := newTestDB(t)
	insertLoRA(t, db, "miku", CategoryCharacter, nil, 0, 1.5, 1.0)
	insertLoRA(t, db, "zelda", CategoryCharacter, nil, 0, 1.5, 1.0)

	cat := New(db, fakeGateway{}, defaultCatalogConfig())
	conflicts, err := cat.ValidateCombination(context.Background(), []Selection{{Name: "miku", Weight: 0.9}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", conflicts)
	}
}

func TestValidateCombination_CombinedWeightCeiling(t *testing.T) {
	db := newTestDB(t)
	insertLoRA(t, db, "a", CategoryGeneral, nil, 0, 3.0, 1.0)
	insertLoRA(t, db, "b", CategoryGeneral, nil, 0, 3.0, 1.0)

	cat := New(db, fakeGateway{}, defaultCatalogConfig())
	conflicts, err := cat.ValidateCombination(context.Background(), []Selection{
		{Name: "a", Weight: 1.5}, {Name: "b", Weight: 1.5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].Rule != "combined-weight-ceiling" {
		t.Fatalf("expected combined-weight-ceiling conflict, got %+v", conflicts)
	}
}

func TestOptimizeWeights_FactorsAndClamping(t *testing.T) {
	db := newTestDB(t)
	insertLoRA(t, db, "a", CategoryGeneral, nil, 0, 1.0, 1.0)

	cat := New(db, fakeGateway{}, defaultCatalogConfig())
	out, err := cat.OptimizeWeights(context.Background(), []Selection{{Name: "a", Weight: 0.9}}, StyleStrong)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Weight != 1.0 {
		t.Errorf("expected clamp to max 1.0, got %v", out[0].Weight)
	}
}

func TestCategorizeFromTags_TieBreakOrder(t *testing.T) {
	cat := CategorizeFromTags(map[string]int{"anime": 100, "realistic": 100})
	if cat != CategoryAnime {
		t.Errorf("expected anime to win tie-break over realistic, got %v", cat)
	}
}

func TestSyncFromGateway_IdempotentOnRepeatedRun(t *testing.T) {
	db := newTestDB(t)
	gw := fakeGateway{listings: []sdgateway.LoRAListing{
		{Name: "a", Path: "a.safetensors"},
	}}
	cat := New(db, gw, defaultCatalogConfig())

	n1, err := cat.SyncFromGateway(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n1 != 1 {
		t.Fatalf("expected 1 record written, got %d", n1)
	}

	n2, err := cat.SyncFromGateway(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n2 != 0 {
		t.Fatalf("expected second sync to skip (unchanged list), got %d writes", n2)
	}
}
