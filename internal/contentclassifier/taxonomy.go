package contentclassifier

import (
	"context"

	"gorm.io/gorm"

	"github.com/sdforge/sdforge/internal/domain"
	"github.com/sdforge/sdforge/internal/repo"
)

type seedCategory struct {
	path        string
	description string
}

// builtinCategories is the fixed taxonomy the store ships with on first
// init, a forest rooted at subject/style/environment/motif/content_filter.
var builtinCategories = []seedCategory{
	{"subject", "Subjects depicted"},
	{"subject/person", "People"},
	{"subject/person/hair", "Hair"},
	{"subject/person/hair/color", "Hair color"},
	{"subject/person/expression", "Facial expression"},
	{"subject/animal", "Animals"},

	{"style", "Artistic style"},
	{"style/quality", "Quality descriptors"},

	{"environment", "Setting and atmosphere"},
	{"environment/lighting", "Lighting"},

	{"motif", "Themes and symbolic elements"},
	{"motif/mood", "Emotional mood"},
	{"motif/theme", "Thematic elements"},

	{"content_filter", "Content filtering"},
	{"content_filter/nsfw", "NSFW content"},
	{"content_filter/nsfw/nudity", "Nudity"},
	{"content_filter/nsfw/sexual", "Sexual content"},
	{"content_filter/nsfw/suggestive", "Suggestive content"},
	{"content_filter/violence", "Violent content"},
	{"content_filter/violence/weapons", "Weapons"},
	{"content_filter/violence/gore", "Gore"},
}

type seedWord struct {
	word         string
	categoryPath string
	confidence   float64
}

var builtinWords = []seedWord{
	{"smiling", "subject/person/expression", 1.0},
	{"serious", "subject/person/expression", 1.0},
	{"surprised", "subject/person/expression", 1.0},
	{"mysterious", "motif/mood", 1.0},

	{"blonde", "subject/person/hair/color", 1.0},
	{"brunette", "subject/person/hair/color", 1.0},
	{"redhead", "subject/person/hair/color", 1.0},

	{"photorealistic", "style", 1.0},
	{"anime style", "style", 1.0},
	{"oil painting", "style", 1.0},
	{"digital art", "style", 1.0},

	{"high quality", "style/quality", 1.0},
	{"detailed", "style/quality", 1.0},
	{"masterpiece", "style/quality", 1.0},
	{"professional", "style/quality", 1.0},

	{"dramatic lighting", "environment/lighting", 1.0},
	{"soft lighting", "environment/lighting", 1.0},
	{"natural light", "environment/lighting", 1.0},
	{"neon lighting", "environment/lighting", 1.0},

	{"nude", "content_filter/nsfw/nudity", 1.0},
	{"naked", "content_filter/nsfw/nudity", 1.0},
	{"topless", "content_filter/nsfw/nudity", 1.0},
	{"explicit", "content_filter/nsfw/sexual", 1.0},
	{"nsfw", "content_filter/nsfw", 1.0},
	{"suggestive", "content_filter/nsfw/suggestive", 0.6},
	{"lingerie", "content_filter/nsfw/suggestive", 0.5},

	{"weapon", "content_filter/violence/weapons", 0.7},
	{"gun", "content_filter/violence/weapons", 0.7},
	{"blood", "content_filter/violence/gore", 0.8},
	{"gore", "content_filter/violence/gore", 1.0},
}

// SeedBuiltins populates the taxonomy and word mappings if the store is
// empty, matching the built-in-set-on-first-init invariant for Personality
// and mirroring it here for the content taxonomy.
func SeedBuiltins(ctx context.Context, db *gorm.DB) error {
	existing, err := repo.ListCategories(ctx, db)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, c := range builtinCategories {
		parent := parentPath(c.path)
		var parentPtr *string
		if parent != "" {
			parentPtr = &parent
		}
		if err := repo.UpsertCategory(ctx, db, &domain.ContentCategory{
			Path: c.path, ParentPath: parentPtr, Description: c.description,
		}); err != nil {
			return err
		}
	}
	for _, w := range builtinWords {
		if err := repo.UpsertWord(ctx, db, &domain.ContentWord{
			Word: w.word, CategoryPath: w.categoryPath, Confidence: w.confidence,
		}); err != nil {
			return err
		}
	}
	return nil
}

func parentPath(path string) string {
	idx := lastSlash(path)
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
