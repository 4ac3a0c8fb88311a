package contentclassifier

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/domain"
	"github.com/sdforge/sdforge/internal/repo"
)

const component = "contentclassifier"

// Classifier is the hierarchical-taxonomy and prompt-analysis component.
type Classifier struct {
	db *gorm.DB
}

// New builds a Classifier bound to a store. Callers should invoke
// SeedBuiltins once at startup.
func New(db *gorm.DB) *Classifier {
	return &Classifier{db: db}
}

// Analyze matches taxonomy words against a prompt/negative-prompt pair,
// case-insensitively and whole-word, with multi-word phrases matched
// greedily longest-first, and computes a safety assessment.
func (c *Classifier) Analyze(ctx context.Context, prompt, negativePrompt string) (AnalyzeResult, error) {
	words, err := repo.ListWords(ctx, c.db)
	if err != nil {
		return AnalyzeResult{}, apperr.Internal(component, "list content words", err)
	}

	combined := strings.ToLower(prompt + " " + negativePrompt)

	sort.Slice(words, func(i, j int) bool { return len(words[i].Word) > len(words[j].Word) })

	result := AnalyzeResult{CategoriesPresent: make(map[string]bool)}
	var safetyScore float64

	for _, w := range words {
		if matchesWholeWord(combined, strings.ToLower(w.Word)) {
			result.Matched = append(result.Matched, Match{Word: w.Word, CategoryPath: w.CategoryPath, Confidence: w.Confidence})
			result.CategoriesPresent[w.CategoryPath] = true
			if isDescendantOf(w.CategoryPath, nsfwCategoryRoot) {
				safetyScore += w.Confidence
			}
		}
	}
	if safetyScore > 1.0 {
		safetyScore = 1.0
	}

	result.Safety = Safety{Level: safetyLevelFor(safetyScore), Score: safetyScore}
	result.MissingAxes = c.missingAxes(result.CategoriesPresent)
	return result, nil
}

func safetyLevelFor(score float64) SafetyLevel {
	switch {
	case score >= explicitScoreBreak:
		return SafetyLevelExplicit
	case score > 0:
		return SafetyLevelModerate
	default:
		return SafetyLevelSafe
	}
}

func (c *Classifier) missingAxes(present map[string]bool) []Axis {
	axes := []Axis{AxisStyle, AxisQuality, AxisLighting}
	var missing []Axis
	for _, axis := range axes {
		prefix := axisCategoryPrefix[axis]
		found := false
		for cat := range present {
			if cat == prefix || strings.HasPrefix(cat, prefix+"/") {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, axis)
		}
	}
	return missing
}

func matchesWholeWord(haystack, needle string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], needle)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(needle)
		beforeOK := start == 0 || !isWordChar(haystack[start-1])
		afterOK := end == len(haystack) || !isWordChar(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
		if idx >= len(haystack) {
			return false
		}
	}
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isDescendantOf(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

// Enhance appends canonical fillers for missing axes when applySuggestions
// is set, and strips matched explicit tokens (annotating the result) when
// safetyFilter is set and the safety level is explicit.
func (c *Classifier) Enhance(ctx context.Context, prompt string, applySuggestions, safetyFilter bool) (string, error) {
	analysis, err := c.Analyze(ctx, prompt, "")
	if err != nil {
		return "", err
	}

	enhanced := prompt
	if applySuggestions {
		for _, axis := range analysis.MissingAxes {
			enhanced += ", " + axisFillers[axis]
		}
	}

	if safetyFilter && analysis.Safety.Level == SafetyLevelExplicit {
		for _, m := range analysis.Matched {
			if isDescendantOf(m.CategoryPath, nsfwCategoryRoot) {
				enhanced = stripWholeWord(enhanced, m.Word)
			}
		}
		enhanced = strings.TrimSpace(enhanced) + " [filtered for safety]"
	}
	return enhanced, nil
}

func stripWholeWord(s, word string) string {
	lower := strings.ToLower(s)
	target := strings.ToLower(word)
	if !matchesWholeWord(lower, target) {
		return s
	}
	pos := strings.Index(lower, target)
	return strings.TrimSpace(s[:pos] + s[pos+len(target):])
}

// AddCategory adds a taxonomy node. It refuses to create a path whose
// parent is absent, preserving the forest invariant.
func (c *Classifier) AddCategory(ctx context.Context, path, description string) error {
	parent := parentPath(path)
	if parent != "" {
		if _, err := repo.GetCategory(ctx, c.db, parent); err != nil {
			return apperr.Validation(component, "parent category "+parent+" does not exist")
		}
	}
	var parentPtr *string
	if parent != "" {
		parentPtr = &parent
	}
	if err := repo.UpsertCategory(ctx, c.db, &domain.ContentCategory{
		Path: path, ParentPath: parentPtr, Description: description,
	}); err != nil {
		return apperr.Internal(component, "add category", err)
	}
	return nil
}

// AddWords registers a batch of word-to-category mappings.
func (c *Classifier) AddWords(ctx context.Context, words []Match) error {
	for _, w := range words {
		if _, err := repo.GetCategory(ctx, c.db, w.CategoryPath); err != nil {
			return apperr.Validation(component, "category "+w.CategoryPath+" does not exist")
		}
		if err := repo.UpsertWord(ctx, c.db, &domain.ContentWord{
			Word: w.Word, CategoryPath: w.CategoryPath, Confidence: w.Confidence,
		}); err != nil {
			return apperr.Internal(component, "add word", err)
		}
	}
	return nil
}

// SearchWords returns word-category mappings whose word contains query.
func (c *Classifier) SearchWords(ctx context.Context, query string) ([]Match, error) {
	rows, err := repo.SearchWords(ctx, c.db, query)
	if err != nil {
		return nil, apperr.Internal(component, "search words", err)
	}
	out := make([]Match, len(rows))
	for i, r := range rows {
		out[i] = Match{Word: r.Word, CategoryPath: r.CategoryPath, Confidence: r.Confidence}
	}
	return out, nil
}

// Categories lists the installed taxonomy, optionally narrowed to paths
// rooted at typePrefix (e.g. "style" or "content_filter/nsfw").
func (c *Classifier) Categories(ctx context.Context, typePrefix string) ([]Category, error) {
	rows, err := repo.ListCategories(ctx, c.db)
	if err != nil {
		return nil, apperr.Internal(component, "list categories", err)
	}
	out := make([]Category, 0, len(rows))
	for _, r := range rows {
		if typePrefix != "" && !isDescendantOf(r.Path, typePrefix) {
			continue
		}
		out = append(out, Category{Path: r.Path, ParentPath: r.ParentPath, Description: r.Description})
	}
	return out, nil
}

// UsageStatistics reports word counts per top-level category and the
// categories carrying the most word mappings, the Go rendition of
// content_guide_tools.py's get_usage_statistics.
func (c *Classifier) UsageStatistics(ctx context.Context) (UsageStats, error) {
	words, err := repo.ListWords(ctx, c.db)
	if err != nil {
		return UsageStats{}, apperr.Internal(component, "list words", err)
	}
	categories, err := repo.ListCategories(ctx, c.db)
	if err != nil {
		return UsageStats{}, apperr.Internal(component, "list categories", err)
	}

	countByTopLevel := map[string]int{}
	countByCategory := map[string]int{}
	for _, w := range words {
		countByCategory[w.CategoryPath]++
		countByTopLevel[topLevelOf(w.CategoryPath)]++
	}

	top := make([]CategoryCount, 0, len(countByCategory))
	for path, n := range countByCategory {
		top = append(top, CategoryCount{Path: path, WordCount: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].WordCount != top[j].WordCount {
			return top[i].WordCount > top[j].WordCount
		}
		return top[i].Path < top[j].Path
	})

	return UsageStats{
		TotalWords:          len(words),
		TotalCategories:     len(categories),
		WordCountByTopLevel: countByTopLevel,
		TopCategories:       top,
	}, nil
}

// ExportConfig serializes the full taxonomy and its word mappings, the Go
// rendition of content_guide_tools.py's export_config.
func (c *Classifier) ExportConfig(ctx context.Context) (ExportedConfig, error) {
	categories, err := c.Categories(ctx, "")
	if err != nil {
		return ExportedConfig{}, err
	}
	words, err := repo.ListWords(ctx, c.db)
	if err != nil {
		return ExportedConfig{}, apperr.Internal(component, "list words", err)
	}
	mappings := make([]Match, len(words))
	for i, w := range words {
		mappings[i] = Match{Word: w.Word, CategoryPath: w.CategoryPath, Confidence: w.Confidence}
	}
	return ExportedConfig{Categories: categories, WordMappings: mappings}, nil
}

func topLevelOf(path string) string {
	if i := strings.Index(path, "/"); i >= 0 {
		return path[:i]
	}
	return path
}
