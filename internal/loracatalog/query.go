package loracatalog

import (
	"context"
	"sort"
	"strings"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/repo"
)

// Summarize returns totals, counts by category, and the catalog-wide top
// trigger words.
func (c *Catalog) Summarize(ctx context.Context) (Summary, error) {
	rows, err := repo.ListLoRAs(ctx, c.db)
	if err != nil {
		return Summary{}, apperr.Internal(component, "list loras", err)
	}

	sum := Summary{CountByCategory: make(map[Category]int)}
	combined := make(map[string]int)
	for _, row := range rows {
		entry := toEntry(row)
		sum.Total++
		sum.CountByCategory[entry.Category]++
		for _, t := range entry.TriggerWords {
			combined[t]++
		}
	}
	sum.TopTriggerWords = topTagsByFrequency(combined, 20)
	return sum, nil
}

// Browse lists catalog entries in a category, up to limit, ordered by name.
func (c *Catalog) Browse(ctx context.Context, category Category, limit int) ([]Entry, error) {
	rows, err := repo.ListLoRAsByCategory(ctx, c.db, string(category))
	if err != nil {
		return nil, apperr.Internal(component, "list loras by category", err)
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	out := make([]Entry, len(rows))
	for i, row := range rows {
		out[i] = toEntry(row)
	}
	return out, nil
}

// Search returns relevance-ranked entries. Score combines substring match
// on name/description (weight 0.4), tag membership match (0.4), and
// category tie-break (0.2, awarded when the query itself names a category).
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	rows, err := repo.ListLoRAs(ctx, c.db)
	if err != nil {
		return nil, apperr.Internal(component, "list loras", err)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, apperr.Validation(component, "search query must not be empty")
	}

	var results []SearchResult
	for _, row := range rows {
		entry := toEntry(row)
		score := 0.0

		if strings.Contains(strings.ToLower(entry.Name), q) || strings.Contains(strings.ToLower(entry.Description), q) {
			score += searchWeightNameMatch
		}
		for _, t := range entry.TriggerWords {
			if strings.Contains(strings.ToLower(t), q) {
				score += searchWeightTagMatch
				break
			}
		}
		if string(entry.Category) == q {
			score += searchWeightCategoryMatch
		}

		if score > 0 {
			results = append(results, SearchResult{Name: entry.Name, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Name < results[j].Name
	})
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// SuggestForPrompt scores every catalog entry against a prompt by summing
// the frequency share of training tags whose token set overlaps the
// prompt's lowercase word multiset, clamped to 1.0, and returns the top-N
// ranked results with confidence bucketing and matching tags.
func (c *Catalog) SuggestForPrompt(ctx context.Context, prompt string, limit int) ([]SuggestResult, error) {
	rows, err := repo.ListLoRAs(ctx, c.db)
	if err != nil {
		return nil, apperr.Internal(component, "list loras", err)
	}

	promptWords := tokenize(prompt)

	var results []SuggestResult
	for _, row := range rows {
		entry := toEntry(row)
		if len(entry.TrainingTagFrequency) == 0 {
			continue
		}

		score, matching := scorePromptAgainstTags(promptWords, entry.TrainingTagFrequency)
		if score <= 0 {
			continue
		}

		results = append(results, SuggestResult{
			Name:              entry.Name,
			Score:             score,
			Confidence:        confidenceFor(score),
			MatchingTags:      matching,
			RecommendedWeight: entry.RecommendedWeight,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Name < results[j].Name
	})
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

func tokenize(s string) map[string]bool {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ",", " ")
	words := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		words[w] = true
	}
	return words
}

// scorePromptAgainstTags implements the spec's exact prompt-tag score:
// tokenize both sides, and for each (tag, freq) whose token set overlaps
// the prompt word set, add freq/total. Clamp to 1.0.
func scorePromptAgainstTags(promptWords map[string]bool, tagFreq map[string]int) (float64, []string) {
	total := 0
	for _, freq := range tagFreq {
		total += freq
	}
	if total == 0 {
		return 0, nil
	}

	type match struct {
		tag  string
		freq int
	}
	var matches []match
	score := 0.0
	for tag, freq := range tagFreq {
		tagWords := tokenize(strings.ReplaceAll(tag, "_", " "))
		if overlaps(tagWords, promptWords) {
			score += float64(freq) / float64(total)
			matches = append(matches, match{tag, freq})
		}
	}
	if score > 1.0 {
		score = 1.0
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].freq != matches[j].freq {
			return matches[i].freq > matches[j].freq
		}
		return matches[i].tag < matches[j].tag
	})
	tags := make([]string, len(matches))
	for i, m := range matches {
		tags[i] = m.tag
	}
	return score, tags
}

func overlaps(a, b map[string]bool) bool {
	for w := range a {
		if b[w] {
			return true
		}
	}
	return false
}

func confidenceFor(score float64) Confidence {
	switch {
	case score >= confidenceHighBreak:
		return ConfidenceHigh
	case score >= confidenceMediumBreak:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
