package loracatalog

import "strings"

// categoryIndicators lists the tag/name substrings associated with each
// category, following the same indicator-set shape as the original
// tag-pattern heuristics this was ported from.
var categoryIndicators = map[Category][]string{
	CategoryAnime:     {"anime", "manga", "2d", "chibi", "kawaii", "cel shading", "cartoon"},
	CategoryRealistic: {"photorealistic", "realistic", "photo", "photography", "real", "portrait"},
	CategoryCharacter: {"1girl", "1boy", "character", "person", "face", "girl", "boy", "woman", "man"},
	CategoryStyle:     {"art style", "painting", "drawing", "sketch", "watercolor", "oil painting", "style", "art"},
	CategoryConcept:   {"pose", "clothing", "outfit", "background", "lighting", "effect"},
}

func matchesAny(tag string, indicators []string) bool {
	for _, ind := range indicators {
		if strings.Contains(tag, ind) {
			return true
		}
	}
	return false
}

// CategorizeFromTags derives a category from training tag frequency: the
// top 20 tags by frequency are matched against each category's indicator
// set, and the category with the highest match count wins. Ties are broken
// by categoryTieBreakOrder. Absent tag data returns CategoryGeneral.
func CategorizeFromTags(tagFreq map[string]int) Category {
	if len(tagFreq) == 0 {
		return CategoryGeneral
	}

	top := topTagsByFrequency(tagFreq, 20)

	scores := make(map[Category]int, len(categoryTieBreakOrder))
	for _, cat := range categoryTieBreakOrder {
		if cat == CategoryGeneral {
			continue
		}
		indicators := categoryIndicators[cat]
		count := 0
		for _, tag := range top {
			if matchesAny(strings.ToLower(tag), indicators) {
				count++
			}
		}
		scores[cat] = count
	}

	if freq, ok := tagFreq["1girl"]; ok && freq > 100 {
		scores[CategoryCharacter] += 2
	}
	if _, ok := tagFreq["anime"]; ok {
		scores[CategoryAnime] += 3
	}
	if _, ok := tagFreq["manga"]; ok {
		scores[CategoryAnime] += 3
	}
	if _, ok := tagFreq["realistic"]; ok {
		scores[CategoryRealistic] += 3
	}
	if _, ok := tagFreq["photorealistic"]; ok {
		scores[CategoryRealistic] += 3
	}

	best := CategoryGeneral
	bestScore := 0
	for _, cat := range categoryTieBreakOrder {
		if cat == CategoryGeneral {
			continue
		}
		if scores[cat] > bestScore {
			bestScore = scores[cat]
			best = cat
		}
	}
	return best
}

var nameCategoryIndicators = []struct {
	category   Category
	indicators []string
}{
	{CategoryAnime, []string{"anime", "manga", "2d", "cartoon", "cel"}},
	{CategoryRealistic, []string{"real", "photo", "realistic", "portrait"}},
	{CategoryCharacter, []string{"character", "person", "girl", "boy", "woman", "man"}},
	{CategoryStyle, []string{"style", "art", "painting", "draw"}},
	{CategoryConcept, []string{"pose", "outfit", "clothing", "background"}},
}

// CategorizeFromName derives a category from the LoRA's filename/path when
// no training tag metadata is available, using the fixed name/path
// heuristic in nameCategoryIndicators order (first match wins).
func CategorizeFromName(name, path string) Category {
	lower := strings.ToLower(name + " " + path)
	for _, entry := range nameCategoryIndicators {
		if matchesAny(lower, entry.indicators) {
			return entry.category
		}
	}
	return CategoryGeneral
}
