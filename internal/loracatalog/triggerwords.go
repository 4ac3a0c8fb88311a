package loracatalog

import (
	"sort"
	"strconv"
	"strings"
)

// genericTrainingTags are filtered out of trigger-word extraction because
// they describe nearly every training image regardless of subject.
var genericTrainingTags = map[string]bool{
	"1girl": true, "1boy": true, "solo": true, "breasts": true,
	"looking at viewer": true, "simple background": true, "white background": true,
	"upper body": true, "portrait": true, "close-up": true, "medium shot": true,
	"long hair": true, "short hair": true, "brown hair": true, "black hair": true,
	"blonde hair": true, "blue eyes": true, "brown eyes": true, "green eyes": true,
	"smile": true, "open mouth": true,
}

const minTriggerFrequency = 5

// topTagsByFrequency returns up to n tags ordered by descending frequency,
// then lexicographically for stability when frequencies tie.
func topTagsByFrequency(tagFreq map[string]int, n int) []string {
	type pair struct {
		tag  string
		freq int
	}
	pairs := make([]pair, 0, len(tagFreq))
	for tag, freq := range tagFreq {
		pairs = append(pairs, pair{tag, freq})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].freq != pairs[j].freq {
			return pairs[i].freq > pairs[j].freq
		}
		return pairs[i].tag < pairs[j].tag
	})
	if n > len(pairs) {
		n = len(pairs)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = pairs[i].tag
	}
	return out
}

// ExtractTriggerWords returns the top-N non-generic training tags, ordered
// by descending frequency then lexicographically.
func ExtractTriggerWords(tagFreq map[string]int, limit int) []string {
	if len(tagFreq) == 0 {
		return nil
	}

	filtered := make(map[string]int)
	for tag, freq := range tagFreq {
		lower := strings.ToLower(tag)
		if genericTrainingTags[lower] {
			continue
		}
		if freq <= minTriggerFrequency {
			continue
		}
		if len(tag) <= 2 {
			continue
		}
		if _, err := strconv.Atoi(tag); err == nil {
			continue
		}
		filtered[tag] = freq
	}
	return topTagsByFrequency(filtered, limit)
}

// ExtractTriggerWordsFromName derives a small trigger-word set from a
// LoRA's filename when no training metadata is available: version numbers
// and digits are stripped, and the first three meaningful words are kept.
func ExtractTriggerWordsFromName(name string) []string {
	clean := strings.ReplaceAll(name, "_", " ")
	clean = strings.ReplaceAll(clean, "-", " ")
	clean = stripVersionsAndDigits(clean)

	var words []string
	for _, w := range strings.Fields(clean) {
		if len(strings.TrimSpace(w)) > 2 {
			words = append(words, w)
		}
	}
	if len(words) > 3 {
		words = words[:3]
	}
	return words
}

func stripVersionsAndDigits(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r == 'v' || r == 'V') && i+1 < len(runes) && isDigit(runes[i+1]) {
			i++
			for i < len(runes) && isDigit(runes[i]) {
				i++
			}
			i--
			continue
		}
		if isDigit(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
