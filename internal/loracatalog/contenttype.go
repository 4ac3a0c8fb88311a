package loracatalog

import (
	"strings"

	"github.com/sdforge/sdforge/internal/config"
)

// nsfwMarkerTags are training tags whose presence, weighted by frequency
// share of the total, drives content-type detection.
var nsfwMarkerTags = []string{
	"nude", "naked", "nipples", "penis", "vagina", "sex", "nsfw",
	"explicit", "pornography", "adult", "mature", "r18",
}

// DetectContentType classifies a LoRA's content sensitivity from its
// training tag frequency: nsfw above cfg.NSFWShareThreshold, suggestive
// above cfg.SuggestiveShareThreshold, else safe. Absent tag data defaults
// to safe.
func DetectContentType(tagFreq map[string]int, cfg config.CatalogConfig) ContentType {
	if len(tagFreq) == 0 {
		return ContentSafe
	}

	var markerFreq, totalFreq int
	for tag, freq := range tagFreq {
		totalFreq += freq
		lower := strings.ToLower(tag)
		for _, marker := range nsfwMarkerTags {
			if strings.Contains(lower, marker) {
				markerFreq += freq
				break
			}
		}
	}
	if totalFreq == 0 {
		return ContentSafe
	}

	ratio := float64(markerFreq) / float64(totalFreq)
	switch {
	case ratio > cfg.NSFWShareThreshold:
		return ContentNSFW
	case ratio > cfg.SuggestiveShareThreshold:
		return ContentSuggestive
	default:
		return ContentSafe
	}
}

// DetectContentTypeFromName is the name/path fallback used when no training
// tag metadata is available.
func DetectContentTypeFromName(name string) ContentType {
	lower := strings.ToLower(name)
	indicators := []string{"nsfw", "nude", "adult", "xxx", "porn", "sex", "breast", "hentai"}
	for _, ind := range indicators {
		if strings.Contains(lower, ind) {
			return ContentNSFW
		}
	}
	return ContentSafe
}
