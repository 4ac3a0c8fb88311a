package toolsurface

import (
	"context"
	"strings"

	"github.com/sdforge/sdforge/internal/loracatalog"
	"github.com/sdforge/sdforge/internal/sdgateway"
)

// GetSDModelsSummary lists the checkpoints the SD engine currently reports.
func (s *Surface) GetSDModelsSummary(ctx context.Context) Result {
	models, err := s.gateway.ListModels(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(models)
}

// SearchSDModels filters the engine's model list by a substring query,
// case-insensitively against title and model name.
func (s *Surface) SearchSDModels(ctx context.Context, query string, limit int) Result {
	models, err := s.gateway.ListModels(ctx)
	if err != nil {
		return fail(err)
	}
	matched := filterModels(models, query)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return ok(matched)
}

// GetSamplersList lists the engine's available samplers.
func (s *Surface) GetSamplersList(ctx context.Context) Result {
	samplers, err := s.gateway.ListSamplers(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(samplers)
}

// GetLoRASummary returns the catalog-wide digest: totals by category and the
// most common trigger words.
func (s *Surface) GetLoRASummary(ctx context.Context) Result {
	summary, err := s.catalog.Summarize(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(summary)
}

// BrowseLoRAsByCategory lists catalog entries under one category, bounded
// by limit.
func (s *Surface) BrowseLoRAsByCategory(ctx context.Context, category string, limit int) Result {
	entries, err := s.catalog.Browse(ctx, loracatalog.Category(category), limit)
	if err != nil {
		return fail(err)
	}
	return ok(entries)
}

// SearchLoRAsSmart ranks catalog entries against a free-text query.
func (s *Surface) SearchLoRAsSmart(ctx context.Context, query string, maxResults int) Result {
	results, err := s.catalog.Search(ctx, query, maxResults)
	if err != nil {
		return fail(err)
	}
	return ok(results)
}

// SuggestLoRAsForPrompt ranks catalog entries against a generation prompt.
func (s *Surface) SuggestLoRAsForPrompt(ctx context.Context, prompt string, limit int) Result {
	suggestions, err := s.catalog.SuggestForPrompt(ctx, prompt, limit)
	if err != nil {
		return fail(err)
	}
	return ok(suggestions)
}

// ValidateLoRACombination checks a proposed selection against the combination
// rules (total-weight cap, category exclusivity, pairwise deny list).
func (s *Surface) ValidateLoRACombination(ctx context.Context, selected []loracatalog.Selection) Result {
	conflicts, err := s.catalog.ValidateCombination(ctx, selected)
	if err != nil {
		return fail(err)
	}
	return ok(conflicts)
}

func filterModels(models []sdgateway.SDModel, query string) []sdgateway.SDModel {
	if query == "" {
		return models
	}
	lower := strings.ToLower(query)
	out := make([]sdgateway.SDModel, 0, len(models))
	for _, m := range models {
		if strings.Contains(strings.ToLower(m.Title), lower) || strings.Contains(strings.ToLower(m.ModelName), lower) {
			out = append(out, m)
		}
	}
	return out
}
