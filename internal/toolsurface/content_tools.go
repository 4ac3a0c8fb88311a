package toolsurface

import "context"

// AnalyzePromptContent runs taxonomy matching and safety scoring over a
// prompt/negative-prompt pair.
func (s *Surface) AnalyzePromptContent(ctx context.Context, prompt, negativePrompt string) Result {
	result, err := s.classifier.Analyze(ctx, prompt, negativePrompt)
	if err != nil {
		return fail(err)
	}
	return ok(result)
}

// EnhancedPromptGeneration fills missing quality axes and, when requested,
// strips matched explicit tokens from a prompt.
func (s *Surface) EnhancedPromptGeneration(ctx context.Context, prompt string, applySuggestions, safetyFilter bool) Result {
	enhanced, err := s.classifier.Enhance(ctx, prompt, applySuggestions, safetyFilter)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]string{"prompt": enhanced})
}

// GetContentCategories lists the installed taxonomy, optionally narrowed to
// one branch.
func (s *Surface) GetContentCategories(ctx context.Context, typePrefix string) Result {
	categories, err := s.classifier.Categories(ctx, typePrefix)
	if err != nil {
		return fail(err)
	}
	return ok(categories)
}

// GetUsageStatistics reports taxonomy-wide word counts.
func (s *Surface) GetUsageStatistics(ctx context.Context) Result {
	stats, err := s.classifier.UsageStatistics(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(stats)
}

// ExportContentConfig serializes the full taxonomy and its word mappings.
func (s *Surface) ExportContentConfig(ctx context.Context) Result {
	cfg, err := s.classifier.ExportConfig(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(cfg)
}

// SearchContentWords looks up word-category mappings by substring.
func (s *Surface) SearchContentWords(ctx context.Context, query string) Result {
	matches, err := s.classifier.SearchWords(ctx, query)
	if err != nil {
		return fail(err)
	}
	return ok(matches)
}
