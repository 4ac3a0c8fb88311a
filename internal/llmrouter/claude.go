package llmrouter

import "context"

// claudeProvider is a minimal stub: the corpus carries no Anthropic Go SDK
// and the original Claude integration is itself an unconfigured stub, so
// this mirrors that shape rather than hand-rolling a wire client. It reports
// itself unavailable via the standard structured-error contract instead of
// silently degrading chat quality.
type claudeProvider struct {
	apiKey       string
	defaultModel string
}

func newClaudeProvider(apiKey, model string) *claudeProvider {
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	return &claudeProvider{apiKey: apiKey, defaultModel: model}
}

func (p *claudeProvider) Name() string { return "claude" }

func (p *claudeProvider) Chat(ctx context.Context, messages []Message) (Response, error) {
	return Response{
		Success:  false,
		Provider: p.Name(),
		Error:    "claude provider requires user configuration and is not implemented",
	}, nil
}

func (p *claudeProvider) ListModels(ctx context.Context) ([]Model, error) {
	return []Model{
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet"},
		{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus"},
		{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku"},
	}, nil
}

func (p *claudeProvider) HealthCheck(ctx context.Context) bool { return false }
