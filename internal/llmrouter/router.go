package llmrouter

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sdforge/sdforge/internal/config"
)

const component = "llmrouter"

// unavailableProvider is the null-object returned when the configured chat
// provider fails to initialize; it reports unavailability
// via the structured-error contract rather than panicking the caller.
type unavailableProvider struct{ reason string }

func (p *unavailableProvider) Name() string { return "none" }

func (p *unavailableProvider) Chat(ctx context.Context, messages []Message) (Response, error) {
	return Response{Success: false, Provider: "none", Error: p.reason}, nil
}

func (p *unavailableProvider) ListModels(ctx context.Context) ([]Model, error) { return nil, nil }

func (p *unavailableProvider) HealthCheck(ctx context.Context) bool { return false }

// Router exposes the two independent LLM channels: a user-configurable chat
// provider and a fixed local image-assist provider.
type Router struct {
	chat        Provider
	imageAssist Provider
}

// New builds a Router. The chat provider is selected from cfg.Provider via a
// static registry; an unknown name falls back to LM Studio, and a provider
// that fails to initialize degrades to the unavailable null-object rather
// than stopping startup. The image-assist
// channel is always backed by the local LM Studio endpoint.
func New(ctx context.Context, cfg config.ChatConfig) *Router {
	return &Router{
		chat:        buildChatProvider(ctx, cfg),
		imageAssist: newOpenAICompatProvider("lmstudio", cfg.ImageAssist),
	}
}

func buildChatProvider(ctx context.Context, cfg config.ChatConfig) Provider {
	switch cfg.Provider {
	case "lmstudio", "":
		return newOpenAICompatProvider("lmstudio", cfg.LMStudio)
	case "openai":
		return newOpenAICompatProvider("openai", cfg.OpenAI)
	case "claude":
		return newClaudeProvider(cfg.Claude.APIKey, cfg.Claude.DefaultModel)
	case "gemini":
		p, err := newGeminiProvider(ctx, cfg.Gemini)
		if err != nil {
			log.Error().Err(err).Str("component", component).Msg("failed to initialize gemini provider, falling back to unavailable")
			return &unavailableProvider{reason: err.Error()}
		}
		return p
	default:
		log.Warn().Str("component", component).Str("provider", cfg.Provider).Msg("unknown chat provider, falling back to lmstudio")
		return newOpenAICompatProvider("lmstudio", cfg.LMStudio)
	}
}

// Chat sends a request through the user-configurable chat channel.
func (r *Router) Chat(ctx context.Context, messages []Message) (Response, error) {
	return r.chat.Chat(ctx, messages)
}

// ChatModels lists models available on the active chat provider.
func (r *Router) ChatModels(ctx context.Context) ([]Model, error) {
	return r.chat.ListModels(ctx)
}

// ChatHealthCheck reports whether the active chat provider is reachable.
func (r *Router) ChatHealthCheck(ctx context.Context) bool {
	return r.chat.HealthCheck(ctx)
}

// ImageAssist sends a request through the fixed local image-assist channel,
// used to turn a user's description into a generation-ready prompt.
func (r *Router) ImageAssist(ctx context.Context, messages []Message) (Response, error) {
	return r.imageAssist.Chat(ctx, messages)
}

// ProviderInfo reports the active chat provider's name and reachability.
type ProviderInfo struct {
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
}

// ChatProviderInfo reports the active chat provider's identity and health.
func (r *Router) ChatProviderInfo(ctx context.Context) ProviderInfo {
	return ProviderInfo{Name: r.chat.Name(), Reachable: r.chat.HealthCheck(ctx)}
}

// AvailableProviders lists the chat providers the router knows how to build,
// regardless of which one is currently active.
func (r *Router) AvailableProviders() []string {
	return []string{"lmstudio", "openai", "claude", "gemini"}
}
