package llmrouter

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/sdforge/sdforge/internal/config"
)

// geminiProvider talks to Google's Gemini API via the official genai SDK.
type geminiProvider struct {
	client       *genai.Client
	defaultModel string
}

func newGeminiProvider(ctx context.Context, cfg config.ChatProviderConfig) (*geminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-1.5-pro"
	}
	return &geminiProvider{client: client, defaultModel: model}, nil
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) Chat(ctx context.Context, messages []Message) (Response, error) {
	var systemPrompt string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			systemPrompt = m.Content
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	var genCfg *genai.GenerateContentConfig
	if systemPrompt != "" {
		genCfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}
	}

	result, err := p.client.Models.GenerateContent(ctx, p.defaultModel, contents, genCfg)
	if err != nil {
		return Response{Success: false, Provider: p.Name(), Error: err.Error()}, nil
	}

	text := result.Text()
	if text == "" {
		return Response{Success: false, Provider: p.Name(), Error: "no content returned"}, nil
	}
	return Response{Content: text, Success: true, Provider: p.Name(), Model: p.defaultModel}, nil
}

func (p *geminiProvider) ListModels(ctx context.Context) ([]Model, error) {
	return []Model{
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro"},
		{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash"},
		{ID: "gemini-pro", Name: "Gemini Pro"},
	}, nil
}

func (p *geminiProvider) HealthCheck(ctx context.Context) bool {
	_, err := p.client.Models.GenerateContent(ctx, p.defaultModel, []*genai.Content{
		genai.NewContentFromText("ping", genai.RoleUser),
	}, nil)
	return err == nil
}
