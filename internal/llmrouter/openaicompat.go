package llmrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sdforge/sdforge/internal/config"
)

// openAICompatProvider talks to any backend exposing the OpenAI chat
// completions wire format: LM Studio (always the image-assist channel) and
// OpenAI itself when selected as the chat channel.
type openAICompatProvider struct {
	name         string
	baseURL      string
	apiKey       string
	defaultModel string
	httpc        *http.Client
}

func newOpenAICompatProvider(name string, cfg config.ChatProviderConfig) *openAICompatProvider {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "not-needed"
	}
	return &openAICompatProvider{
		name:         name,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       apiKey,
		defaultModel: cfg.DefaultModel,
		httpc:        &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *openAICompatProvider) Name() string { return p.name }

type openAIChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIChatMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
}

func (p *openAICompatProvider) Chat(ctx context.Context, messages []Message) (Response, error) {
	payload := openAIChatRequest{Model: p.defaultModel, Stream: false}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, openAIChatMessage{Role: string(m.Role), Content: m.Content})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("%s: encode request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Response{Success: false, Provider: p.name, Error: ctx.Err().Error()}, nil
		}
		return Response{Success: false, Provider: p.name, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return Response{Success: false, Provider: p.name, Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(data))}, nil
	}

	var out openAIChatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return Response{Success: false, Provider: p.name, Error: "decode response: " + err.Error()}, nil
	}
	if len(out.Choices) == 0 {
		return Response{Success: false, Provider: p.name, Error: "no choices returned"}, nil
	}

	return Response{
		Content:  stripThinkingTags(out.Choices[0].Message.Content),
		Success:  true,
		Provider: p.name,
		Model:    out.Model,
	}, nil
}

func (p *openAICompatProvider) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: list models: %w", p.name, err)
	}
	defer resp.Body.Close()

	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decode models: %w", p.name, err)
	}

	models := make([]Model, 0, len(out.Data))
	for _, m := range out.Data {
		models = append(models, Model{ID: m.ID, Name: m.ID})
	}
	return models, nil
}

func (p *openAICompatProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := p.ListModels(ctx)
	return err == nil
}

// stripThinkingTags removes <think>...</think> delimiters some local model
// runtimes emit around chain-of-thought before the actual reply.
func stripThinkingTags(content string) string {
	for {
		start := strings.Index(content, "<think>")
		if start == -1 {
			return content
		}
		end := strings.Index(content[start:], "</think>")
		if end == -1 {
			return content[:start]
		}
		content = content[:start] + content[start+end+len("</think>"):]
	}
}
