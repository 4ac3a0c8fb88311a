package personacore

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/config"
	"github.com/sdforge/sdforge/internal/convstore"
	"github.com/sdforge/sdforge/internal/domain"
	"github.com/sdforge/sdforge/internal/llmrouter"
	"github.com/sdforge/sdforge/internal/queue"
)

const component = "personacore"

// Enhancer turns a raw prompt into an enhanced one, the same contract
// contentclassifier.Classifier.Enhance satisfies.
type Enhancer interface {
	Enhance(ctx context.Context, prompt string, applySuggestions, safetyFilter bool) (string, error)
}

// Enqueuer submits a generation request to the queue, the same contract
// queue.Engine.Enqueue satisfies.
type Enqueuer interface {
	Enqueue(req queue.Request, priority int) string
}

// Core drives one conversational turn: moderation and rate gates,
// personality loading, image-intent branching, history bookkeeping.
type Core struct {
	store         *convstore.Store
	router        *llmrouter.Router
	enhancer      Enhancer
	queue         Enqueuer
	chatLimit     int
	generateLimit int
}

// New builds a Core.
func New(store *convstore.Store, router *llmrouter.Router, enhancer Enhancer, q Enqueuer, rates config.RateConfig) *Core {
	return &Core{
		store: store, router: router, enhancer: enhancer, queue: q,
		chatLimit: rates.ChatPerMinute, generateLimit: rates.GeneratePerMinute,
	}
}

var thinkingTagPattern = regexp.MustCompile(`(?is)<think>.*?</think>`)

// Turn runs one exchange: status and rate gates, personality-aware reply,
// image-intent branch, then records the turn's history and rate event.
func (c *Core) Turn(ctx context.Context, userID string, contextKey convstore.ContextKey, message string) (Turn, error) {
	status, err := c.store.CheckStatus(ctx, userID)
	if err != nil {
		return Turn{}, err
	}
	if status.Status == convstore.ModerationSuspended {
		reason := status.Reason
		if reason == "" {
			reason = "no reason provided"
		}
		return Turn{Refused: true, RefusalReason: "account suspended: " + reason}, nil
	}
	if status.Status == convstore.ModerationTimeout && status.TimeoutUntil != nil {
		return Turn{Refused: true, RefusalReason: "timed out until " + status.TimeoutUntil.Format(time.RFC3339)}, nil
	}

	rate, err := c.store.CheckRate(ctx, userID, "chat", c.chatLimit)
	if err != nil {
		return Turn{}, err
	}
	if !rate.Allowed {
		return Turn{Refused: true, RefusalReason: fmt.Sprintf("rate limited, try again in %d seconds", rate.SecondsUntilReset)}, nil
	}

	settings, err := c.store.GetSettings(ctx, userID)
	if err != nil {
		return Turn{}, err
	}
	personalityName := settings.PersonalityName
	if settings.LockedPersonalityName != nil {
		personalityName = *settings.LockedPersonalityName
	}
	personality, err := c.store.GetPersonality(ctx, personalityName)
	if err != nil {
		personality, err = c.store.GetPersonality(ctx, "default")
		if err != nil {
			return Turn{}, err
		}
	}

	intent := detectImageIntent(message)
	var turn Turn
	if intent.matched {
		turn, err = c.runImageAssist(ctx, userID, string(contextKey), message, intent, personality)
	} else {
		turn, err = c.runChat(ctx, userID, string(contextKey), message, settings.MaxContextMessages, personality)
	}
	if err != nil {
		return Turn{}, err
	}

	if recErr := c.store.RecordAction(ctx, userID, "chat"); recErr != nil {
		log.Warn().Err(recErr).Str("component", component).Msg("failed to record chat rate event")
	}
	turn.PersonalityName = personality.Name
	return turn, nil
}

func (c *Core) runChat(ctx context.Context, userID, contextKey, message string, maxContext int, personality *domain.Personality) (Turn, error) {
	history, err := c.store.History(ctx, contextKey, maxContext)
	if err != nil {
		return Turn{}, err
	}

	messages := []llmrouter.Message{{Role: llmrouter.RoleSystem, Content: personality.SystemPrompt}}
	for _, m := range history {
		messages = append(messages, llmrouter.Message{Role: llmrouter.Role(m.Role), Content: m.Content})
	}
	messages = append(messages, llmrouter.Message{Role: llmrouter.RoleUser, Content: message})

	resp, err := c.router.Chat(ctx, messages)
	if err != nil {
		return Turn{}, err
	}
	if !resp.Success {
		return Turn{}, apperr.Upstream(component, resp.Error)
	}

	reply := thinkingTagPattern.ReplaceAllString(resp.Content, "")
	reply = strings.TrimSpace(reply)

	if _, err := c.store.Append(ctx, contextKey, userID, "user", message, ""); err != nil {
		return Turn{}, err
	}
	if _, err := c.store.Append(ctx, contextKey, userID, "assistant", reply, ""); err != nil {
		return Turn{}, err
	}

	return Turn{Reply: reply}, nil
}

func (c *Core) runImageAssist(ctx context.Context, userID, contextKey, message string, intent imageIntent, personality *domain.Personality) (Turn, error) {
	rate, err := c.store.CheckRate(ctx, userID, "generate", c.generateLimit)
	if err != nil {
		return Turn{}, err
	}
	if !rate.Allowed {
		return Turn{Refused: true, RefusalReason: fmt.Sprintf("generation rate limited, try again in %d seconds", rate.SecondsUntilReset)}, nil
	}

	injectionPrompt := personality.ImageInjectionPrompt
	if injectionPrompt == "" {
		injectionPrompt = personality.SystemPrompt
	}

	enhanced, err := c.enhancer.Enhance(ctx, intent.subject, true, true)
	if err != nil {
		return Turn{}, err
	}

	assistResp, err := c.router.ImageAssist(ctx, []llmrouter.Message{
		{Role: llmrouter.RoleSystem, Content: injectionPrompt},
		{Role: llmrouter.RoleUser, Content: "Create an enhanced image prompt for: " + enhanced},
	})
	finalPrompt := enhanced
	if err == nil && assistResp.Success && strings.TrimSpace(assistResp.Content) != "" {
		finalPrompt = strings.TrimSpace(assistResp.Content)
	}

	jobID := c.queue.Enqueue(queue.Request{Prompt: finalPrompt, ApplyCensor: true, UserID: userID}, 0)

	if recErr := c.store.RecordAction(ctx, userID, "generate"); recErr != nil {
		log.Warn().Err(recErr).Str("component", component).Msg("failed to record generate rate event")
	}

	reply := fmt.Sprintf("🎨 Enhanced with %s style! Starting generation for: %s", personality.DisplayName, finalPrompt)
	if _, err := c.store.Append(ctx, contextKey, userID, "user", message, ""); err != nil {
		return Turn{}, err
	}
	if _, err := c.store.Append(ctx, contextKey, userID, "assistant", reply, ""); err != nil {
		return Turn{}, err
	}

	return Turn{Reply: reply, ImageIntent: true, ImageJobID: jobID, EnhancedPrompt: finalPrompt}, nil
}
