package toolsurface

import (
	"context"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/domain"
)

// ConversationHistory is the payload for GetConversationHistory: the
// requested page of messages plus lightweight stats over the full context,
// cheap enough to compute on every call for client-side ETag comparison.
type ConversationHistory struct {
	Messages      []domain.ConversationMessage `json:"messages"`
	Count         int64                        `json:"count"`
	LastMessageAt *int64                       `json:"last_message_at_unix,omitempty"`
}

// adminOnly refuses the call unless callerID is registered as an admin.
func (s *Surface) adminOnly(callerID string) error {
	if !s.isAdmin(callerID) {
		return apperr.Policy(component, "caller is not an admin")
	}
	return nil
}

// TimeoutUser times a user out of chat/generation for a bounded duration.
func (s *Surface) TimeoutUser(ctx context.Context, callerID, userID string, minutes int, reason string) Result {
	if err := s.adminOnly(callerID); err != nil {
		return fail(err)
	}
	if err := s.store.TimeoutUser(ctx, userID, minutes, reason, callerID); err != nil {
		return fail(err)
	}
	return ok(map[string]string{"user_id": userID, "status": "timeout"})
}

// SuspendUser indefinitely suspends a user.
func (s *Surface) SuspendUser(ctx context.Context, callerID, userID, reason string) Result {
	if err := s.adminOnly(callerID); err != nil {
		return fail(err)
	}
	if err := s.store.SuspendUser(ctx, userID, reason, callerID); err != nil {
		return fail(err)
	}
	return ok(map[string]string{"user_id": userID, "status": "suspended"})
}

// RestoreUser returns a user to active moderation status.
func (s *Surface) RestoreUser(ctx context.Context, callerID, userID string) Result {
	if err := s.adminOnly(callerID); err != nil {
		return fail(err)
	}
	if err := s.store.RestoreUser(ctx, userID, callerID); err != nil {
		return fail(err)
	}
	return ok(map[string]string{"user_id": userID, "status": "active"})
}

// AdminLockPersonality pins a user's personality until an admin unlocks it.
func (s *Surface) AdminLockPersonality(ctx context.Context, callerID, userID, personalityName string) Result {
	if err := s.adminOnly(callerID); err != nil {
		return fail(err)
	}
	if err := s.store.LockPersonality(ctx, userID, personalityName, callerID); err != nil {
		return fail(err)
	}
	return ok(map[string]string{"user_id": userID, "locked_to": personalityName})
}

// AdminUnlockPersonality clears a user's personality lock.
func (s *Surface) AdminUnlockPersonality(ctx context.Context, callerID, userID string) Result {
	if err := s.adminOnly(callerID); err != nil {
		return fail(err)
	}
	if err := s.store.UnlockPersonality(ctx, userID, callerID); err != nil {
		return fail(err)
	}
	return ok(map[string]string{"user_id": userID, "status": "unlocked"})
}

// ListPersonalities lists every installed personality for a switcher
// surface to render.
func (s *Surface) ListPersonalities(ctx context.Context) Result {
	personalities, err := s.store.Personalities(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(personalities)
}

// GetConversationHistory returns a context's messages, most recent limit,
// alongside its total count and last-message timestamp so a caller can
// build a weak ETag and skip refetching unchanged history.
func (s *Surface) GetConversationHistory(ctx context.Context, contextKey string, limit int) Result {
	messages, err := s.store.History(ctx, contextKey, limit)
	if err != nil {
		return fail(err)
	}
	count, latest, err := s.store.Stats(ctx, contextKey)
	if err != nil {
		return fail(err)
	}
	out := ConversationHistory{Messages: messages, Count: count}
	if latest != nil {
		unix := latest.Unix()
		out.LastMessageAt = &unix
	}
	return ok(out)
}

// GetProviderInfo reports the active chat provider's identity and health.
func (s *Surface) GetProviderInfo(ctx context.Context) Result {
	return ok(s.router.ChatProviderInfo(ctx))
}

// GetAvailableProviders lists every chat provider the router can build.
func (s *Surface) GetAvailableProviders() Result {
	return ok(s.router.AvailableProviders())
}
