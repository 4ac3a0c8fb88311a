package convstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/config"
	"github.com/sdforge/sdforge/internal/domain"
	"github.com/sdforge/sdforge/internal/repo"
)

const component = "convstore"

// Store is the per-context chat, personality, moderation, and rate-limit
// facility. All operations are safe to call concurrently; concurrency
// control is delegated to the underlying database's transaction discipline.
type Store struct {
	db        *gorm.DB
	autoClean config.AutoCleanConfig
}

// New returns a Store backed by db, seeding the built-in personality set.
// It does not perform auto-clean bookkeeping; call RecordLaunchAndMaybeClean
// for that during startup.
func New(ctx context.Context, db *gorm.DB, autoClean config.AutoCleanConfig) (*Store, error) {
	if err := SeedBuiltinPersonalities(ctx, db); err != nil {
		return nil, apperr.Internal(component, "seed builtin personalities", err)
	}
	return &Store{db: db, autoClean: autoClean}, nil
}

// Append adds one message to a context's history.
func (s *Store) Append(ctx context.Context, contextKey, userID, role, content, metadata string) (*domain.ConversationMessage, error) {
	m, err := repo.AppendMessage(ctx, s.db, contextKey, userID, role, content, metadata)
	if err != nil {
		return nil, apperr.Internal(component, "append message", err)
	}
	return m, nil
}

// History returns a context's messages in chronological ascending order,
// bounded by limit.
func (s *Store) History(ctx context.Context, contextKey string, limit int) ([]domain.ConversationMessage, error) {
	out, err := repo.History(ctx, s.db, contextKey, limit)
	if err != nil {
		return nil, apperr.Internal(component, "load history", err)
	}
	return out, nil
}

// Clear deletes every message under a context key and returns the count
// removed.
func (s *Store) Clear(ctx context.Context, contextKey string) (int64, error) {
	n, err := repo.ClearContext(ctx, s.db, contextKey)
	if err != nil {
		return 0, apperr.Internal(component, "clear context", err)
	}
	return n, nil
}

// Stats reports the message count and most recent timestamp for a context,
// for building a weak ETag over its history without fetching every row.
func (s *Store) Stats(ctx context.Context, contextKey string) (count int64, latest *time.Time, err error) {
	count, latest, err = repo.ContextStats(ctx, s.db, contextKey)
	if err != nil {
		return 0, nil, apperr.Internal(component, "context stats", err)
	}
	return count, latest, nil
}

// GetSettings fetches a user's settings, auto-creating defaults on first
// access.
func (s *Store) GetSettings(ctx context.Context, userID string) (*domain.UserSettings, error) {
	settings, err := repo.GetOrCreateUserSettings(ctx, s.db, userID)
	if err != nil {
		return nil, apperr.Internal(component, "get or create user settings", err)
	}
	return settings, nil
}

// SetPersonality sets a user's active personality. Refused when the user
// has a locked personality set to a different name.
func (s *Store) SetPersonality(ctx context.Context, userID, name string) error {
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return err
	}
	if settings.LockedPersonalityName != nil && *settings.LockedPersonalityName != name {
		return apperr.Policy(component, "personality is locked to "+*settings.LockedPersonalityName)
	}
	if _, err := repo.GetPersonality(ctx, s.db, name); err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperr.NotFound(component, "personality "+name+" not found")
		}
		return apperr.Internal(component, "lookup personality", err)
	}
	if err := repo.UpdateUserPersonality(ctx, s.db, userID, name); err != nil {
		return apperr.Internal(component, "update personality", err)
	}
	return nil
}

// GetPersonality fetches one installed personality by name.
func (s *Store) GetPersonality(ctx context.Context, name string) (*domain.Personality, error) {
	p, err := repo.GetPersonality(ctx, s.db, name)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NotFound(component, "personality "+name+" not found")
		}
		return nil, apperr.Internal(component, "lookup personality", err)
	}
	return p, nil
}

// Personalities lists every installed personality, ordered by name, for a
// switcher surface to render.
func (s *Store) Personalities(ctx context.Context) ([]domain.Personality, error) {
	out, err := repo.ListPersonalities(ctx, s.db)
	if err != nil {
		return nil, apperr.Internal(component, "list personalities", err)
	}
	return out, nil
}

// LockPersonality pins a user's personality, refusing future SetPersonality
// calls to a different name, until an admin unlocks it.
func (s *Store) LockPersonality(ctx context.Context, userID, name, adminID string) error {
	if _, err := repo.GetPersonality(ctx, s.db, name); err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperr.NotFound(component, "personality "+name+" not found")
		}
		return apperr.Internal(component, "lookup personality", err)
	}
	if _, err := s.GetSettings(ctx, userID); err != nil {
		return err
	}
	if err := repo.LockUserPersonality(ctx, s.db, userID, name); err != nil {
		return apperr.Internal(component, "lock personality", err)
	}
	return nil
}

// UnlockPersonality clears a user's personality lock.
func (s *Store) UnlockPersonality(ctx context.Context, userID, adminID string) error {
	err := s.db.WithContext(ctx).Model(&domain.UserSettings{}).
		Where("user_id = ?", userID).
		Update("locked_personality_name", nil).Error
	if err != nil {
		return apperr.Internal(component, "unlock personality", err)
	}
	return nil
}

// TimeoutUser puts a user into a timed-out moderation state for the given
// duration.
func (s *Store) TimeoutUser(ctx context.Context, userID string, minutes int, reason, adminID string) error {
	until := time.Now().UTC().Add(time.Duration(minutes) * time.Minute)
	m := &domain.Moderation{
		UserID: userID, Status: ModerationTimeout, TimeoutUntil: &until,
		Reason: reason, AdminUserID: adminID, UpdatedAt: time.Now().UTC(),
	}
	if err := repo.UpsertModeration(ctx, s.db, m); err != nil {
		return apperr.Internal(component, "timeout user", err)
	}
	return nil
}

// SuspendUser indefinitely suspends a user until an admin restores them.
func (s *Store) SuspendUser(ctx context.Context, userID, reason, adminID string) error {
	m := &domain.Moderation{
		UserID: userID, Status: ModerationSuspended, Reason: reason,
		AdminUserID: adminID, UpdatedAt: time.Now().UTC(),
	}
	if err := repo.UpsertModeration(ctx, s.db, m); err != nil {
		return apperr.Internal(component, "suspend user", err)
	}
	return nil
}

// RestoreUser returns a user to active moderation status.
func (s *Store) RestoreUser(ctx context.Context, userID, adminID string) error {
	m := &domain.Moderation{UserID: userID, Status: ModerationActive, AdminUserID: adminID, UpdatedAt: time.Now().UTC()}
	if err := repo.UpsertModeration(ctx, s.db, m); err != nil {
		return apperr.Internal(component, "restore user", err)
	}
	return nil
}

// CheckStatus returns a user's current moderation status, lazily expiring
// an elapsed timeout back to active.
func (s *Store) CheckStatus(ctx context.Context, userID string) (Status, error) {
	m, err := repo.GetOrCreateModeration(ctx, s.db, userID)
	if err != nil {
		return Status{}, apperr.Internal(component, "get moderation status", err)
	}
	if m.Status == ModerationTimeout && m.TimeoutUntil != nil && !time.Now().UTC().Before(*m.TimeoutUntil) {
		if err := repo.UpsertModeration(ctx, s.db, &domain.Moderation{
			UserID: userID, Status: ModerationActive, UpdatedAt: time.Now().UTC(),
		}); err != nil {
			return Status{}, apperr.Internal(component, "expire timeout", err)
		}
		return Status{Status: ModerationActive}, nil
	}
	return Status{Status: m.Status, TimeoutUntil: m.TimeoutUntil, Reason: m.Reason}, nil
}

// CheckRate reports whether a user may perform action now, counting events
// within the trailing 60-second window. When denied, SecondsUntilReset is
// the time until the oldest in-window event falls out of the window.
func (s *Store) CheckRate(ctx context.Context, userID, actionType string, maxPerMinute int) (RateDecision, error) {
	now := time.Now().UTC()
	windowStart := now.Add(-rateWindow)

	count, err := repo.CountRateLimitEventsSince(ctx, s.db, userID, actionType, windowStart)
	if err != nil {
		return RateDecision{}, apperr.Internal(component, "count rate events", err)
	}
	if count < int64(maxPerMinute) {
		return RateDecision{Allowed: true, SecondsUntilReset: 0}, nil
	}

	oldest, err := repo.OldestRateLimitEventSince(ctx, s.db, userID, actionType, windowStart)
	if err != nil {
		return RateDecision{}, apperr.Internal(component, "find oldest rate event", err)
	}
	if oldest == nil {
		return RateDecision{Allowed: true, SecondsUntilReset: 0}, nil
	}
	remaining := int(oldest.Add(rateWindow).Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return RateDecision{Allowed: false, SecondsUntilReset: remaining}, nil
}

// RecordAction records one rate-limited action for a user.
func (s *Store) RecordAction(ctx context.Context, userID, actionType string) error {
	if err := repo.RecordRateLimitEvent(ctx, s.db, userID, actionType, time.Now().UTC()); err != nil {
		return apperr.Internal(component, "record action", err)
	}
	return nil
}
