package convstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sdforge/sdforge/internal/apperr"
	"github.com/sdforge/sdforge/internal/repo"
)

// RecordLaunchAndMaybeClean records a launch event and, if the configured
// auto-clean policy's threshold has elapsed since the last cleanup, sweeps
// old conversation and rate-limit rows. Errors from the cleanup sweep are
// logged and swallowed; they must not prevent startup.
func (s *Store) RecordLaunchAndMaybeClean(ctx context.Context) {
	launchID := uuid.NewString()
	if _, err := repo.RecordLaunch(ctx, s.db, launchID); err != nil {
		log.Error().Err(err).Str("component", component).Msg("failed to record launch")
		return
	}

	if !s.autoClean.Enabled {
		return
	}

	due, err := s.cleanupDue(ctx)
	if err != nil {
		log.Error().Err(err).Str("component", component).Msg("failed to evaluate auto-clean policy")
		return
	}
	if !due {
		return
	}

	if err := s.runCleanup(ctx); err != nil {
		log.Error().Err(err).Str("component", component).Msg("auto-clean sweep failed")
		return
	}
	if err := repo.MarkLaunchCleaned(ctx, s.db, launchID); err != nil {
		log.Error().Err(err).Str("component", component).Msg("failed to mark launch cleaned")
	}
}

func (s *Store) cleanupDue(ctx context.Context) (bool, error) {
	last, err := repo.LastCleanupLaunch(ctx, s.db)
	if err != nil {
		return false, apperr.Internal(component, "find last cleanup launch", err)
	}
	if last == nil {
		return true, nil
	}

	switch s.autoClean.Method {
	case "days":
		elapsed := time.Since(last.LaunchTime)
		return elapsed > time.Duration(s.autoClean.Days)*24*time.Hour, nil
	case "launches":
		count, err := repo.CountLaunchesSince(ctx, s.db, last.LaunchTime)
		if err != nil {
			return false, apperr.Internal(component, "count launches since last cleanup", err)
		}
		return count > int64(s.autoClean.Launches), nil
	default:
		return false, nil
	}
}

// runCleanup deletes conversation messages older than retain_days and
// rate-limit events older than the fixed one-hour slack window. Running it
// twice within the same launch must not delete more rows the second time
// than the first (both sweeps share the same cutoffs computed from "now").
func (s *Store) runCleanup(ctx context.Context) error {
	now := time.Now().UTC()
	msgCutoff := now.AddDate(0, 0, -s.autoClean.RetainDays)
	if _, err := repo.DeleteMessagesOlderThan(ctx, s.db, msgCutoff); err != nil {
		return apperr.Internal(component, "delete old messages", err)
	}

	rateCutoff := now.Add(-cleanupRateSlack)
	if _, err := repo.DeleteRateLimitEventsOlderThan(ctx, s.db, rateCutoff); err != nil {
		return apperr.Internal(component, "delete old rate-limit events", err)
	}
	return nil
}
