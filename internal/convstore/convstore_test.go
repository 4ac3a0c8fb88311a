package convstore

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/sdforge/sdforge/internal/config"
	"github.com/sdforge/sdforge/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := newTestDB(t)
	s, err := New(context.Background(), db, config.AutoCleanConfig{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestDeriveContextKey_WorkedExamples(t *testing.T) {
	if got := DeriveContextKey("G", "C", "", "U"); got != "channel:C" {
		t.Fatalf("guild+channel: got %q, want channel:C", got)
	}
	if got := DeriveContextKey("", "", "", "U"); got != "dm:U" {
		t.Fatalf("no channel/thread: got %q, want dm:U", got)
	}
	if got := DeriveContextKey("G", "C", "T", "U"); got != "thread:T" {
		t.Fatalf("thread present: got %q, want thread:T", got)
	}
	if got := DeriveContextKey("", "", "T", "U"); got != "thread:T" {
		t.Fatalf("thread present without channel: got %q, want thread:T", got)
	}
}

func TestContextIsolation_ClearingOneLeavesOtherIntact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, "channel:A", "u1", "user", "hello a", ""); err != nil {
		t.Fatalf("append A: %v", err)
	}
	if _, err := s.Append(ctx, "channel:B", "u1", "user", "hello b", ""); err != nil {
		t.Fatalf("append B: %v", err)
	}

	if _, err := s.Clear(ctx, "channel:A"); err != nil {
		t.Fatalf("clear A: %v", err)
	}

	histA, err := s.History(ctx, "channel:A", 0)
	if err != nil {
		t.Fatalf("history A: %v", err)
	}
	if len(histA) != 0 {
		t.Fatalf("expected context A empty after clear, got %d messages", len(histA))
	}

	histB, err := s.History(ctx, "channel:B", 0)
	if err != nil {
		t.Fatalf("history B: %v", err)
	}
	if len(histB) != 1 {
		t.Fatalf("expected context B untouched, got %d messages", len(histB))
	}
}

func TestCheckRate_WorkedExample(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := repo.RecordRateLimitEvent(ctx, s.db, "u1", "chat", now); err != nil {
		t.Fatalf("record t0: %v", err)
	}
	if err := repo.RecordRateLimitEvent(ctx, s.db, "u1", "chat", now.Add(10*time.Second)); err != nil {
		t.Fatalf("record t10: %v", err)
	}

	decisionAt20, err := checkRateAsOf(s, ctx, "u1", "chat", 2, now.Add(20*time.Second))
	if err != nil {
		t.Fatalf("check at t20: %v", err)
	}
	if decisionAt20.Allowed || decisionAt20.SecondsUntilReset != 40 {
		t.Fatalf("at t=20s expected (false, 40), got (%v, %d)", decisionAt20.Allowed, decisionAt20.SecondsUntilReset)
	}

	decisionAt61, err := checkRateAsOf(s, ctx, "u1", "chat", 2, now.Add(61*time.Second))
	if err != nil {
		t.Fatalf("check at t61: %v", err)
	}
	if !decisionAt61.Allowed || decisionAt61.SecondsUntilReset != 0 {
		t.Fatalf("at t=61s expected (true, 0), got (%v, %d)", decisionAt61.Allowed, decisionAt61.SecondsUntilReset)
	}
}

// checkRateAsOf mirrors Store.CheckRate but against an explicit "now" so
// this test can exercise fixed points on the timeline rather than sleeping.
func checkRateAsOf(s *Store, ctx context.Context, userID, actionType string, maxPerMinute int, now time.Time) (RateDecision, error) {
	windowStart := now.Add(-rateWindow)
	count, err := repo.CountRateLimitEventsSince(ctx, s.db, userID, actionType, windowStart)
	if err != nil {
		return RateDecision{}, err
	}
	if count < int64(maxPerMinute) {
		return RateDecision{Allowed: true}, nil
	}
	oldest, err := repo.OldestRateLimitEventSince(ctx, s.db, userID, actionType, windowStart)
	if err != nil {
		return RateDecision{}, err
	}
	if oldest == nil {
		return RateDecision{Allowed: true}, nil
	}
	remaining := int(oldest.Add(rateWindow).Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return RateDecision{Allowed: false, SecondsUntilReset: remaining}, nil
}

func TestRateLimitMonotonicity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const limit = 3
	for i := 0; i < limit; i++ {
		decision, err := s.CheckRate(ctx, "u1", "generate", limit)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("call %d should be allowed (N=%d < M=%d)", i, i, limit)
		}
		if err := s.RecordAction(ctx, "u1", "generate"); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	decision, err := s.CheckRate(ctx, "u1", "generate", limit)
	if err != nil {
		t.Fatalf("check final: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("the (N+1)-th check should be denied once N=%d reaches M=%d", limit, limit)
	}
	if decision.SecondsUntilReset < 0 || decision.SecondsUntilReset > 60 {
		t.Fatalf("seconds_until_reset must be in [0,60], got %d", decision.SecondsUntilReset)
	}
}

func TestLazyTimeoutExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.TimeoutUser(ctx, "u1", 0, "test", "admin1"); err != nil {
		t.Fatalf("timeout user: %v", err)
	}
	// Zero-minute timeout means timeout_until is effectively now; the
	// immediate next check_status must observe it as already elapsed.
	time.Sleep(5 * time.Millisecond)

	status, err := s.CheckStatus(ctx, "u1")
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if status.Status != ModerationActive {
		t.Fatalf("expected lazy expiry to active, got %q", status.Status)
	}
}

func TestPersonalityLock_RefusesSwitchAndKeepsLocked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.LockPersonality(ctx, "u1", "uwu", "admin1"); err != nil {
		t.Fatalf("lock: %v", err)
	}

	if err := s.SetPersonality(ctx, "u1", "sarcastic"); err == nil {
		t.Fatalf("expected set_personality to a different name to fail while locked")
	}

	settings, err := s.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.PersonalityName != "uwu" {
		t.Fatalf("expected personality to remain uwu, got %q", settings.PersonalityName)
	}
}

func TestSeedBuiltinPersonalities_InstallsSixPersonalities(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := SeedBuiltinPersonalities(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	list, err := repo.ListPersonalities(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 6 {
		t.Fatalf("expected 6 builtin personalities, got %d", len(list))
	}
}

func TestAutoClean_IdempotentWithinSameLaunch(t *testing.T) {
	s := newTestStore(t)
	s.autoClean = config.AutoCleanConfig{Enabled: true, Method: "days", Days: 0, RetainDays: 0}
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	if err := repo.RecordRateLimitEvent(ctx, s.db, "u1", "chat", old); err != nil {
		t.Fatalf("seed old event: %v", err)
	}

	firstCutoff := time.Now().UTC()
	n1, err := repo.DeleteMessagesOlderThan(ctx, s.db, firstCutoff)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	n2, err := repo.DeleteMessagesOlderThan(ctx, s.db, firstCutoff)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n2 > n1 {
		t.Fatalf("second sweep deleted more rows (%d) than the first (%d)", n2, n1)
	}
}
