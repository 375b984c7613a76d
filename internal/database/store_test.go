package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	if err := ApplyMigrations(db.DB, "test"); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	return NewStore(db, nil)
}

func newTestUser(t *testing.T, store Store, telegramID int64) *User {
	t.Helper()

	user, err := store.UpsertUser(context.Background(), &User{
		TelegramID: telegramID,
		Username:   "testuser",
		FirstName:  "Анна",
	})
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestUpsertUser(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.UpsertUser(ctx, &User{TelegramID: 100, Username: "anna", FirstName: "Анна"})
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if user.ID == 0 {
		t.Error("UpsertUser() returned user without ID")
	}
	if user.SubscriptionType != SubscriptionFree {
		t.Errorf("new user tier = %q, want %q", user.SubscriptionType, SubscriptionFree)
	}
	if user.AnalysesLimit != 3 {
		t.Errorf("new user analyses_limit = %d, want 3", user.AnalysesLimit)
	}

	// Second upsert with the same telegram_id must refresh, not duplicate.
	again, err := store.UpsertUser(ctx, &User{TelegramID: 100, Username: "anna_new", FirstName: "Анна"})
	if err != nil {
		t.Fatalf("UpsertUser() second call error = %v", err)
	}
	if again.ID != user.ID {
		t.Errorf("second upsert created new row: id %d != %d", again.ID, user.ID)
	}
	if again.Username != "anna_new" {
		t.Errorf("username not refreshed: got %q", again.Username)
	}
}

func TestGetUserByTelegramIDNotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	user, err := store.GetUserByTelegramID(context.Background(), 999999)
	if err != nil {
		t.Fatalf("GetUserByTelegramID() error = %v", err)
	}
	if user != nil {
		t.Errorf("expected nil for missing user, got %+v", user)
	}
}

func TestUpdateUserProfile(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, 100)

	if !user.CanEditProfile(time.Now()) {
		t.Fatal("fresh user must be allowed to edit the profile")
	}

	user.Name = "Анна"
	user.Gender = "женский"
	user.AgeGroup = "25-34"
	user.Bio = "люблю путешествия"
	if err := store.UpdateUserProfile(ctx, user); err != nil {
		t.Fatalf("UpdateUserProfile() error = %v", err)
	}

	got, err := store.GetUserByTelegramID(ctx, 100)
	if err != nil {
		t.Fatalf("GetUserByTelegramID() error = %v", err)
	}
	if got.Name != "Анна" || got.AgeGroup != "25-34" {
		t.Errorf("profile not persisted: %+v", got)
	}
	if !got.LastProfileEdit.Valid {
		t.Fatal("last_profile_edit not stamped")
	}
	if got.CanEditProfile(time.Now()) {
		t.Error("edit window must close right after an edit")
	}
	if !got.CanEditProfile(time.Now().Add(31 * 24 * time.Hour)) {
		t.Error("edit window must reopen after 30 days")
	}
}

func TestSaveTextAnalysisValidation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, 200)

	tests := []struct {
		name     string
		toxicity float64
		urgency  UrgencyLevel
		wantErr  bool
	}{
		{name: "valid mid-range score", toxicity: 7.5, urgency: UrgencyHigh, wantErr: false},
		{name: "score above upper bound", toxicity: 11, urgency: UrgencyHigh, wantErr: true},
		{name: "negative score", toxicity: -0.5, urgency: UrgencyLow, wantErr: true},
		{name: "unknown urgency", toxicity: 5, urgency: UrgencyLevel("EXTREME"), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := store.SaveTextAnalysis(ctx, &TextAnalysis{
				UserID:        user.ID,
				OriginalText:  "ты сам виноват",
				ToxicityScore: tc.toxicity,
				UrgencyLevel:  tc.urgency,
			})
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("SaveTextAnalysis() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("SaveTextAnalysis() unexpected error = %v", err)
			}
		})
	}
}

func TestSaveAndListAnalyses(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, 201)

	for i := 0; i < 3; i++ {
		err := store.SaveTextAnalysis(ctx, &TextAnalysis{
			UserID:        user.ID,
			OriginalText:  "текст для анализа",
			ToxicityScore: float64(i),
			UrgencyLevel:  UrgencyLow,
			RedFlags:      StringList{"обесценивание"},
		})
		if err != nil {
			t.Fatalf("SaveTextAnalysis() error = %v", err)
		}
	}

	analyses, err := store.GetUserAnalyses(ctx, user.ID, 2)
	if err != nil {
		t.Fatalf("GetUserAnalyses() error = %v", err)
	}
	if len(analyses) != 2 {
		t.Fatalf("GetUserAnalyses() returned %d rows, want 2", len(analyses))
	}
	if len(analyses[0].RedFlags) != 1 || analyses[0].RedFlags[0] != "обесценивание" {
		t.Errorf("red flags not round-tripped: %v", analyses[0].RedFlags)
	}
}

func TestSavePartnerProfileValidation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, 202)

	profile := &PartnerProfile{
		UserID:               user.ID,
		PartnerName:          "Игорь",
		QuestionnaireData:    []byte(`{"q1":"a"}`),
		ManipulationRisk:     8.2,
		UrgencyLevel:         UrgencyHigh,
		OverallCompatibility: 0.35,
		BlockScores: BlockScores{
			Narcissism:  8,
			Control:     9,
			Gaslighting: 7,
		},
		IsCompleted: true,
	}
	if err := store.SavePartnerProfile(ctx, profile); err != nil {
		t.Fatalf("SavePartnerProfile() error = %v", err)
	}
	if !profile.IsHighRisk() {
		t.Error("profile with risk 8.2 should be high risk")
	}

	bad := &PartnerProfile{
		UserID:            user.ID,
		QuestionnaireData: []byte(`{}`),
		ManipulationRisk:  12,
		UrgencyLevel:      UrgencyLow,
	}
	if err := store.SavePartnerProfile(ctx, bad); !errors.Is(err, ErrValidation) {
		t.Errorf("SavePartnerProfile() with risk 12 error = %v, want ErrValidation", err)
	}

	got, err := store.GetPartnerProfile(ctx, profile.ID)
	if err != nil {
		t.Fatalf("GetPartnerProfile() error = %v", err)
	}
	if got.Control != 9 {
		t.Errorf("control score = %v, want 9", got.Control)
	}
}

func TestQuotaCounters(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, 203)

	for i := 0; i < 3; i++ {
		if err := store.IncrementAnalysisCount(ctx, user.ID); err != nil {
			t.Fatalf("IncrementAnalysisCount() error = %v", err)
		}
	}

	got, err := store.GetUserByTelegramID(ctx, 203)
	if err != nil {
		t.Fatalf("GetUserByTelegramID() error = %v", err)
	}
	if got.AnalysesCount != 3 || got.TotalAnalyses != 3 {
		t.Errorf("counters = (%d, %d), want (3, 3)", got.AnalysesCount, got.TotalAnalyses)
	}
	if got.CanAnalyze() {
		t.Error("free user at limit should not be able to analyze")
	}

	affected, err := store.ResetFreeQuotas(ctx)
	if err != nil {
		t.Fatalf("ResetFreeQuotas() error = %v", err)
	}
	if affected != 1 {
		t.Errorf("ResetFreeQuotas() affected = %d, want 1", affected)
	}

	got, _ = store.GetUserByTelegramID(ctx, 203)
	if got.AnalysesCount != 0 {
		t.Errorf("analyses_count after reset = %d, want 0", got.AnalysesCount)
	}
	if got.TotalAnalyses != 3 {
		t.Errorf("total_analyses must survive reset, got %d", got.TotalAnalyses)
	}
}

func TestActivateSubscription(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, 204)

	now := time.Now().UTC()
	sub := &Subscription{
		UserID:           user.ID,
		SubscriptionType: SubscriptionPremium,
		Price:            299,
		StartDate:        now,
		EndDate:          now.AddDate(0, 1, 0),
		DurationDays:     30,
	}
	if err := store.SaveSubscription(ctx, sub); err != nil {
		t.Fatalf("SaveSubscription() error = %v", err)
	}
	if sub.PaymentStatus != PaymentPending {
		t.Errorf("new subscription status = %q, want PENDING", sub.PaymentStatus)
	}

	if err := store.ActivateSubscription(ctx, sub.ID, "pay_123"); err != nil {
		t.Fatalf("ActivateSubscription() error = %v", err)
	}

	got, err := store.GetActiveSubscription(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetActiveSubscription() error = %v", err)
	}
	if got == nil || got.PaymentStatus != PaymentCompleted {
		t.Fatalf("subscription not activated: %+v", got)
	}

	u, _ := store.GetUserByTelegramID(ctx, 204)
	if u.SubscriptionType != SubscriptionPremium {
		t.Errorf("user tier after activation = %q, want PREMIUM", u.SubscriptionType)
	}
}

func TestExpireDueSubscriptions(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, 205)

	now := time.Now().UTC()
	expired := &Subscription{
		UserID:           user.ID,
		SubscriptionType: SubscriptionVIP,
		Price:            599,
		StartDate:        now.AddDate(0, -2, 0),
		EndDate:          now.AddDate(0, -1, 0),
		DurationDays:     30,
	}
	if err := store.SaveSubscription(ctx, expired); err != nil {
		t.Fatalf("SaveSubscription() error = %v", err)
	}
	if err := store.ActivateSubscription(ctx, expired.ID, "pay_old"); err != nil {
		t.Fatalf("ActivateSubscription() error = %v", err)
	}

	count, err := store.ExpireDueSubscriptions(ctx, now)
	if err != nil {
		t.Fatalf("ExpireDueSubscriptions() error = %v", err)
	}
	if count != 1 {
		t.Errorf("ExpireDueSubscriptions() = %d, want 1", count)
	}

	u, _ := store.GetUserByTelegramID(ctx, 205)
	if u.SubscriptionType != SubscriptionFree {
		t.Errorf("user tier after sweep = %q, want FREE", u.SubscriptionType)
	}

	active, err := store.GetActiveSubscription(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetActiveSubscription() error = %v", err)
	}
	if active != nil {
		t.Errorf("expected no active subscription, got %+v", active)
	}

	// The sweep is idempotent.
	count, err = store.ExpireDueSubscriptions(ctx, now)
	if err != nil {
		t.Fatalf("second ExpireDueSubscriptions() error = %v", err)
	}
	if count != 0 {
		t.Errorf("second sweep = %d, want 0", count)
	}
}

func TestCountActivitiesSince(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, 206)

	for i := 0; i < 2; i++ {
		if err := store.LogActivity(ctx, user.ID, ActivityTextAnalyzed, ""); err != nil {
			t.Fatalf("LogActivity() error = %v", err)
		}
	}
	if err := store.LogActivity(ctx, user.ID, ActivityProfileCreated, ""); err != nil {
		t.Fatalf("LogActivity() error = %v", err)
	}

	since := time.Now().UTC().Add(-time.Hour)
	count, err := store.CountActivitiesSince(ctx, user.ID, ActivityTextAnalyzed, since)
	if err != nil {
		t.Fatalf("CountActivitiesSince() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountActivitiesSince() = %d, want 2", count)
	}
}

func TestAdvanceAchievement(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, 207)

	unlocked, err := store.AdvanceAchievement(ctx, user.ID, "first_analysis", "Первый анализ", 1)
	if err != nil {
		t.Fatalf("AdvanceAchievement() error = %v", err)
	}
	if !unlocked {
		t.Error("achievement with target 1 should unlock on first advance")
	}

	// A second advance past the target must not fire the unlock again.
	unlocked, err = store.AdvanceAchievement(ctx, user.ID, "first_analysis", "Первый анализ", 1)
	if err != nil {
		t.Fatalf("AdvanceAchievement() second call error = %v", err)
	}
	if unlocked {
		t.Error("already-unlocked achievement reported as newly unlocked")
	}
}

func TestAnalyticsOverview(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	user := newTestUser(t, store, 208)

	err := store.SaveTextAnalysis(ctx, &TextAnalysis{
		UserID:        user.ID,
		OriginalText:  "текст",
		ToxicityScore: 2,
		UrgencyLevel:  UrgencyLow,
	})
	if err != nil {
		t.Fatalf("SaveTextAnalysis() error = %v", err)
	}

	ov, err := store.AnalyticsOverview(ctx)
	if err != nil {
		t.Fatalf("AnalyticsOverview() error = %v", err)
	}
	if ov.TotalUsers != 1 {
		t.Errorf("total_users = %d, want 1", ov.TotalUsers)
	}
	if ov.TotalAnalyses != 1 {
		t.Errorf("total_analyses = %d, want 1", ov.TotalAnalyses)
	}
	if ov.SubscriptionDistribution["FREE"] != 1 {
		t.Errorf("distribution[FREE] = %d, want 1", ov.SubscriptionDistribution["FREE"])
	}
}
