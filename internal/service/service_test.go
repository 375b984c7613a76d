package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/avdotin/psychodetective/internal/ai"
	"github.com/avdotin/psychodetective/internal/cache"
	"github.com/avdotin/psychodetective/internal/database"
	"github.com/avdotin/psychodetective/internal/questionnaire"
)

type fakeAI struct {
	analysisErr error
}

func (f *fakeAI) AnalyzeText(ctx context.Context, text string) (*ai.TextAnalysisResult, error) {
	if f.analysisErr != nil {
		return nil, f.analysisErr
	}
	return &ai.TextAnalysisResult{
		ToxicityScore:    7.5,
		SentimentScore:   -0.6,
		UrgencyLevel:     "HIGH",
		RedFlags:         []string{"обесценивание"},
		PatternsDetected: []string{"газлайтинг"},
		Recommendation:   "Обозначьте границы.",
		ConfidenceScore:  0.9,
		Narrative:        "В этом сообщении видны признаки давления.",
		ModelUsed:        "fake-model",
	}, nil
}

func (f *fakeAI) ProfilePartner(ctx context.Context, req *ai.ProfileRequest) (*ai.ProfileResult, error) {
	return &ai.ProfileResult{
		PersonalityType:      "скрытый нарцисс",
		ManipulationRisk:     8.2,
		UrgencyLevel:         "HIGH",
		Narcissism:           8,
		Control:              9,
		Gaslighting:          7,
		OverallCompatibility: 0.3,
		RedFlags:             []string{"тотальный контроль"},
		Narrative:            "Портрет партнёра.",
		ModelUsed:            "fake-model",
	}, nil
}

func (f *fakeAI) AssessCompatibility(ctx context.Context, req *ai.CompatibilityRequest) (*ai.CompatibilityResult, error) {
	return &ai.CompatibilityResult{
		OverallScore:       0.65,
		CommunicationScore: 0.7,
		ValuesScore:        0.6,
		LifestyleScore:     0.5,
		EmotionalScore:     0.8,
		Strengths:          []string{"эмоциональная близость"},
		Challenges:         []string{"разные ценности"},
		Advice:             "Обсуждайте планы.",
		ModelUsed:          "fake-model",
	}, nil
}

type env struct {
	store   database.Store
	limiter *cache.Limiter
	redis   *miniredis.Miniredis
	user    *database.User
}

// reloadUser re-reads the user row, the way the auth middleware does on
// every update.
func (e *env) reloadUser(t *testing.T) *database.User {
	t.Helper()
	u, err := e.store.GetUserByTelegramID(context.Background(), 42)
	if err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	return u
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)
	if err := database.ApplyMigrations(db.DB, "test"); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	store := database.NewStore(db, nil)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	limiter := cache.NewLimiter(cache.NewWithClient(rdb, nil), store, nil)

	user, err := store.UpsertUser(context.Background(), &database.User{TelegramID: 42, FirstName: "Анна"})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return &env{store: store, limiter: limiter, redis: mr, user: user}
}

func completedProfileSession(t *testing.T, kind questionnaire.Kind) *questionnaire.Session {
	t.Helper()

	m := questionnaire.NewManager()
	s := m.Start(42, kind)
	s.SetPartnerName("Игорь")
	total := len(questionnaire.QuestionsFor(kind))
	passes := 1
	if kind == questionnaire.KindCompatibility {
		passes = 2
	}
	for p := 0; p < passes; p++ {
		for i := 0; i < total; i++ {
			s.Answer("ответ")
		}
	}
	if s.Stage != questionnaire.StageDone {
		t.Fatalf("helper produced incomplete session, stage=%v", s.Stage)
	}
	return s
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewAnalysisService(e.store, &fakeAI{}, e.limiter, 3, nil)
	ctx := context.Background()

	analysis, err := svc.Analyze(ctx, e.user, "ты сам виноват во всём")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if analysis.ID == 0 {
		t.Error("analysis was not persisted")
	}
	if analysis.ToxicityScore != 7.5 || analysis.UrgencyLevel != database.UrgencyHigh {
		t.Errorf("unexpected scores: %+v", analysis)
	}
	if analysis.TextHash == "" {
		t.Error("text hash is empty")
	}
	if analysis.AnalysisText == "" {
		t.Error("narrative is empty")
	}

	u, _ := e.store.GetUserByTelegramID(ctx, 42)
	if u.AnalysesCount != 1 || u.TotalAnalyses != 1 {
		t.Errorf("counters = (%d, %d), want (1, 1)", u.AnalysesCount, u.TotalAnalyses)
	}

	history, err := svc.History(ctx, e.user.ID, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history length = %d, want 1", len(history))
	}
}

func TestAnalyzeQuotaExceeded(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewAnalysisService(e.store, &fakeAI{}, e.limiter, 3, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Analyze(ctx, e.user, "текст"); err != nil {
			t.Fatalf("analysis %d error = %v", i+1, err)
		}
	}

	_, err := svc.Analyze(ctx, e.user, "текст")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("4th analysis error = %v, want ErrQuotaExceeded", err)
	}
}

func TestAnalyzeMonthlyCapSurvivesCounterReset(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewAnalysisService(e.store, &fakeAI{}, e.limiter, 3, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Analyze(ctx, e.reloadUser(t), "текст"); err != nil {
			t.Fatalf("analysis %d error = %v", i+1, err)
		}
	}

	// The daily counters reset, the monthly cap must not.
	e.redis.FlushAll()

	user := e.reloadUser(t)
	_, err := svc.Analyze(ctx, user, "текст")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("analysis past monthly cap error = %v, want ErrQuotaExceeded", err)
	}
	if errors.Is(err, ErrRateLimited) {
		t.Error("denial came from the daily limiter, want the monthly cap")
	}
	if u := e.reloadUser(t); u.AnalysesCount != 3 {
		t.Errorf("analyses_count = %d, want 3", u.AnalysesCount)
	}
}

func TestAnalyzeRejectsEmptyText(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewAnalysisService(e.store, &fakeAI{}, e.limiter, 3, nil)

	_, err := svc.Analyze(context.Background(), e.user, "   ")
	if !errors.Is(err, database.ErrValidation) {
		t.Errorf("Analyze() with blank text error = %v, want ErrValidation", err)
	}
}

func TestAnalyzeAIFailureDoesNotConsumeDBQuota(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewAnalysisService(e.store, &fakeAI{analysisErr: errors.New("model down")}, e.limiter, 3, nil)
	ctx := context.Background()

	if _, err := svc.Analyze(ctx, e.user, "текст"); err == nil {
		t.Fatal("expected error when AI fails")
	}

	u, _ := e.store.GetUserByTelegramID(ctx, 42)
	if u.AnalysesCount != 0 {
		t.Errorf("analyses_count after failed AI call = %d, want 0", u.AnalysesCount)
	}
}

func TestAnalyzeAIFailureReturnsDailyQuota(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	broken := NewAnalysisService(e.store, &fakeAI{analysisErr: errors.New("model down")}, e.limiter, 3, nil)
	working := NewAnalysisService(e.store, &fakeAI{}, e.limiter, 3, nil)
	ctx := context.Background()

	// Burn through the whole daily allowance with failing calls.
	for i := 0; i < 3; i++ {
		if _, err := broken.Analyze(ctx, e.user, "текст"); err == nil {
			t.Fatal("expected error when AI fails")
		}
	}

	if _, err := working.Analyze(ctx, e.reloadUser(t), "текст"); err != nil {
		t.Fatalf("analysis after failed attempts error = %v", err)
	}
}

func TestProfileCreate(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewProfileService(e.store, &fakeAI{}, e.limiter, 1, nil)
	ctx := context.Background()

	session := completedProfileSession(t, questionnaire.KindProfile)
	profile, err := svc.Create(ctx, e.user, session)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if profile.ID == 0 {
		t.Error("profile was not persisted")
	}
	if profile.Control != 9 {
		t.Errorf("control score = %v, want 9", profile.Control)
	}
	if !profile.IsHighRisk() {
		t.Error("profile with risk 8.2 should be high risk")
	}

	got, err := svc.Get(ctx, e.user.ID, profile.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.PartnerName != "Игорь" {
		t.Errorf("partner name = %q", got.PartnerName)
	}

	// Another user must not see this profile.
	if _, err := svc.Get(ctx, e.user.ID+1, profile.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user Get() error = %v, want ErrNotFound", err)
	}
}

func TestProfileCreateRejectsIncompleteSession(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewProfileService(e.store, &fakeAI{}, e.limiter, 1, nil)

	m := questionnaire.NewManager()
	session := m.Start(42, questionnaire.KindProfile)
	session.SetPartnerName("Игорь")

	_, err := svc.Create(context.Background(), e.user, session)
	if !errors.Is(err, database.ErrValidation) {
		t.Errorf("Create() with incomplete session error = %v, want ErrValidation", err)
	}
}

func TestProfileQuotaForFreeUser(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewProfileService(e.store, &fakeAI{}, e.limiter, 1, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, e.user, completedProfileSession(t, questionnaire.KindProfile)); err != nil {
		t.Fatalf("first profile error = %v", err)
	}

	// Free tier allows one profile per 30 days.
	_, err := svc.Create(ctx, e.user, completedProfileSession(t, questionnaire.KindProfile))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("second profile error = %v, want ErrQuotaExceeded", err)
	}

	// The cap rests on persisted profiles, so a counter reset does not
	// lift it.
	e.redis.FlushAll()
	_, err = svc.Create(ctx, e.user, completedProfileSession(t, questionnaire.KindProfile))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("profile after counter reset error = %v, want ErrQuotaExceeded", err)
	}
}

func TestCompatibilityRun(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewCompatibilityService(e.store, &fakeAI{}, e.limiter, nil)
	ctx := context.Background()

	session := completedProfileSession(t, questionnaire.KindCompatibility)
	test, err := svc.Run(ctx, e.user, session)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if test.ID == 0 {
		t.Error("test was not persisted")
	}
	if test.OverallScore != 0.65 {
		t.Errorf("overall score = %v, want 0.65", test.OverallScore)
	}

	// A profile session must not pass as a compatibility test.
	_, err = svc.Run(ctx, e.user, completedProfileSession(t, questionnaire.KindProfile))
	if !errors.Is(err, database.ErrValidation) {
		t.Errorf("Run() with profile session error = %v, want ErrValidation", err)
	}
}

func TestPriceFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tier    database.SubscriptionType
		months  int
		want    float64
		wantErr bool
	}{
		{database.SubscriptionPremium, 1, 299, false},
		{database.SubscriptionPremium, 3, 799, false},
		{database.SubscriptionPremium, 12, 2990, false},
		{database.SubscriptionVIP, 1, 599, false},
		{database.SubscriptionVIP, 3, 1599, false},
		{database.SubscriptionVIP, 12, 5990, false},
		{database.SubscriptionPremium, 6, 0, true},
		{database.SubscriptionFree, 1, 0, true},
	}

	for _, tc := range tests {
		got, err := PriceFor(tc.tier, tc.months)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownPlan) {
				t.Errorf("PriceFor(%s, %d) error = %v, want ErrUnknownPlan", tc.tier, tc.months, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("PriceFor(%s, %d) = %v, %v; want %v", tc.tier, tc.months, got, err, tc.want)
		}
	}
}

func TestPurchaseAndConfirm(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewSubscriptionService(e.store, nil)
	ctx := context.Background()

	sub, err := svc.Purchase(ctx, e.user, database.SubscriptionVIP, 3)
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if sub.Price != 1599 {
		t.Errorf("price = %v, want 1599", sub.Price)
	}
	if sub.IsActive {
		t.Error("subscription must not be active before payment")
	}

	active, _ := svc.Active(ctx, e.user.ID)
	if active != nil {
		t.Error("pending subscription reported as active")
	}

	if err := svc.ConfirmPayment(ctx, e.user.ID, sub.ID, "pay_777"); err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	active, err = svc.Active(ctx, e.user.ID)
	if err != nil || active == nil {
		t.Fatalf("Active() = %v, %v", active, err)
	}
	u, _ := e.store.GetUserByTelegramID(ctx, 42)
	if u.SubscriptionType != database.SubscriptionVIP {
		t.Errorf("user tier = %q, want VIP", u.SubscriptionType)
	}
}

func TestExpireDueThroughService(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewSubscriptionService(e.store, nil)
	ctx := context.Background()

	sub, err := svc.Purchase(ctx, e.user, database.SubscriptionPremium, 1)
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if err := svc.ConfirmPayment(ctx, e.user.ID, sub.ID, "pay_1"); err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	count, err := svc.ExpireDue(ctx, time.Now().UTC().AddDate(0, 2, 0))
	if err != nil {
		t.Fatalf("ExpireDue() error = %v", err)
	}
	if count != 1 {
		t.Errorf("ExpireDue() = %d, want 1", count)
	}

	u, _ := e.store.GetUserByTelegramID(ctx, 42)
	if u.SubscriptionType != database.SubscriptionFree {
		t.Errorf("user tier after sweep = %q, want FREE", u.SubscriptionType)
	}
}

func TestExpireDueKeepsNewerSubscription(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewSubscriptionService(e.store, nil)
	ctx := context.Background()

	first, err := svc.Purchase(ctx, e.user, database.SubscriptionPremium, 1)
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if err := svc.ConfirmPayment(ctx, e.user.ID, first.ID, "pay_1"); err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	second, err := svc.Purchase(ctx, e.user, database.SubscriptionVIP, 12)
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if err := svc.ConfirmPayment(ctx, e.user.ID, second.ID, "pay_2"); err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	// Sweep after the first end date but before the second.
	count, err := svc.ExpireDue(ctx, time.Now().UTC().AddDate(0, 2, 0))
	if err != nil {
		t.Fatalf("ExpireDue() error = %v", err)
	}
	if count != 1 {
		t.Errorf("ExpireDue() = %d, want 1", count)
	}

	u, _ := e.store.GetUserByTelegramID(ctx, 42)
	if u.SubscriptionType != database.SubscriptionVIP {
		t.Errorf("user tier after sweep = %q, want VIP", u.SubscriptionType)
	}
}

func TestConfirmPaymentRejectsForeignSubscription(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewSubscriptionService(e.store, nil)
	ctx := context.Background()

	sub, err := svc.Purchase(ctx, e.user, database.SubscriptionPremium, 1)
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}

	other, err := e.store.UpsertUser(ctx, &database.User{TelegramID: 77, FirstName: "Борис"})
	if err != nil {
		t.Fatalf("failed to create second user: %v", err)
	}

	if err := svc.ConfirmPayment(ctx, other.ID, sub.ID, "pay_x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign ConfirmPayment() error = %v, want ErrNotFound", err)
	}
	if active, _ := svc.Active(ctx, e.user.ID); active != nil {
		t.Error("subscription activated by a foreign confirmation")
	}
}

func TestContentQueue(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	svc := NewContentService(e.store, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	err := svc.Enqueue(ctx, &database.DailyContent{
		ContentType: database.ContentTip,
		Title:       "Совет дня",
		Body:        "Доверяйте своим ощущениям.",
		PublishAt:   now.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	content, recipients, err := svc.NextDue(ctx, now)
	if err != nil {
		t.Fatalf("NextDue() error = %v", err)
	}
	if content == nil {
		t.Fatal("NextDue() returned no content")
	}
	if len(recipients) != 1 {
		t.Errorf("recipients = %d, want 1", len(recipients))
	}

	svc.TrackView(ctx, e.user.ID, content.ID)
	if err := svc.Like(ctx, e.user.ID, content.ID); err != nil {
		t.Fatalf("Like() error = %v", err)
	}
	views, err := e.store.CountActivitiesSince(ctx, e.user.ID, database.ActivityContentViewed, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountActivitiesSince() error = %v", err)
	}
	if views != 2 {
		t.Errorf("content activity entries = %d, want 2", views)
	}

	if err := svc.MarkPublished(ctx, content.ID); err != nil {
		t.Fatalf("MarkPublished() error = %v", err)
	}
	content, _, err = svc.NextDue(ctx, now)
	if err != nil {
		t.Fatalf("second NextDue() error = %v", err)
	}
	if content != nil {
		t.Errorf("published content returned again: %+v", content)
	}
}
