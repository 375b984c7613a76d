package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations. Methods accept
// context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// UpsertUser inserts or refreshes a user row keyed by Telegram ID and
	// returns the current row.
	UpsertUser(ctx context.Context, user *User) (*User, error)

	// GetUserByTelegramID retrieves a user by Telegram ID. Returns nil, nil
	// if not found.
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error)

	// UpdateUserProfile persists the editable profile fields and stamps
	// last_profile_edit.
	UpdateUserProfile(ctx context.Context, user *User) error

	// IncrementAnalysisCount bumps the usage counters after a successful
	// analysis.
	IncrementAnalysisCount(ctx context.Context, userID int64) error

	// ResetFreeQuotas zeroes analyses_count for all non-premium users and
	// returns the number of affected rows.
	ResetFreeQuotas(ctx context.Context) (int64, error)

	// SetUserSubscriptionType changes the user's tier.
	SetUserSubscriptionType(ctx context.Context, userID int64, tier SubscriptionType) error

	// ListUsersWithDailyTips returns active users who opted into daily tips.
	ListUsersWithDailyTips(ctx context.Context) ([]User, error)

	// SaveTextAnalysis validates and inserts a text analysis result.
	SaveTextAnalysis(ctx context.Context, analysis *TextAnalysis) error

	// GetUserAnalyses retrieves the most recent analyses for a user.
	GetUserAnalyses(ctx context.Context, userID int64, limit int) ([]TextAnalysis, error)

	// SavePartnerProfile validates and inserts a partner profile.
	SavePartnerProfile(ctx context.Context, profile *PartnerProfile) error

	// GetPartnerProfile retrieves a profile by ID. Returns nil, nil if not
	// found.
	GetPartnerProfile(ctx context.Context, id int64) (*PartnerProfile, error)

	// GetUserPartnerProfiles retrieves the most recent profiles for a user.
	GetUserPartnerProfiles(ctx context.Context, userID int64, limit int) ([]PartnerProfile, error)

	// CountPartnerProfilesSince counts profiles created by a user after the
	// given time.
	CountPartnerProfilesSince(ctx context.Context, userID int64, since time.Time) (int, error)

	// SaveCompatibilityTest inserts a compatibility test result.
	SaveCompatibilityTest(ctx context.Context, test *CompatibilityTest) error

	// SaveSubscription validates and inserts a subscription.
	SaveSubscription(ctx context.Context, sub *Subscription) error

	// GetSubscription retrieves a subscription by ID. Returns nil, nil if
	// not found.
	GetSubscription(ctx context.Context, id int64) (*Subscription, error)

	// GetActiveSubscription retrieves the user's active subscription.
	// Returns nil, nil if none.
	GetActiveSubscription(ctx context.Context, userID int64) (*Subscription, error)

	// UpdateSubscription persists lifecycle fields of an existing
	// subscription.
	UpdateSubscription(ctx context.Context, sub *Subscription) error

	// ActivateSubscription marks the subscription paid and active and
	// upgrades the owning user's tier, in one transaction.
	ActivateSubscription(ctx context.Context, subscriptionID int64, paymentID string) error

	// ExpireDueSubscriptions deactivates active subscriptions whose end date
	// has passed and downgrades the owning users to FREE, in one
	// transaction. Returns the number of expired subscriptions.
	ExpireDueSubscriptions(ctx context.Context, now time.Time) (int, error)

	// SaveDailyContent inserts an editorial content item.
	SaveDailyContent(ctx context.Context, content *DailyContent) error

	// NextUnpublishedContent returns the oldest content item due for
	// publication. Returns nil, nil if none.
	NextUnpublishedContent(ctx context.Context, now time.Time) (*DailyContent, error)

	// MarkContentPublished flags a content item as published.
	MarkContentPublished(ctx context.Context, id int64) error

	// IncrementContentViews bumps the view counter of a content item.
	IncrementContentViews(ctx context.Context, id int64) error

	// IncrementContentLikes bumps the like counter of a content item.
	IncrementContentLikes(ctx context.Context, id int64) error

	// LogActivity appends an entry to the user activity log.
	LogActivity(ctx context.Context, userID int64, activityType, details string) error

	// CountActivitiesSince counts activity rows of the given type for a user
	// after the given time. Used as the rate-limit fallback when the cache
	// is unavailable.
	CountActivitiesSince(ctx context.Context, userID int64, activityType string, since time.Time) (int, error)

	// AdvanceAchievement increments achievement progress, creating the row
	// on first use, and reports whether the achievement just unlocked.
	AdvanceAchievement(ctx context.Context, userID int64, code, name string, target int) (bool, error)

	// AnalyticsOverview aggregates headline counters for the analytics API.
	AnalyticsOverview(ctx context.Context) (*Overview, error)

	// NewUsersByDay returns daily new-user counts since the given time.
	NewUsersByDay(ctx context.Context, since time.Time) ([]DayCount, error)

	// ActiveUsersByDay returns daily distinct active-user counts since the
	// given time.
	ActiveUsersByDay(ctx context.Context, since time.Time) ([]DayCount, error)

	// ActivityDistribution returns activity counts grouped by type since the
	// given time.
	ActivityDistribution(ctx context.Context, since time.Time) (map[string]int, error)

	// UsageByDay returns daily counts of analyses and profiles since the
	// given time.
	UsageByDay(ctx context.Context, since time.Time) ([]UsageDay, error)

	// RevenueStats aggregates completed subscription payments since the
	// given time.
	RevenueStats(ctx context.Context, since time.Time) (*RevenueStats, error)

	// RetentionStats computes returning-user counts over the standard
	// windows.
	RetentionStats(ctx context.Context, now time.Time) (*RetentionStats, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunSQLMaintenance performs database maintenance tasks.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	for _, stmt := range []string{"VACUUM;", "ANALYZE;"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("maintenance statement %q failed: %w", stmt, err)
		}
	}
	s.logger.InfoContext(ctx, "SQL maintenance completed")
	return nil
}

func (s *sqlxStore) UpsertUser(ctx context.Context, user *User) (*User, error) {
	if user == nil {
		return nil, fmt.Errorf("cannot upsert nil user")
	}
	if user.TelegramID == 0 {
		return nil, fmt.Errorf("user must have a non-zero telegram_id")
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.SubscriptionType == "" {
		user.SubscriptionType = SubscriptionFree
	}
	if user.LanguageCode == "" {
		user.LanguageCode = "ru"
	}
	if user.AnalysesLimit == 0 {
		user.AnalysesLimit = 3
	}
	user.IsActive = true
	user.LastActivity = sql.NullTime{Time: now, Valid: true}

	query := `
        INSERT INTO users (
            created_at, updated_at, telegram_id, username, first_name, last_name,
            language_code, name, gender, age_group, bio, subscription_type,
            analyses_count, analyses_limit, total_analyses, last_activity,
            is_active, is_blocked, is_admin, notifications_enabled, daily_tips_enabled
        ) VALUES (
            :created_at, :updated_at, :telegram_id, :username, :first_name, :last_name,
            :language_code, :name, :gender, :age_group, :bio, :subscription_type,
            :analyses_count, :analyses_limit, :total_analyses, :last_activity,
            :is_active, :is_blocked, :is_admin, :notifications_enabled, :daily_tips_enabled
        )
        ON CONFLICT (telegram_id) DO UPDATE SET
            updated_at = excluded.updated_at,
            username = excluded.username,
            first_name = excluded.first_name,
            last_name = excluded.last_name,
            language_code = excluded.language_code,
            last_activity = excluded.last_activity;
    `
	if _, err := s.db.NamedExecContext(ctx, query, user); err != nil {
		s.logger.ErrorContext(ctx, "Error upserting user", "telegram_id", user.TelegramID, "error", err)
		return nil, fmt.Errorf("failed to upsert user %d: %w", user.TelegramID, err)
	}

	return s.GetUserByTelegramID(ctx, user.TelegramID)
}

func (s *sqlxStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, `SELECT * FROM users WHERE telegram_id = ?;`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting user", "telegram_id", telegramID, "error", err)
		return nil, fmt.Errorf("failed to get user %d: %w", telegramID, err)
	}
	return &user, nil
}

func (s *sqlxStore) UpdateUserProfile(ctx context.Context, user *User) error {
	if user == nil || user.ID == 0 {
		return fmt.Errorf("cannot update profile of unsaved user")
	}
	now := time.Now().UTC()
	user.UpdatedAt = now
	user.LastProfileEdit = sql.NullTime{Time: now, Valid: true}

	query := `
        UPDATE users SET
            updated_at = :updated_at,
            name = :name,
            gender = :gender,
            age_group = :age_group,
            bio = :bio,
            notifications_enabled = :notifications_enabled,
            daily_tips_enabled = :daily_tips_enabled,
            last_profile_edit = :last_profile_edit
        WHERE id = :id;
    `
	if _, err := s.db.NamedExecContext(ctx, query, user); err != nil {
		s.logger.ErrorContext(ctx, "Error updating user profile", "user_id", user.ID, "error", err)
		return fmt.Errorf("failed to update user profile %d: %w", user.ID, err)
	}
	return nil
}

func (s *sqlxStore) IncrementAnalysisCount(ctx context.Context, userID int64) error {
	query := `
        UPDATE users SET
            analyses_count = analyses_count + 1,
            total_analyses = total_analyses + 1,
            last_analysis_date = ?,
            updated_at = ?
        WHERE id = ?;
    `
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, query, now, now, userID); err != nil {
		return fmt.Errorf("failed to increment analysis count for user %d: %w", userID, err)
	}
	return nil
}

func (s *sqlxStore) ResetFreeQuotas(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET analyses_count = 0, updated_at = ? WHERE subscription_type = ?;`,
		time.Now().UTC(), SubscriptionFree)
	if err != nil {
		return 0, fmt.Errorf("failed to reset free quotas: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func (s *sqlxStore) SetUserSubscriptionType(ctx context.Context, userID int64, tier SubscriptionType) error {
	limit := 3
	if tier.IsPremium() {
		limit = 9
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET subscription_type = ?, analyses_limit = ?, updated_at = ? WHERE id = ?;`,
		tier, limit, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to set subscription type for user %d: %w", userID, err)
	}
	return nil
}

func (s *sqlxStore) ListUsersWithDailyTips(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.SelectContext(ctx, &users,
		`SELECT * FROM users WHERE is_active = 1 AND is_blocked = 0 AND daily_tips_enabled = 1;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily tips users: %w", err)
	}
	return users, nil
}

func (s *sqlxStore) SaveTextAnalysis(ctx context.Context, analysis *TextAnalysis) error {
	if analysis == nil {
		return fmt.Errorf("cannot save nil analysis")
	}
	if err := analysis.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	analysis.CreatedAt = now
	analysis.UpdatedAt = now

	query := `
        INSERT INTO text_analyses (
            created_at, updated_at, user_id, original_text, text_hash,
            toxicity_score, urgency_level, red_flags, patterns_detected,
            analysis_text, recommendation, confidence_score, sentiment_score,
            ai_model_used, processing_time
        ) VALUES (
            :created_at, :updated_at, :user_id, :original_text, :text_hash,
            :toxicity_score, :urgency_level, :red_flags, :patterns_detected,
            :analysis_text, :recommendation, :confidence_score, :sentiment_score,
            :ai_model_used, :processing_time
        );
    `
	result, err := s.db.NamedExecContext(ctx, query, analysis)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving text analysis", "user_id", analysis.UserID, "error", err)
		return fmt.Errorf("failed to save text analysis for user %d: %w", analysis.UserID, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		analysis.ID = id
	}

	s.logger.DebugContext(ctx, "Text analysis saved", "user_id", analysis.UserID, "analysis_id", analysis.ID)
	return nil
}

func (s *sqlxStore) GetUserAnalyses(ctx context.Context, userID int64, limit int) ([]TextAnalysis, error) {
	limit = capLimit(limit)
	var analyses []TextAnalysis
	err := s.db.SelectContext(ctx, &analyses,
		`SELECT * FROM text_analyses WHERE user_id = ? ORDER BY created_at DESC LIMIT ?;`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get analyses for user %d: %w", userID, err)
	}
	return analyses, nil
}

func (s *sqlxStore) SavePartnerProfile(ctx context.Context, profile *PartnerProfile) error {
	if profile == nil {
		return fmt.Errorf("cannot save nil profile")
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	query := `
        INSERT INTO partner_profiles (
            created_at, updated_at, user_id, partner_name, partner_description,
            questionnaire_answers, personality_type, manipulation_risk, urgency_level,
            red_flags, positive_traits, warning_signs, psychological_profile,
            relationship_advice, communication_tips, overall_compatibility,
            narcissism_score, control_score, gaslighting_score, emotion_score,
            intimacy_score, social_score, machiavellianism_score, psychopathy_score,
            confidence_score, ai_model_used, processing_time, is_completed
        ) VALUES (
            :created_at, :updated_at, :user_id, :partner_name, :partner_description,
            :questionnaire_answers, :personality_type, :manipulation_risk, :urgency_level,
            :red_flags, :positive_traits, :warning_signs, :psychological_profile,
            :relationship_advice, :communication_tips, :overall_compatibility,
            :narcissism_score, :control_score, :gaslighting_score, :emotion_score,
            :intimacy_score, :social_score, :machiavellianism_score, :psychopathy_score,
            :confidence_score, :ai_model_used, :processing_time, :is_completed
        );
    `
	result, err := s.db.NamedExecContext(ctx, query, profile)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving partner profile", "user_id", profile.UserID, "error", err)
		return fmt.Errorf("failed to save partner profile for user %d: %w", profile.UserID, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		profile.ID = id
	}

	s.logger.DebugContext(ctx, "Partner profile saved",
		"user_id", profile.UserID, "profile_id", profile.ID, "risk", profile.ManipulationRisk)
	return nil
}

func (s *sqlxStore) GetPartnerProfile(ctx context.Context, id int64) (*PartnerProfile, error) {
	var profile PartnerProfile
	err := s.db.GetContext(ctx, &profile, `SELECT * FROM partner_profiles WHERE id = ?;`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get partner profile %d: %w", id, err)
	}
	return &profile, nil
}

func (s *sqlxStore) GetUserPartnerProfiles(ctx context.Context, userID int64, limit int) ([]PartnerProfile, error) {
	limit = capLimit(limit)
	var profiles []PartnerProfile
	err := s.db.SelectContext(ctx, &profiles,
		`SELECT * FROM partner_profiles WHERE user_id = ? ORDER BY created_at DESC LIMIT ?;`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner profiles for user %d: %w", userID, err)
	}
	return profiles, nil
}

func (s *sqlxStore) CountPartnerProfilesSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM partner_profiles WHERE user_id = ? AND created_at >= ?;`,
		userID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count partner profiles for user %d: %w", userID, err)
	}
	return count, nil
}

func (s *sqlxStore) SaveCompatibilityTest(ctx context.Context, test *CompatibilityTest) error {
	if test == nil {
		return fmt.Errorf("cannot save nil compatibility test")
	}
	if test.UserID == 0 {
		return fmt.Errorf("%w: compatibility test must have a user_id", ErrValidation)
	}

	now := time.Now().UTC()
	test.CreatedAt = now
	test.UpdatedAt = now

	query := `
        INSERT INTO compatibility_tests (
            created_at, updated_at, user_id, partner_name, user_answers, partner_answers,
            overall_score, communication_score, values_score, lifestyle_score,
            emotional_score, strengths, challenges, advice
        ) VALUES (
            :created_at, :updated_at, :user_id, :partner_name, :user_answers, :partner_answers,
            :overall_score, :communication_score, :values_score, :lifestyle_score,
            :emotional_score, :strengths, :challenges, :advice
        );
    `
	result, err := s.db.NamedExecContext(ctx, query, test)
	if err != nil {
		return fmt.Errorf("failed to save compatibility test for user %d: %w", test.UserID, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		test.ID = id
	}
	return nil
}

func (s *sqlxStore) SaveSubscription(ctx context.Context, sub *Subscription) error {
	if sub == nil {
		return fmt.Errorf("cannot save nil subscription")
	}
	if err := sub.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if sub.Currency == "" {
		sub.Currency = "RUB"
	}
	if sub.PaymentStatus == "" {
		sub.PaymentStatus = PaymentPending
	}

	query := `
        INSERT INTO subscriptions (
            created_at, updated_at, user_id, subscription_type, price, currency,
            start_date, end_date, duration_days, payment_id, payment_method,
            payment_status, payment_date, is_active, is_cancelled, is_refunded,
            auto_renewal, cancellation_reason, refund_reason
        ) VALUES (
            :created_at, :updated_at, :user_id, :subscription_type, :price, :currency,
            :start_date, :end_date, :duration_days, :payment_id, :payment_method,
            :payment_status, :payment_date, :is_active, :is_cancelled, :is_refunded,
            :auto_renewal, :cancellation_reason, :refund_reason
        );
    `
	result, err := s.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving subscription", "user_id", sub.UserID, "error", err)
		return fmt.Errorf("failed to save subscription for user %d: %w", sub.UserID, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		sub.ID = id
	}
	return nil
}

func (s *sqlxStore) GetSubscription(ctx context.Context, id int64) (*Subscription, error) {
	var sub Subscription
	err := s.db.GetContext(ctx, &sub, `SELECT * FROM subscriptions WHERE id = ?;`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription %d: %w", id, err)
	}
	return &sub, nil
}

func (s *sqlxStore) GetActiveSubscription(ctx context.Context, userID int64) (*Subscription, error) {
	var sub Subscription
	err := s.db.GetContext(ctx, &sub,
		`SELECT * FROM subscriptions WHERE user_id = ? AND is_active = 1 ORDER BY end_date DESC LIMIT 1;`,
		userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active subscription for user %d: %w", userID, err)
	}
	return &sub, nil
}

func (s *sqlxStore) UpdateSubscription(ctx context.Context, sub *Subscription) error {
	if sub == nil || sub.ID == 0 {
		return fmt.Errorf("cannot update unsaved subscription")
	}
	sub.UpdatedAt = time.Now().UTC()

	query := `
        UPDATE subscriptions SET
            updated_at = :updated_at,
            end_date = :end_date,
            duration_days = :duration_days,
            payment_id = :payment_id,
            payment_method = :payment_method,
            payment_status = :payment_status,
            payment_date = :payment_date,
            is_active = :is_active,
            is_cancelled = :is_cancelled,
            is_refunded = :is_refunded,
            auto_renewal = :auto_renewal,
            cancellation_reason = :cancellation_reason,
            refund_reason = :refund_reason
        WHERE id = :id;
    `
	if _, err := s.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("failed to update subscription %d: %w", sub.ID, err)
	}
	return nil
}

func (s *sqlxStore) ActivateSubscription(ctx context.Context, subscriptionID int64, paymentID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx, s.logger)

	var sub Subscription
	if err := tx.GetContext(ctx, &sub, `SELECT * FROM subscriptions WHERE id = ?;`, subscriptionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("subscription %d not found", subscriptionID)
		}
		return fmt.Errorf("failed to load subscription %d: %w", subscriptionID, err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
        UPDATE subscriptions SET
            payment_status = ?, payment_id = ?, payment_date = ?, is_active = 1, updated_at = ?
        WHERE id = ?;`,
		PaymentCompleted, paymentID, now, now, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to activate subscription %d: %w", subscriptionID, err)
	}

	limit := 9
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET subscription_type = ?, analyses_limit = ?, updated_at = ? WHERE id = ?;`,
		sub.SubscriptionType, limit, now, sub.UserID)
	if err != nil {
		return fmt.Errorf("failed to upgrade user %d: %w", sub.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Subscription activated",
		"subscription_id", subscriptionID, "user_id", sub.UserID, "type", sub.SubscriptionType)
	return nil
}

func (s *sqlxStore) ExpireDueSubscriptions(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx, s.logger)

	var due []Subscription
	err = tx.SelectContext(ctx, &due,
		`SELECT * FROM subscriptions WHERE is_active = 1 AND end_date <= ?;`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to select due subscriptions: %w", err)
	}
	if len(due) == 0 {
		return 0, tx.Commit()
	}

	for _, sub := range due {
		if _, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET is_active = 0, updated_at = ? WHERE id = ?;`,
			now, sub.ID); err != nil {
			return 0, fmt.Errorf("failed to deactivate subscription %d: %w", sub.ID, err)
		}

		// A user who already paid for a newer subscription keeps its tier.
		var remaining int
		err = tx.GetContext(ctx, &remaining,
			`SELECT COUNT(*) FROM subscriptions WHERE user_id = ? AND is_active = 1 AND end_date > ?;`,
			sub.UserID, now)
		if err != nil {
			return 0, fmt.Errorf("failed to count active subscriptions for user %d: %w", sub.UserID, err)
		}
		if remaining > 0 {
			s.logger.InfoContext(ctx, "Subscription expired, newer one still active",
				"subscription_id", sub.ID, "user_id", sub.UserID)
			continue
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET subscription_type = ?, analyses_limit = 3, updated_at = ? WHERE id = ?;`,
			SubscriptionFree, now, sub.UserID); err != nil {
			return 0, fmt.Errorf("failed to downgrade user %d: %w", sub.UserID, err)
		}
		s.logger.InfoContext(ctx, "Subscription expired", "subscription_id", sub.ID, "user_id", sub.UserID)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(due), nil
}

func (s *sqlxStore) SaveDailyContent(ctx context.Context, content *DailyContent) error {
	if content == nil {
		return fmt.Errorf("cannot save nil content")
	}
	now := time.Now().UTC()
	content.CreatedAt = now
	content.UpdatedAt = now

	query := `
        INSERT INTO daily_content (
            created_at, updated_at, content_type, title, body, publish_at,
            is_published, views_count, likes_count
        ) VALUES (
            :created_at, :updated_at, :content_type, :title, :body, :publish_at,
            :is_published, :views_count, :likes_count
        );
    `
	result, err := s.db.NamedExecContext(ctx, query, content)
	if err != nil {
		return fmt.Errorf("failed to save daily content: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		content.ID = id
	}
	return nil
}

func (s *sqlxStore) NextUnpublishedContent(ctx context.Context, now time.Time) (*DailyContent, error) {
	var content DailyContent
	err := s.db.GetContext(ctx, &content,
		`SELECT * FROM daily_content WHERE is_published = 0 AND publish_at <= ? ORDER BY publish_at ASC LIMIT 1;`,
		now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next unpublished content: %w", err)
	}
	return &content, nil
}

func (s *sqlxStore) MarkContentPublished(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE daily_content SET is_published = 1, updated_at = ? WHERE id = ?;`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark content %d published: %w", id, err)
	}
	return nil
}

func (s *sqlxStore) IncrementContentViews(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE daily_content SET views_count = views_count + 1, updated_at = ? WHERE id = ?;`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to increment views for content %d: %w", id, err)
	}
	return nil
}

func (s *sqlxStore) IncrementContentLikes(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE daily_content SET likes_count = likes_count + 1, updated_at = ? WHERE id = ?;`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to increment likes for content %d: %w", id, err)
	}
	return nil
}

func (s *sqlxStore) LogActivity(ctx context.Context, userID int64, activityType, details string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_activities (created_at, updated_at, user_id, activity_type, details) VALUES (?, ?, ?, ?, ?);`,
		now, now, userID, activityType, details)
	if err != nil {
		return fmt.Errorf("failed to log activity for user %d: %w", userID, err)
	}
	return nil
}

func (s *sqlxStore) CountActivitiesSince(ctx context.Context, userID int64, activityType string, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM user_activities WHERE user_id = ? AND activity_type = ? AND created_at >= ?;`,
		userID, activityType, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count activities for user %d: %w", userID, err)
	}
	return count, nil
}

func (s *sqlxStore) AdvanceAchievement(ctx context.Context, userID int64, code, name string, target int) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx, s.logger)

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
        INSERT INTO user_achievements (created_at, updated_at, user_id, code, name, progress, target)
        VALUES (?, ?, ?, ?, ?, 1, ?)
        ON CONFLICT (user_id, code) DO UPDATE SET
            progress = progress + 1,
            updated_at = excluded.updated_at;`,
		now, now, userID, code, name, target)
	if err != nil {
		return false, fmt.Errorf("failed to advance achievement %q for user %d: %w", code, userID, err)
	}

	var ach UserAchievement
	if err := tx.GetContext(ctx, &ach,
		`SELECT * FROM user_achievements WHERE user_id = ? AND code = ?;`, userID, code); err != nil {
		return false, fmt.Errorf("failed to load achievement %q for user %d: %w", code, userID, err)
	}

	unlocked := false
	if ach.Progress >= ach.Target && !ach.UnlockedAt.Valid {
		if _, err := tx.ExecContext(ctx,
			`UPDATE user_achievements SET unlocked_at = ?, updated_at = ? WHERE id = ?;`,
			now, now, ach.ID); err != nil {
			return false, fmt.Errorf("failed to unlock achievement %q for user %d: %w", code, userID, err)
		}
		unlocked = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return unlocked, nil
}

func capLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func rollback(tx *sqlx.Tx, logger *slog.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Warn("Error rolling back transaction", "error", err)
	}
}
