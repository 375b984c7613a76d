package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SubscriptionType identifies the tier a user is subscribed to.
type SubscriptionType string

const (
	SubscriptionFree    SubscriptionType = "FREE"
	SubscriptionPremium SubscriptionType = "PREMIUM"
	SubscriptionVIP     SubscriptionType = "VIP"
)

// IsPremium reports whether the tier grants paid features.
func (s SubscriptionType) IsPremium() bool {
	return s == SubscriptionPremium || s == SubscriptionVIP
}

// PaymentStatus tracks the payment lifecycle of a subscription.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// UrgencyLevel is the ordinal risk bucket attached to an analysis.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "LOW"
	UrgencyMedium   UrgencyLevel = "MEDIUM"
	UrgencyHigh     UrgencyLevel = "HIGH"
	UrgencyCritical UrgencyLevel = "CRITICAL"
)

// Valid reports whether the value is one of the known urgency levels.
func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// Activity types recorded in the user_activities log.
const (
	ActivityTextAnalyzed      = "text_analysis"
	ActivityProfileCreated    = "profile_creation"
	ActivityCompatibilityTest = "compatibility_test"
	ActivityAIRequest         = "ai_request"
	ActivityContentViewed     = "content_viewed"
)

// Daily content types.
const (
	ContentTip      = "tip"
	ContentQuote    = "quote"
	ContentExercise = "exercise"
)

// StringList is a []string stored as a JSON array in a TEXT column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// User represents a Telegram user of the bot, including profile data,
// subscription tier, and free-tier usage counters.
type User struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	TelegramID   int64  `db:"telegram_id"`
	Username     string `db:"username"`
	FirstName    string `db:"first_name"`
	LastName     string `db:"last_name"`
	LanguageCode string `db:"language_code"`

	Name     string `db:"name"`
	Gender   string `db:"gender"`
	AgeGroup string `db:"age_group"`
	Bio      string `db:"bio"`

	SubscriptionType SubscriptionType `db:"subscription_type"`
	AnalysesCount    int              `db:"analyses_count"`
	AnalysesLimit    int              `db:"analyses_limit"`
	TotalAnalyses    int              `db:"total_analyses"`

	LastActivity     sql.NullTime `db:"last_activity"`
	LastAnalysisDate sql.NullTime `db:"last_analysis_date"`
	LastProfileEdit  sql.NullTime `db:"last_profile_edit"`

	IsActive  bool `db:"is_active"`
	IsBlocked bool `db:"is_blocked"`
	IsAdmin   bool `db:"is_admin"`

	NotificationsEnabled bool `db:"notifications_enabled"`
	DailyTipsEnabled     bool `db:"daily_tips_enabled"`
}

// CanAnalyze reports whether the user may run another analysis. Premium and
// VIP users are never limited by count.
func (u *User) CanAnalyze() bool {
	if u.SubscriptionType.IsPremium() {
		return true
	}
	return u.AnalysesCount < u.AnalysesLimit
}

// AnalysesRemaining returns the number of analyses left for free users.
func (u *User) AnalysesRemaining() int {
	if u.SubscriptionType.IsPremium() {
		return -1 // unlimited
	}
	if remaining := u.AnalysesLimit - u.AnalysesCount; remaining > 0 {
		return remaining
	}
	return 0
}

// CanEditProfile reports whether the 30-day profile edit window has passed.
func (u *User) CanEditProfile(now time.Time) bool {
	if !u.LastProfileEdit.Valid {
		return true
	}
	return now.Sub(u.LastProfileEdit.Time) >= 30*24*time.Hour
}

// DisplayName returns the preferred name for addressing the user.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "Пользователь"
}

// TextAnalysis stores the result of a single text submission analysis.
type TextAnalysis struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID       int64  `db:"user_id"`
	OriginalText string `db:"original_text"`
	TextHash     string `db:"text_hash"`

	ToxicityScore    float64      `db:"toxicity_score"`
	UrgencyLevel     UrgencyLevel `db:"urgency_level"`
	RedFlags         StringList   `db:"red_flags"`
	PatternsDetected StringList   `db:"patterns_detected"`
	AnalysisText     string       `db:"analysis_text"`
	Recommendation   string       `db:"recommendation"`
	ConfidenceScore  float64      `db:"confidence_score"`
	SentimentScore   float64      `db:"sentiment_score"`
	AIModelUsed      string       `db:"ai_model_used"`
	ProcessingTime   float64      `db:"processing_time"`
}

// IsHighRisk reports whether the analysis indicates high or critical risk.
func (a *TextAnalysis) IsHighRisk() bool {
	return a.UrgencyLevel == UrgencyHigh || a.UrgencyLevel == UrgencyCritical
}

// BlockScores holds the six named 0-10 sub-scores forming a partner profile
// breakdown, plus the dark-triad components beyond narcissism.
type BlockScores struct {
	Narcissism       float64 `db:"narcissism_score"       json:"narcissism"`
	Control          float64 `db:"control_score"          json:"control"`
	Gaslighting      float64 `db:"gaslighting_score"      json:"gaslighting"`
	Emotion          float64 `db:"emotion_score"          json:"emotion"`
	Intimacy         float64 `db:"intimacy_score"         json:"intimacy"`
	Social           float64 `db:"social_score"           json:"social"`
	Machiavellianism float64 `db:"machiavellianism_score" json:"machiavellianism"`
	Psychopathy      float64 `db:"psychopathy_score"      json:"psychopathy"`
}

// PartnerProfile stores one partner-profiling session: the questionnaire
// answers and the AI-produced risk assessment.
type PartnerProfile struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID             int64          `db:"user_id"`
	PartnerName        string         `db:"partner_name"`
	PartnerDescription string         `db:"partner_description"`
	QuestionnaireData  types.JSONText `db:"questionnaire_answers"`

	PersonalityType      string       `db:"personality_type"`
	ManipulationRisk     float64      `db:"manipulation_risk"`
	UrgencyLevel         UrgencyLevel `db:"urgency_level"`
	RedFlags             StringList   `db:"red_flags"`
	PositiveTraits       StringList   `db:"positive_traits"`
	WarningSigns         StringList   `db:"warning_signs"`
	PsychologicalProfile string       `db:"psychological_profile"`
	RelationshipAdvice   string       `db:"relationship_advice"`
	CommunicationTips    string       `db:"communication_tips"`
	OverallCompatibility float64      `db:"overall_compatibility"`

	BlockScores

	ConfidenceScore float64 `db:"confidence_score"`
	AIModelUsed     string  `db:"ai_model_used"`
	ProcessingTime  float64 `db:"processing_time"`
	IsCompleted     bool    `db:"is_completed"`
}

// IsHighRisk reports whether the profile indicates a high-risk partner.
func (p *PartnerProfile) IsHighRisk() bool {
	return p.ManipulationRisk >= 7.0 || p.UrgencyLevel == UrgencyHigh || p.UrgencyLevel == UrgencyCritical
}

// CompatibilityTest stores paired questionnaire answers from two people and
// the derived compatibility sub-scores.
type CompatibilityTest struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID         int64          `db:"user_id"`
	PartnerName    string         `db:"partner_name"`
	UserAnswers    types.JSONText `db:"user_answers"`
	PartnerAnswers types.JSONText `db:"partner_answers"`

	OverallScore       float64    `db:"overall_score"`
	CommunicationScore float64    `db:"communication_score"`
	ValuesScore        float64    `db:"values_score"`
	LifestyleScore     float64    `db:"lifestyle_score"`
	EmotionalScore     float64    `db:"emotional_score"`
	Strengths          StringList `db:"strengths"`
	Challenges         StringList `db:"challenges"`
	Advice             string     `db:"advice"`
}

// Subscription stores one purchased subscription and its payment lifecycle.
type Subscription struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID           int64            `db:"user_id"`
	SubscriptionType SubscriptionType `db:"subscription_type"`
	Price            float64          `db:"price"`
	Currency         string           `db:"currency"`

	StartDate    time.Time `db:"start_date"`
	EndDate      time.Time `db:"end_date"`
	DurationDays int       `db:"duration_days"`

	PaymentID     string        `db:"payment_id"`
	PaymentMethod string        `db:"payment_method"`
	PaymentStatus PaymentStatus `db:"payment_status"`
	PaymentDate   sql.NullTime  `db:"payment_date"`

	IsActive    bool `db:"is_active"`
	IsCancelled bool `db:"is_cancelled"`
	IsRefunded  bool `db:"is_refunded"`
	AutoRenewal bool `db:"auto_renewal"`

	CancellationReason string `db:"cancellation_reason"`
	RefundReason       string `db:"refund_reason"`
}

// IsExpired reports whether the subscription end date has passed.
func (s *Subscription) IsExpired(now time.Time) bool {
	return now.After(s.EndDate)
}

// DaysRemaining returns the whole days left before expiry, zero if expired.
func (s *Subscription) DaysRemaining(now time.Time) int {
	if s.IsExpired(now) {
		return 0
	}
	return int(s.EndDate.Sub(now).Hours() / 24)
}

// DailyContent is an editorial content item with publish scheduling and
// engagement counters.
type DailyContent struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	ContentType string    `db:"content_type"`
	Title       string    `db:"title"`
	Body        string    `db:"body"`
	PublishAt   time.Time `db:"publish_at"`
	IsPublished bool      `db:"is_published"`
	ViewsCount  int       `db:"views_count"`
	LikesCount  int       `db:"likes_count"`
}

// UserActivity is a single append-only event log entry owned by a user.
type UserActivity struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID       int64  `db:"user_id"`
	ActivityType string `db:"activity_type"`
	Details      string `db:"details"`
}

// UserAchievement tracks gamification progress for one achievement code.
type UserAchievement struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID     int64        `db:"user_id"`
	Code       string       `db:"code"`
	Name       string       `db:"name"`
	Progress   int          `db:"progress"`
	Target     int          `db:"target"`
	UnlockedAt sql.NullTime `db:"unlocked_at"`
}
