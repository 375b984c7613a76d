package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avdotin/psychodetective/internal/ai"
	"github.com/avdotin/psychodetective/internal/cache"
	"github.com/avdotin/psychodetective/internal/database"
	"github.com/avdotin/psychodetective/internal/questionnaire"
)

// profileActions are the daily quota buckets one profiling run consumes.
var profileActions = []string{database.ActivityProfileCreated, database.ActivityAIRequest}

// profileWindow is the rolling window for the free-tier profile cap.
const profileWindow = 30 * 24 * time.Hour

// ProfileService turns completed profiling questionnaires into persisted
// partner profiles.
type ProfileService struct {
	store     database.Store
	ai        ai.Client
	limiter   *cache.Limiter
	freeLimit int
	logger    *slog.Logger
}

// NewProfileService creates a partner profiling service. freeLimit caps how
// many profiles a free user may create per rolling 30-day window.
func NewProfileService(store database.Store, aiClient ai.Client, limiter *cache.Limiter, freeLimit int, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ProfileService{
		store:     store,
		ai:        aiClient,
		limiter:   limiter,
		freeLimit: freeLimit,
		logger:    logger.With("component", "profile_service"),
	}
}

// techniqueFor maps the subscription tier to the prompting technique: higher
// tiers get deeper (and longer) analysis narratives.
func techniqueFor(tier database.SubscriptionType) string {
	switch tier {
	case database.SubscriptionVIP:
		return "tree_of_thoughts"
	case database.SubscriptionPremium:
		return "advanced"
	default:
		return "simple"
	}
}

// Create runs the profiling pipeline for a completed questionnaire session.
func (s *ProfileService) Create(ctx context.Context, user *database.User, session *questionnaire.Session) (*database.PartnerProfile, error) {
	if session == nil || session.Stage != questionnaire.StageDone {
		return nil, fmt.Errorf("%w: questionnaire is not complete", database.ErrValidation)
	}

	if user.SubscriptionType == database.SubscriptionFree && s.freeLimit > 0 {
		created, err := s.store.CountPartnerProfilesSince(ctx, user.ID, time.Now().Add(-profileWindow))
		if err != nil {
			return nil, fmt.Errorf("failed to count recent profiles: %w", err)
		}
		if created >= s.freeLimit {
			return nil, ErrQuotaExceeded
		}
	}

	if err := reserveQuota(ctx, s.limiter, user, profileActions...); err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := s.ai.ProfilePartner(ctx, &ai.ProfileRequest{
		PartnerName: session.PartnerName,
		Answers:     session.UserAnswers,
		Technique:   techniqueFor(user.SubscriptionType),
	})
	if err != nil {
		refundQuota(ctx, s.limiter, user, profileActions...)
		return nil, fmt.Errorf("profiling failed: %w", err)
	}

	answersJSON, err := json.Marshal(session.UserAnswers)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize answers: %w", err)
	}

	profile := &database.PartnerProfile{
		UserID:               user.ID,
		PartnerName:          session.PartnerName,
		QuestionnaireData:    answersJSON,
		PersonalityType:      result.PersonalityType,
		ManipulationRisk:     result.ManipulationRisk,
		UrgencyLevel:         database.UrgencyLevel(result.UrgencyLevel),
		RedFlags:             result.RedFlags,
		PositiveTraits:       result.PositiveTraits,
		WarningSigns:         result.WarningSigns,
		PsychologicalProfile: result.Narrative,
		RelationshipAdvice:   result.RelationshipAdvice,
		CommunicationTips:    result.CommunicationTips,
		OverallCompatibility: result.OverallCompatibility,
		BlockScores: database.BlockScores{
			Narcissism:       result.Narcissism,
			Control:          result.Control,
			Gaslighting:      result.Gaslighting,
			Emotion:          result.Emotion,
			Intimacy:         result.Intimacy,
			Social:           result.Social,
			Machiavellianism: result.Machiavellianism,
			Psychopathy:      result.Psychopathy,
		},
		ConfidenceScore: result.ConfidenceScore,
		AIModelUsed:     result.ModelUsed,
		ProcessingTime:  time.Since(started).Seconds(),
		IsCompleted:     true,
	}

	if err := s.store.SavePartnerProfile(ctx, profile); err != nil {
		return nil, err
	}
	logQuotaActivities(ctx, s.store, s.logger, user.ID, session.PartnerName, profileActions...)
	if _, err := s.store.AdvanceAchievement(ctx, user.ID, "first_profile", "Первый портрет", 1); err != nil {
		s.logger.WarnContext(ctx, "Failed to advance achievement", "user_id", user.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "Partner profile created",
		"user_id", user.ID, "profile_id", profile.ID,
		"risk", profile.ManipulationRisk, "urgency", profile.UrgencyLevel)
	return profile, nil
}

// Get returns one of the user's profiles by ID. A profile belonging to
// another user is reported as not found.
func (s *ProfileService) Get(ctx context.Context, userID, profileID int64) (*database.PartnerProfile, error) {
	profile, err := s.store.GetPartnerProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.UserID != userID {
		return nil, fmt.Errorf("%w: profile %d", ErrNotFound, profileID)
	}
	return profile, nil
}

// List returns the user's recent profiles.
func (s *ProfileService) List(ctx context.Context, userID int64, limit int) ([]database.PartnerProfile, error) {
	return s.store.GetUserPartnerProfiles(ctx, userID, limit)
}
