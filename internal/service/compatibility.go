package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/avdotin/psychodetective/internal/ai"
	"github.com/avdotin/psychodetective/internal/cache"
	"github.com/avdotin/psychodetective/internal/database"
	"github.com/avdotin/psychodetective/internal/questionnaire"
)

// compatibilityActions are the daily quota buckets one test consumes.
var compatibilityActions = []string{database.ActivityCompatibilityTest, database.ActivityAIRequest}

// CompatibilityService runs paired-questionnaire compatibility tests.
type CompatibilityService struct {
	store   database.Store
	ai      ai.Client
	limiter *cache.Limiter
	logger  *slog.Logger
}

// NewCompatibilityService creates a compatibility testing service.
func NewCompatibilityService(store database.Store, aiClient ai.Client, limiter *cache.Limiter, logger *slog.Logger) *CompatibilityService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CompatibilityService{
		store:   store,
		ai:      aiClient,
		limiter: limiter,
		logger:  logger.With("component", "compatibility_service"),
	}
}

// Run assesses compatibility for a completed two-pass questionnaire session.
func (s *CompatibilityService) Run(ctx context.Context, user *database.User, session *questionnaire.Session) (*database.CompatibilityTest, error) {
	if session == nil || session.Stage != questionnaire.StageDone || session.Kind != questionnaire.KindCompatibility {
		return nil, fmt.Errorf("%w: compatibility questionnaire is not complete", database.ErrValidation)
	}

	if err := reserveQuota(ctx, s.limiter, user, compatibilityActions...); err != nil {
		return nil, err
	}

	result, err := s.ai.AssessCompatibility(ctx, &ai.CompatibilityRequest{
		PartnerName:    session.PartnerName,
		UserAnswers:    session.UserAnswers,
		PartnerAnswers: session.PartnerAnswers,
	})
	if err != nil {
		refundQuota(ctx, s.limiter, user, compatibilityActions...)
		return nil, fmt.Errorf("compatibility assessment failed: %w", err)
	}

	userJSON, err := json.Marshal(session.UserAnswers)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize answers: %w", err)
	}
	partnerJSON, err := json.Marshal(session.PartnerAnswers)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize answers: %w", err)
	}

	test := &database.CompatibilityTest{
		UserID:             user.ID,
		PartnerName:        session.PartnerName,
		UserAnswers:        userJSON,
		PartnerAnswers:     partnerJSON,
		OverallScore:       result.OverallScore,
		CommunicationScore: result.CommunicationScore,
		ValuesScore:        result.ValuesScore,
		LifestyleScore:     result.LifestyleScore,
		EmotionalScore:     result.EmotionalScore,
		Strengths:          result.Strengths,
		Challenges:         result.Challenges,
		Advice:             result.Advice,
	}

	if err := s.store.SaveCompatibilityTest(ctx, test); err != nil {
		return nil, err
	}
	logQuotaActivities(ctx, s.store, s.logger, user.ID, session.PartnerName, compatibilityActions...)

	s.logger.InfoContext(ctx, "Compatibility test completed",
		"user_id", user.ID, "test_id", test.ID, "overall", test.OverallScore)
	return test, nil
}
