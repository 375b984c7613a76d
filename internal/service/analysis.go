package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/avdotin/psychodetective/internal/ai"
	"github.com/avdotin/psychodetective/internal/cache"
	"github.com/avdotin/psychodetective/internal/database"
)

// maxAnalysisTextLen bounds a single submission. Telegram messages cap at
// 4096 characters anyway, but forwarded fragments can be pasted together.
const maxAnalysisTextLen = 8000

// analysisActions are the daily quota buckets one analysis consumes: the
// feature-specific one and the shared AI request budget.
var analysisActions = []string{database.ActivityTextAnalyzed, database.ActivityAIRequest}

// AnalysisService runs text analyses: quota check, AI call, persistence.
type AnalysisService struct {
	store     database.Store
	ai        ai.Client
	limiter   *cache.Limiter
	freeLimit int
	logger    *slog.Logger
}

// NewAnalysisService creates a text analysis service. freeLimit is the
// fallback monthly cap for free users whose row carries no limit.
func NewAnalysisService(store database.Store, aiClient ai.Client, limiter *cache.Limiter, freeLimit int, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AnalysisService{
		store:     store,
		ai:        aiClient,
		limiter:   limiter,
		freeLimit: freeLimit,
		logger:    logger.With("component", "analysis_service"),
	}
}

// Analyze runs the full analysis pipeline for one text submission.
func (s *AnalysisService) Analyze(ctx context.Context, user *database.User, text string) (*database.TextAnalysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", database.ErrValidation)
	}
	if len([]rune(text)) > maxAnalysisTextLen {
		return nil, fmt.Errorf("%w: text too long", database.ErrValidation)
	}

	// The persistent monthly cap comes first: it outlives the rolling daily
	// window, so a free user at the limit stays denied after the Redis
	// counters reset.
	quota := *user
	if quota.AnalysesLimit <= 0 {
		quota.AnalysesLimit = s.freeLimit
	}
	if !quota.CanAnalyze() {
		return nil, ErrQuotaExceeded
	}

	if err := reserveQuota(ctx, s.limiter, user, analysisActions...); err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := s.ai.AnalyzeText(ctx, text)
	if err != nil {
		refundQuota(ctx, s.limiter, user, analysisActions...)
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	hash := sha256.Sum256([]byte(text))
	analysis := &database.TextAnalysis{
		UserID:           user.ID,
		OriginalText:     text,
		TextHash:         hex.EncodeToString(hash[:]),
		ToxicityScore:    result.ToxicityScore,
		UrgencyLevel:     database.UrgencyLevel(result.UrgencyLevel),
		RedFlags:         result.RedFlags,
		PatternsDetected: result.PatternsDetected,
		AnalysisText:     result.Narrative,
		Recommendation:   result.Recommendation,
		ConfidenceScore:  result.ConfidenceScore,
		SentimentScore:   result.SentimentScore,
		AIModelUsed:      result.ModelUsed,
		ProcessingTime:   time.Since(started).Seconds(),
	}

	if err := s.store.SaveTextAnalysis(ctx, analysis); err != nil {
		return nil, err
	}
	if err := s.store.IncrementAnalysisCount(ctx, user.ID); err != nil {
		s.logger.WarnContext(ctx, "Failed to increment analysis counter", "user_id", user.ID, "error", err)
	}
	logQuotaActivities(ctx, s.store, s.logger, user.ID, "", analysisActions...)
	if _, err := s.store.AdvanceAchievement(ctx, user.ID, "first_analysis", "Первый анализ", 1); err != nil {
		s.logger.WarnContext(ctx, "Failed to advance achievement", "user_id", user.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "Text analysis completed",
		"user_id", user.ID, "analysis_id", analysis.ID,
		"toxicity", analysis.ToxicityScore, "urgency", analysis.UrgencyLevel,
		"duration", analysis.ProcessingTime)
	return analysis, nil
}

// History returns the user's recent analyses.
func (s *AnalysisService) History(ctx context.Context, userID int64, limit int) ([]database.TextAnalysis, error) {
	return s.store.GetUserAnalyses(ctx, userID, limit)
}
