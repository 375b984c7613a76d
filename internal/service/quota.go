package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avdotin/psychodetective/internal/cache"
	"github.com/avdotin/psychodetective/internal/database"
)

// reserveQuota consumes one unit of every listed action's daily quota, in
// order. On denial or unavailability the units already taken are returned,
// so a user limited on the shared ai_request budget does not lose a unit of
// the feature-specific one.
func reserveQuota(ctx context.Context, limiter *cache.Limiter, user *database.User, actions ...string) error {
	for i, action := range actions {
		verdict, err := limiter.Allow(ctx, user, action)
		switch verdict {
		case cache.VerdictAllowed:
			continue
		case cache.VerdictLimited:
			refundQuota(ctx, limiter, user, actions[:i]...)
			return ErrRateLimited
		default:
			refundQuota(ctx, limiter, user, actions[:i]...)
			return fmt.Errorf("%w: %v", ErrRateLimitUnavailable, err)
		}
	}
	return nil
}

// refundQuota returns previously reserved units, typically after the AI call
// behind them failed.
func refundQuota(ctx context.Context, limiter *cache.Limiter, user *database.User, actions ...string) {
	for _, action := range actions {
		limiter.Refund(ctx, user, action)
	}
}

// logQuotaActivities records one activity row per reserved action so the
// limiter's database fallback sees the same consumption as Redis. Failures
// are logged, not returned: the action itself already succeeded.
func logQuotaActivities(ctx context.Context, store database.Store, logger *slog.Logger, userID int64, details string, actions ...string) {
	for _, action := range actions {
		if err := store.LogActivity(ctx, userID, action, details); err != nil {
			logger.WarnContext(ctx, "Failed to log activity", "user_id", userID, "activity", action, "error", err)
		}
	}
}
