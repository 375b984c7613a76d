package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avdotin/psychodetective/internal/database"
)

// Verdict is the outcome of a rate-limit check. Unavailable means the Redis
// backend could not answer and the caller must decide via the database
// fallback, never by silently allowing.
type Verdict int

const (
	VerdictAllowed Verdict = iota
	VerdictLimited
	VerdictUnavailable
)

// Unlimited marks a tier/action pair with no daily cap.
const Unlimited = -1

// baseLimits are the free-tier daily caps per action type.
var baseLimits = map[string]int{
	database.ActivityTextAnalyzed:      3,
	database.ActivityProfileCreated:    1,
	database.ActivityCompatibilityTest: 2,
	database.ActivityAIRequest:         5,
}

// LimitFor returns the daily cap for the given tier and action. Premium users
// get triple the free limits, VIP users are uncapped. Unknown actions are
// uncapped.
func LimitFor(tier database.SubscriptionType, action string) int {
	base, ok := baseLimits[action]
	if !ok {
		return Unlimited
	}
	switch tier {
	case database.SubscriptionVIP:
		return Unlimited
	case database.SubscriptionPremium:
		return base * 3
	default:
		return base
	}
}

// ActivityCounter is the subset of the store the limiter needs for its
// database fallback.
type ActivityCounter interface {
	CountActivitiesSince(ctx context.Context, userID int64, activityType string, since time.Time) (int, error)
}

// Limiter enforces per-user daily action caps. Counters live in Redis keyed
// by Telegram ID and action; on Redis failure the limiter falls back to
// counting activity log rows for the same rolling 24-hour window.
type Limiter struct {
	cache   *Cache
	counter ActivityCounter
	logger  *slog.Logger
}

// NewLimiter creates a rate limiter. The cache may be nil, in which case
// every check goes through the database fallback.
func NewLimiter(c *Cache, counter ActivityCounter, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Limiter{
		cache:   c,
		counter: counter,
		logger:  logger.With("component", "ratelimit"),
	}
}

// Allow checks and consumes one unit of the user's daily quota for the given
// action. It returns VerdictAllowed or VerdictLimited; VerdictUnavailable is
// returned only when both Redis and the database fallback fail.
func (l *Limiter) Allow(ctx context.Context, user *database.User, action string) (Verdict, error) {
	limit := LimitFor(user.SubscriptionType, action)
	if limit == Unlimited {
		return VerdictAllowed, nil
	}

	if l.cache != nil {
		key := fmt.Sprintf("rate_limit:%d:%s", user.TelegramID, action)
		count, err := l.cache.IncrementDailyCounter(ctx, key)
		if err == nil {
			if count > int64(limit) {
				return VerdictLimited, nil
			}
			return VerdictAllowed, nil
		}
		l.logger.WarnContext(ctx, "Redis unavailable, falling back to database",
			"action", action, "error", err)
	}

	if l.counter == nil {
		return VerdictUnavailable, fmt.Errorf("no rate-limit backend available for action %q", action)
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	count, err := l.counter.CountActivitiesSince(ctx, user.ID, action, since)
	if err != nil {
		return VerdictUnavailable, fmt.Errorf("rate-limit fallback failed: %w", err)
	}
	if count >= limit {
		return VerdictLimited, nil
	}
	return VerdictAllowed, nil
}

// Refund returns one unit consumed by a successful Allow. Callers use it when
// the action itself failed after the quota was taken. The database fallback
// needs no refund: it counts only recorded activities, and failed actions are
// never recorded.
func (l *Limiter) Refund(ctx context.Context, user *database.User, action string) {
	if l.cache == nil || LimitFor(user.SubscriptionType, action) == Unlimited {
		return
	}
	key := fmt.Sprintf("rate_limit:%d:%s", user.TelegramID, action)
	if err := l.cache.DecrementDailyCounter(ctx, key); err != nil {
		l.logger.WarnContext(ctx, "Failed to refund rate-limit unit", "action", action, "error", err)
	}
}
