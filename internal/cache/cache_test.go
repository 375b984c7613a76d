package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/avdotin/psychodetective/internal/database"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewWithClient(rdb, nil), mr
}

func TestIncrementDailyCounter(t *testing.T) {
	t.Parallel()
	c, mr := newTestCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.IncrementDailyCounter(ctx, "rate_limit:42:text_analysis")
		if err != nil {
			t.Fatalf("IncrementDailyCounter() error = %v", err)
		}
		if got != want {
			t.Errorf("counter = %d, want %d", got, want)
		}
	}

	ttl := mr.TTL("rate_limit:42:text_analysis")
	if ttl <= 0 || ttl > 24*time.Hour {
		t.Errorf("counter TTL = %v, want (0, 24h]", ttl)
	}
}

func TestCounterExpires(t *testing.T) {
	t.Parallel()
	c, mr := newTestCache(t)
	ctx := context.Background()

	if _, err := c.IncrementDailyCounter(ctx, "rate_limit:42:ai_request"); err != nil {
		t.Fatalf("IncrementDailyCounter() error = %v", err)
	}

	mr.FastForward(25 * time.Hour)

	got, err := c.GetCounter(ctx, "rate_limit:42:ai_request")
	if err != nil {
		t.Fatalf("GetCounter() error = %v", err)
	}
	if got != 0 {
		t.Errorf("counter after expiry = %d, want 0", got)
	}
}

func TestLimitFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tier   database.SubscriptionType
		action string
		want   int
	}{
		{database.SubscriptionFree, database.ActivityTextAnalyzed, 3},
		{database.SubscriptionFree, database.ActivityProfileCreated, 1},
		{database.SubscriptionFree, database.ActivityCompatibilityTest, 2},
		{database.SubscriptionFree, database.ActivityAIRequest, 5},
		{database.SubscriptionPremium, database.ActivityTextAnalyzed, 9},
		{database.SubscriptionPremium, database.ActivityProfileCreated, 3},
		{database.SubscriptionVIP, database.ActivityTextAnalyzed, Unlimited},
		{database.SubscriptionFree, "unknown_action", Unlimited},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s/%s", tc.tier, tc.action), func(t *testing.T) {
			if got := LimitFor(tc.tier, tc.action); got != tc.want {
				t.Errorf("LimitFor(%s, %s) = %d, want %d", tc.tier, tc.action, got, tc.want)
			}
		})
	}
}

func TestLimiterBlocksOverLimit(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t)
	limiter := NewLimiter(c, nil, nil)
	ctx := context.Background()

	user := &database.User{ID: 1, TelegramID: 42, SubscriptionType: database.SubscriptionFree}

	for i := 0; i < 3; i++ {
		verdict, err := limiter.Allow(ctx, user, database.ActivityTextAnalyzed)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if verdict != VerdictAllowed {
			t.Fatalf("request %d verdict = %v, want allowed", i+1, verdict)
		}
	}

	verdict, err := limiter.Allow(ctx, user, database.ActivityTextAnalyzed)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if verdict != VerdictLimited {
		t.Errorf("4th request verdict = %v, want limited", verdict)
	}
}

func TestLimiterVIPUnlimited(t *testing.T) {
	t.Parallel()
	limiter := NewLimiter(nil, nil, nil)
	ctx := context.Background()

	user := &database.User{ID: 1, TelegramID: 42, SubscriptionType: database.SubscriptionVIP}
	for i := 0; i < 50; i++ {
		verdict, err := limiter.Allow(ctx, user, database.ActivityTextAnalyzed)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if verdict != VerdictAllowed {
			t.Fatalf("VIP request %d verdict = %v, want allowed", i+1, verdict)
		}
	}
}

func TestLimiterRefund(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t)
	limiter := NewLimiter(c, nil, nil)
	ctx := context.Background()

	user := &database.User{ID: 1, TelegramID: 42, SubscriptionType: database.SubscriptionFree}

	for i := 0; i < 3; i++ {
		if verdict, _ := limiter.Allow(ctx, user, database.ActivityTextAnalyzed); verdict != VerdictAllowed {
			t.Fatalf("request %d verdict = %v, want allowed", i+1, verdict)
		}
	}
	if verdict, _ := limiter.Allow(ctx, user, database.ActivityTextAnalyzed); verdict != VerdictLimited {
		t.Fatalf("verdict at limit = %v, want limited", verdict)
	}

	// Returning two units (the denied attempt consumed one) frees a slot.
	limiter.Refund(ctx, user, database.ActivityTextAnalyzed)
	limiter.Refund(ctx, user, database.ActivityTextAnalyzed)

	if verdict, _ := limiter.Allow(ctx, user, database.ActivityTextAnalyzed); verdict != VerdictAllowed {
		t.Errorf("verdict after refund = %v, want allowed", verdict)
	}
}

func TestDecrementDailyCounterFloorsAtZero(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.DecrementDailyCounter(ctx, "rate_limit:42:text_analysis"); err != nil {
		t.Fatalf("DecrementDailyCounter() error = %v", err)
	}
	got, err := c.GetCounter(ctx, "rate_limit:42:text_analysis")
	if err != nil {
		t.Fatalf("GetCounter() error = %v", err)
	}
	if got != 0 {
		t.Errorf("counter after underflow = %d, want 0", got)
	}
}

type fakeCounter struct{ count int }

func (f *fakeCounter) CountActivitiesSince(context.Context, int64, string, time.Time) (int, error) {
	return f.count, nil
}

func TestLimiterDatabaseFallback(t *testing.T) {
	t.Parallel()
	c, mr := newTestCache(t)
	ctx := context.Background()

	user := &database.User{ID: 1, TelegramID: 42, SubscriptionType: database.SubscriptionFree}

	// Kill the Redis backend so the limiter has to use the fallback.
	mr.Close()

	limiter := NewLimiter(c, &fakeCounter{count: 3}, nil)
	verdict, err := limiter.Allow(ctx, user, database.ActivityTextAnalyzed)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if verdict != VerdictLimited {
		t.Errorf("fallback verdict = %v, want limited", verdict)
	}

	limiter = NewLimiter(c, &fakeCounter{count: 1}, nil)
	verdict, err = limiter.Allow(ctx, user, database.ActivityTextAnalyzed)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if verdict != VerdictAllowed {
		t.Errorf("fallback verdict = %v, want allowed", verdict)
	}

	limiter = NewLimiter(c, nil, nil)
	verdict, _ = limiter.Allow(ctx, user, database.ActivityTextAnalyzed)
	if verdict != VerdictUnavailable {
		t.Errorf("no-backend verdict = %v, want unavailable", verdict)
	}
}
