package tasks

import (
	"context"
	"fmt"
	"time"
)

// newSubscriptionExpiryTask creates the hourly sweep that deactivates
// subscriptions past their end date and downgrades their owners.
func newSubscriptionExpiryTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "subscription_expiry")

	return func(ctx context.Context) error {
		start := time.Now()
		count, err := deps.Subscriptions.ExpireDue(ctx, time.Now().UTC())
		if err != nil {
			log.ErrorContext(ctx, "Expiry sweep failed", "error", err, "duration", time.Since(start))
			return fmt.Errorf("subscription expiry sweep failed: %w", err)
		}

		if count > 0 {
			log.InfoContext(ctx, "Expired subscriptions", "count", count, "duration", time.Since(start))
		}
		return nil
	}
}
