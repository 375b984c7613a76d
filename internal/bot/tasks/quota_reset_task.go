package tasks

import (
	"context"
	"fmt"
	"time"
)

// newQuotaResetTask creates the monthly reset of free-tier analysis quotas.
func newQuotaResetTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "quota_reset")

	return func(ctx context.Context) error {
		start := time.Now()
		affected, err := deps.Store.ResetFreeQuotas(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Quota reset failed", "error", err, "duration", time.Since(start))
			return fmt.Errorf("free quota reset failed: %w", err)
		}

		log.InfoContext(ctx, "Free quotas reset", "users", affected, "duration", time.Since(start))
		return nil
	}
}
