package tasks

import (
	"context"
	"fmt"
	"time"
)

// newSQLMaintenanceTask creates the weekly VACUUM/ANALYZE maintenance run.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		start := time.Now()
		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "Database maintenance failed", "error", err, "duration", time.Since(start))
			return fmt.Errorf("database maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(start))
		return nil
	}
}
