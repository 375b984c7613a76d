package tasks

import (
	"context"
)

// ScheduledTaskFunc is the signature of all scheduled tasks. The context is
// provided by the scheduler and must be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks initializes and returns the scheduled task registry. Map
// keys match the scheduler_tasks keys in the configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		"subscription_expiry": newSubscriptionExpiryTask(deps),
		"daily_content":       newDailyContentTask(deps),
		"quota_reset":         newQuotaResetTask(deps),
		"sql_maintenance":     newSQLMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
