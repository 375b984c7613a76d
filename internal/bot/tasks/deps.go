// Package tasks implements the scheduled background jobs: subscription
// expiry, daily content delivery, monthly quota reset, and database
// maintenance.
package tasks

import (
	"log/slog"

	tgbot "github.com/go-telegram/bot"

	"github.com/avdotin/psychodetective/internal/config"
	"github.com/avdotin/psychodetective/internal/database"
	"github.com/avdotin/psychodetective/internal/service"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger        *slog.Logger
	Config        *config.Config
	Store         database.Store
	Subscriptions *service.SubscriptionService
	Content       *service.ContentService
	TGBot         *tgbot.Bot
}
