// Package bot implements the core lifecycle management and component
// orchestration for the PsychoDetective Telegram bot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/avdotin/psychodetective/internal/api"
	"github.com/avdotin/psychodetective/internal/config"
)

// Bot represents the main application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	tgBot     *tgbot.Bot
	scheduler *Scheduler
	apiServer *api.Server
}

// NewBot wires the Telegram transport, the task scheduler, and the HTTP
// server into a single runnable unit.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	tgBot *tgbot.Bot,
	scheduler *Scheduler,
	apiServer *api.Server,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		tgBot:     tgBot,
		scheduler: scheduler,
		apiServer: apiServer,
	}
}

// Run starts all components and blocks until the context is cancelled or a
// component fails. Components are shut down gracefully in either case.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if b.cfg.WebhookURL != "" {
			b.logger.Info("Starting Telegram bot in webhook mode", "url", b.cfg.WebhookURL)
			b.tgBot.StartWebhook(gCtx)
		} else {
			b.logger.Info("Starting Telegram bot listener...")
			b.tgBot.Start(gCtx)
		}
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		if err := b.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		return b.apiServer.Start()
	})

	g.Go(func() error {
		<-gCtx.Done()
		return b.apiServer.Shutdown(context.Background())
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
