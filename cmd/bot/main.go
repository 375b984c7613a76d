// Package main contains the entrypoint for the PsychoDetective bot.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/avdotin/psychodetective/internal/ai"
	"github.com/avdotin/psychodetective/internal/api"
	"github.com/avdotin/psychodetective/internal/bot"
	"github.com/avdotin/psychodetective/internal/bot/handlers"
	"github.com/avdotin/psychodetective/internal/bot/tasks"
	"github.com/avdotin/psychodetective/internal/cache"
	"github.com/avdotin/psychodetective/internal/config"
	"github.com/avdotin/psychodetective/internal/database"
	"github.com/avdotin/psychodetective/internal/logger"
	"github.com/avdotin/psychodetective/internal/questionnaire"
	"github.com/avdotin/psychodetective/internal/report"
	"github.com/avdotin/psychodetective/internal/service"
	"github.com/avdotin/psychodetective/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all application components, blocks until shutdown, and
// returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.LogLevel, cfg.LogJSON)
	slog.SetDefault(log)

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.DBPath, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	// Redis is optional: without it the rate limiter falls back to counting
	// activity rows in the database.
	var redisCache *cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err = cache.New(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn("Redis unavailable, rate limiting will use the database fallback", "error", err)
			redisCache = nil
		} else {
			defer func() { _ = redisCache.Close() }()
		}
	}
	limiter := cache.NewLimiter(redisCache, store, log)

	aiClient, err := ai.NewClient(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize AI client", "error", err)
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger:        log,
		Config:        cfg,
		Store:         store,
		Sessions:      questionnaire.NewManager(),
		Analysis:      service.NewAnalysisService(store, aiClient, limiter, cfg.FreeAnalysesLimit, log),
		Profiles:      service.NewProfileService(store, aiClient, limiter, cfg.FreeProfilesLimit, log),
		Compatibility: service.NewCompatibilityService(store, aiClient, limiter, log),
		Subscriptions: service.NewSubscriptionService(store, log),
		Content:       service.NewContentService(store, log),
		Reports:       report.NewGenerator(cfg.ReportFontPath, log),
		AwaitingText:  handlers.NewAwaitingSet(),
		AwaitingEdit:  handlers.NewAwaitingSet(),
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.Auth(hDeps)(handlers.NewMessageHandler(hDeps))),
	}
	tg, err := telegram.NewTelegramBot(cfg.BotToken, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	me, err := tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", me.ID, "bot_username", me.Username)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger:        log,
		Config:        cfg,
		Store:         store,
		Subscriptions: hDeps.Subscriptions,
		Content:       hDeps.Content,
		TGBot:         tg,
	}
	sched, err := bot.NewScheduler(log, cfg.SchedulerTasks, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	apiServer := api.NewServer(cfg, log, store, db, redisCache, tg)

	app := bot.NewBot(log, cfg, tg, sched, apiServer)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
