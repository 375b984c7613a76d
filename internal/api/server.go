// Package api exposes the HTTP surface of the bot: health checks, the
// analytics endpoints, and Telegram webhook delivery and management.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbot "github.com/go-telegram/bot"
	"github.com/jmoiron/sqlx"

	"github.com/avdotin/psychodetective/internal/cache"
	"github.com/avdotin/psychodetective/internal/config"
	"github.com/avdotin/psychodetective/internal/database"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the gin engine and the underlying http.Server.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     database.Store
	db        *sqlx.DB
	cache     *cache.Cache
	tgBot     *tgbot.Bot
	engine    *gin.Engine
	srv       *http.Server
	startedAt time.Time
}

// NewServer builds the HTTP server with all routes registered. The cache may
// be nil when Redis is unavailable; the detailed health check reports it as
// degraded in that case.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	store database.Store,
	db *sqlx.DB,
	c *cache.Cache,
	tgBot *tgbot.Bot,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:       cfg,
		logger:    logger.With("component", "api_server"),
		store:     store,
		db:        db,
		cache:     c,
		tgBot:     tgBot,
		engine:    engine,
		startedAt: time.Now().UTC(),
	}
	s.registerRoutes()

	s.srv = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	health := s.engine.Group("/api/health")
	{
		health.GET("", s.handleHealth)
		health.GET("/detailed", s.handleHealthDetailed)
		health.GET("/ready", s.handleReady)
		health.GET("/live", s.handleLive)
		health.GET("/config", s.handleConfigInfo)
	}

	analytics := s.engine.Group("/api/analytics")
	{
		analytics.GET("/overview", s.handleOverview)
		analytics.GET("/users", s.handleUsers)
		analytics.GET("/usage", s.handleUsage)
		analytics.GET("/revenue", s.handleRevenue)
		analytics.GET("/retention", s.handleRetention)
	}

	if s.tgBot != nil {
		s.engine.POST("/webhook", gin.WrapH(s.tgBot.WebhookHandler()))
		s.engine.GET("/webhook/info", s.handleWebhookInfo)
		s.engine.POST("/webhook/set", s.handleWebhookSet)
		s.engine.DELETE("/webhook", s.handleWebhookDelete)
	}
}

// Start runs the HTTP listener until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	s.logger.Info("HTTP server stopped gracefully.")
	return nil
}

// Handler exposes the underlying engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
