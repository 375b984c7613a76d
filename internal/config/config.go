// Package config provides configuration loading, validation, and management
// for the PsychoDetective application. It handles reading from YAML files,
// BOT_* environment variables, setting default values, and validating
// configuration parameters.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config defines the application configuration parameters for all components
// of the PsychoDetective system: logging, Telegram transport, AI integration,
// database, cache, HTTP API, and the scheduler.
type Config struct {
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogJSON  bool   `koanf:"log_json"`

	BotToken    string  `koanf:"bot_token"     validate:"required"`
	BotAdminIDs []int64 `koanf:"bot_admin_ids"`

	// WebhookURL switches the bot from long polling to webhook delivery
	// through the HTTP server when set.
	WebhookURL string `koanf:"webhook_url" validate:"omitempty,url"`

	BotMsgWelcome          string `koanf:"bot_msg_welcome"`
	BotMsgMenu             string `koanf:"bot_msg_menu"`
	BotMsgGeneralError     string `koanf:"bot_msg_general_error"`
	BotMsgBlocked          string `koanf:"bot_msg_blocked"`
	BotMsgRateLimited      string `koanf:"bot_msg_rate_limited"`
	BotMsgQuotaExceeded    string `koanf:"bot_msg_quota_exceeded"`
	BotMsgPremiumRequired  string `koanf:"bot_msg_premium_required"`
	BotMsgAnalyzing        string `koanf:"bot_msg_analyzing"`
	BotMsgProvideText      string `koanf:"bot_msg_provide_text"`
	BotMsgSupport          string `koanf:"bot_msg_support"`
	BotMsgHelp             string `koanf:"bot_msg_help"`
	BotMsgProfileStarted   string `koanf:"bot_msg_profile_started"`
	BotMsgReportPreparing  string `koanf:"bot_msg_report_preparing"`

	AIAPIKey        string        `koanf:"ai_api_key"        validate:"required"`
	AIModel         string        `koanf:"ai_model"`
	AITimeout       time.Duration `koanf:"ai_timeout"        validate:"min=1s,max=10m"`
	AIRetryAttempts int           `koanf:"ai_retry_attempts" validate:"min=0,max=10"`
	AIRetryDelay    time.Duration `koanf:"ai_retry_delay"    validate:"min=0"`
	AITemperature   float32       `koanf:"ai_temperature"    validate:"min=0,max=2"`

	DBPath   string `koanf:"db_path"`
	RedisURL string `koanf:"redis_url"`

	// ReportFontPath points to a TTF with Cyrillic coverage used in PDF
	// reports.
	ReportFontPath string `koanf:"report_font_path"`

	HTTPAddr string `koanf:"http_addr"`

	FreeAnalysesLimit int `koanf:"free_analyses_limit" validate:"min=1"`
	FreeProfilesLimit int `koanf:"free_profiles_limit" validate:"min=1"`

	SchedulerTasks map[string]TaskConfig `koanf:"scheduler_tasks"`
}

// TaskConfig describes a single scheduled task entry.
type TaskConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Schedule string `koanf:"schedule"`
}

// IsAdmin reports whether the given Telegram user ID belongs to a
// configured administrator.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.BotAdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Load reads configuration from config.yaml and BOT_* environment variables,
// sets default values for optional fields, and validates the result. If the
// config file doesn't exist, defaults plus environment variables are used.
func Load() (*Config, error) {
	startTime := time.Now()
	slog.Info("loading configuration")

	config := &Config{}
	setDefaults(config)

	configPath := "config.yaml"
	k := koanf.New(".")
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to load configuration file", "error", err, "path", configPath)
			return nil, err
		}
		slog.Info("configuration file not found, using defaults", "path", configPath)
	}

	// Environment variables override file values: BOT_AI_API_KEY -> ai_api_key.
	if err := k.Load(env.Provider("BOT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "BOT_"))
	}), nil); err != nil {
		slog.Error("failed to load environment configuration", "error", err)
		return nil, err
	}

	if err := k.Unmarshal("", config); err != nil {
		slog.Error("failed to parse configuration", "error", err)
		return nil, err
	}

	if err := validator.New().Struct(config); err != nil {
		slog.Error("configuration validation failed", "error", err)
		return nil, err
	}

	slog.Info("configuration loaded successfully",
		"log_level", config.LogLevel,
		"ai_model", config.AIModel,
		"db_path", config.DBPath,
		"webhook_mode", config.WebhookURL != "",
		"duration_ms", time.Since(startTime).Milliseconds())

	return config, nil
}

func setDefaults(config *Config) {
	config.LogLevel = "info"
	config.LogJSON = true

	config.AIModel = "gemini-2.0-flash"
	config.AITimeout = 2 * time.Minute
	config.AIRetryAttempts = 3
	config.AIRetryDelay = 2 * time.Second
	config.AITemperature = 0.7

	config.DBPath = "storage.db"
	config.ReportFontPath = "assets/fonts/DejaVuSans.ttf"
	config.RedisURL = "redis://localhost:6379/0"
	config.HTTPAddr = ":8080"

	config.FreeAnalysesLimit = 3
	config.FreeProfilesLimit = 1

	config.BotMsgWelcome = "Привет! Я PsychoDetective — помогу разобраться в отношениях. Откройте /menu, чтобы начать."
	config.BotMsgMenu = "Выберите действие:"
	config.BotMsgGeneralError = "Произошла ошибка. Попробуйте позже."
	config.BotMsgBlocked = "Доступ к боту ограничен."
	config.BotMsgRateLimited = "Лимит исчерпан. Лимит обновится через 24 часа. Оформите подписку, чтобы увеличить лимиты."
	config.BotMsgQuotaExceeded = "Вы использовали все бесплатные анализы. Оформите Premium, чтобы продолжить."
	config.BotMsgPremiumRequired = "Эта функция доступна только с подпиской Premium."
	config.BotMsgAnalyzing = "Анализирую... Это может занять до минуты."
	config.BotMsgProvideText = "Отправьте текст переписки для анализа."
	config.BotMsgSupport = "Напишите нам: support@psychodetective.ai"
	config.BotMsgHelp = "Команды:\n/menu — главное меню\n/analyze — анализ переписки\n/profile — профиль партнера\n/report — PDF-отчет по портрету\n/settings — ваш профиль\n/help — помощь\n/support — поддержка"
	config.BotMsgProfileStarted = "Начинаем профилирование партнера. Отвечайте на вопросы подробно."
	config.BotMsgReportPreparing = "Готовлю PDF-отчет..."

	config.SchedulerTasks = map[string]TaskConfig{
		"subscription_expiry": {Enabled: true, Schedule: "0 * * * *"},
		"daily_content":       {Enabled: true, Schedule: "0 9 * * *"},
		"quota_reset":         {Enabled: true, Schedule: "0 0 1 * *"},
		"sql_maintenance":     {Enabled: true, Schedule: "0 4 * * 0"},
	}
}
