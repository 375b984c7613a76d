package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avdotin/psychodetective/internal/database"
	"github.com/avdotin/psychodetective/internal/service"
)

// NewAnalyzeHandler returns a handler for the /analyze command. Text passed
// after the command is analyzed immediately; a bare /analyze prompts for it.
func NewAnalyzeHandler(deps HandlerDeps) bot.HandlerFunc {
	return analyzeHandler{deps}.Handle
}

type analyzeHandler struct {
	deps HandlerDeps
}

func (h analyzeHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	user := UserFromContext(ctx)
	if update.Message == nil || user == nil {
		return
	}
	chatID := update.Message.Chat.ID

	text := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/analyze"))
	if text == "" {
		beginAnalysis(ctx, h.deps, b, chatID, user)
		return
	}
	runAnalysis(ctx, h.deps, b, chatID, user, text)
}

// runAnalysis executes the analysis pipeline and reports the result or a
// user-friendly failure.
func runAnalysis(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID int64, user *database.User, text string) {
	log := deps.Logger.With("handler", "analyze")

	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.BotMsgAnalyzing})

	analysis, err := deps.Analysis.Analyze(ctx, user, text)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRateLimited):
			_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.BotMsgRateLimited})
		case errors.Is(err, service.ErrQuotaExceeded):
			_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.BotMsgQuotaExceeded})
		case errors.Is(err, database.ErrValidation):
			_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.BotMsgProvideText})
		default:
			log.ErrorContext(ctx, "Analysis failed", "user_id", user.ID, "error", err)
			sendError(ctx, deps, b, chatID)
		}
		return
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   formatAnalysis(analysis),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send analysis result", "error", err, "chat_id", chatID)
	}
}

func formatAnalysis(a *database.TextAnalysis) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s Токсичность: %.1f/10\n", riskEmoji(a.ToxicityScore), a.ToxicityScore))
	sb.WriteString(fmt.Sprintf("Срочность: %s\n", urgencyRu(a.UrgencyLevel)))

	if len(a.PatternsDetected) > 0 {
		sb.WriteString("\nОбнаруженные приёмы:\n")
		for _, p := range a.PatternsDetected {
			sb.WriteString("• " + p + "\n")
		}
	}
	if len(a.RedFlags) > 0 {
		sb.WriteString("\n🚩 Тревожные сигналы:\n")
		for _, f := range a.RedFlags {
			sb.WriteString("• " + f + "\n")
		}
	}
	if a.AnalysisText != "" {
		sb.WriteString("\n" + a.AnalysisText + "\n")
	}
	if a.Recommendation != "" {
		sb.WriteString("\n💡 " + a.Recommendation)
	}
	return sb.String()
}

func riskEmoji(score float64) string {
	switch {
	case score >= 7:
		return "🔴"
	case score >= 4:
		return "🟡"
	default:
		return "🟢"
	}
}

func urgencyRu(u database.UrgencyLevel) string {
	switch u {
	case database.UrgencyLow:
		return "низкая"
	case database.UrgencyMedium:
		return "средняя"
	case database.UrgencyHigh:
		return "высокая"
	case database.UrgencyCritical:
		return "критическая — позаботьтесь о своей безопасности"
	default:
		return string(u)
	}
}
