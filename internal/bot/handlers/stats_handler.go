package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStatsHandler returns a handler for the admin /stats command.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	ov, err := h.deps.Store.AnalyticsOverview(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to compute overview", "error", err)
		sendError(ctx, h.deps, b, chatID)
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 Статистика\n\n")
	sb.WriteString(fmt.Sprintf("Пользователей: %d\n", ov.TotalUsers))
	sb.WriteString(fmt.Sprintf("Активных за 7 дней: %d\n", ov.ActiveUsers7d))
	sb.WriteString(fmt.Sprintf("Анализов: %d\n", ov.TotalAnalyses))
	sb.WriteString(fmt.Sprintf("Профилей: %d\n", ov.TotalProfiles))
	sb.WriteString(fmt.Sprintf("Тестов совместимости: %d\n", ov.TotalCompatibilityTests))
	sb.WriteString("\nПодписки:\n")
	for tier, count := range ov.SubscriptionDistribution {
		sb.WriteString(fmt.Sprintf("• %s: %d\n", tier, count))
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: sb.String()})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send stats", "error", err, "chat_id", chatID)
	}
}
