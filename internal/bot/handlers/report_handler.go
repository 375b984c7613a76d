package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewReportHandler returns a handler for the /report command. It expects a
// profile ID: /report 42. Registered behind RequirePremium.
func NewReportHandler(deps HandlerDeps) bot.HandlerFunc {
	return reportHandler{deps}.Handle
}

type reportHandler struct {
	deps HandlerDeps
}

func (h reportHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	user := UserFromContext(ctx)
	if update.Message == nil || user == nil {
		return
	}
	chatID := update.Message.Chat.ID

	arg := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/report"))
	profileID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Укажите номер портрета: /report <id>. Список портретов — в /history.",
		})
		return
	}

	sendProfileReport(ctx, h.deps, b, chatID, user, profileID)
}
