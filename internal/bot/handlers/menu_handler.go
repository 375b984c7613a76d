package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Callback data prefixes for inline menu actions.
const (
	cbAnalyze       = "menu:analyze"
	cbProfile       = "menu:profile"
	cbCompatibility = "menu:compatibility"
	cbHistory       = "menu:history"
	cbSubscribe     = "menu:subscribe"
	cbHelp          = "menu:help"
	cbSettings      = "menu:settings"
	cbBuyPrefix     = "buy:"    // buy:<tier>:<months>
	cbPaidPrefix    = "paid:"   // paid:<subscription_id>
	cbReportPrefix  = "report:" // report:<profile_id>
	cbLikePrefix    = "like:"   // like:<content_id>
)

func mainMenuKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "🔍 Анализ переписки", CallbackData: cbAnalyze},
			},
			{
				{Text: "👤 Профиль партнёра", CallbackData: cbProfile},
				{Text: "💞 Совместимость", CallbackData: cbCompatibility},
			},
			{
				{Text: "📜 История", CallbackData: cbHistory},
				{Text: "⭐ Подписка", CallbackData: cbSubscribe},
			},
			{
				{Text: "⚙️ Настройки", CallbackData: cbSettings},
				{Text: "ℹ️ Помощь", CallbackData: cbHelp},
			},
		},
	}
}

// NewMenuHandler returns a handler for the /menu command.
func NewMenuHandler(deps HandlerDeps) bot.HandlerFunc {
	return menuHandler{deps}.Handle
}

type menuHandler struct {
	deps HandlerDeps
}

func (h menuHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      update.Message.Chat.ID,
		Text:        h.deps.Config.BotMsgMenu,
		ReplyMarkup: mainMenuKeyboard(),
	})
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send menu", "error", err, "chat_id", update.Message.Chat.ID)
	}
}
