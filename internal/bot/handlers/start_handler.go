package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")
	user := UserFromContext(ctx)
	if update.Message == nil || user == nil {
		return
	}

	log.InfoContext(ctx, "Handling /start command", "user_id", user.ID, "chat_id", update.Message.Chat.ID)

	greeting := fmt.Sprintf("%s, %s", user.DisplayName(), h.deps.Config.BotMsgWelcome)
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      update.Message.Chat.ID,
		Text:        greeting,
		ReplyMarkup: mainMenuKeyboard(),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send welcome message", "error", err, "chat_id", update.Message.Chat.ID)
	}
}
