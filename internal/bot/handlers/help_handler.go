package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return staticReplyHandler{deps, deps.Config.BotMsgHelp}.Handle
}

// NewSupportHandler returns a handler for the /support command.
func NewSupportHandler(deps HandlerDeps) bot.HandlerFunc {
	return staticReplyHandler{deps, deps.Config.BotMsgSupport}.Handle
}

// staticReplyHandler answers any message with a fixed text.
type staticReplyHandler struct {
	deps HandlerDeps
	text string
}

func (h staticReplyHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   h.text,
	})
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send static reply", "error", err, "chat_id", update.Message.Chat.ID)
	}
}
