package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHistoryHandler returns a handler for the /history command.
func NewHistoryHandler(deps HandlerDeps) bot.HandlerFunc {
	return historyHandler{deps}.Handle
}

type historyHandler struct {
	deps HandlerDeps
}

func (h historyHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	user := UserFromContext(ctx)
	if update.Message == nil || user == nil {
		return
	}
	sendHistory(ctx, h.deps, b, update.Message.Chat.ID, user)
}

// NewSubscribeHandler returns a handler for the /subscribe command.
func NewSubscribeHandler(deps HandlerDeps) bot.HandlerFunc {
	return subscribeHandler{deps}.Handle
}

type subscribeHandler struct {
	deps HandlerDeps
}

func (h subscribeHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	user := UserFromContext(ctx)
	if update.Message == nil || user == nil {
		return
	}
	sendPlans(ctx, h.deps, b, update.Message.Chat.ID, user)
}
