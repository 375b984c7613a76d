package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avdotin/psychodetective/internal/questionnaire"
)

// NewProfileHandler returns a handler for the /profile command.
func NewProfileHandler(deps HandlerDeps) bot.HandlerFunc {
	return profileHandler{deps}.Handle
}

type profileHandler struct {
	deps HandlerDeps
}

func (h profileHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	user := UserFromContext(ctx)
	if update.Message == nil || user == nil {
		return
	}
	beginQuestionnaire(ctx, h.deps, b, update.Message.Chat.ID, user, questionnaire.KindProfile)
}

// NewCompatibilityHandler returns a handler for the /compatibility command.
func NewCompatibilityHandler(deps HandlerDeps) bot.HandlerFunc {
	return compatibilityHandler{deps}.Handle
}

type compatibilityHandler struct {
	deps HandlerDeps
}

func (h compatibilityHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	user := UserFromContext(ctx)
	if update.Message == nil || user == nil {
		return
	}
	beginQuestionnaire(ctx, h.deps, b, update.Message.Chat.ID, user, questionnaire.KindCompatibility)
}
