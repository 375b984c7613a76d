package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avdotin/psychodetective/internal/database"
	"github.com/avdotin/psychodetective/internal/questionnaire"
	"github.com/avdotin/psychodetective/internal/service"
)

// NewMessageHandler returns the default handler for plain text messages. It
// routes questionnaire answers and awaited analysis submissions; anything
// else gets a pointer to the menu.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	user := UserFromContext(ctx)
	if update.Message == nil || user == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	if session := h.deps.Sessions.Get(user.TelegramID); session != nil {
		h.handleSessionInput(ctx, b, chatID, user, session, text)
		return
	}

	if h.deps.AwaitingText.Take(user.TelegramID) {
		runAnalysis(ctx, h.deps, b, chatID, user, text)
		return
	}

	if h.deps.AwaitingEdit.Take(user.TelegramID) {
		handleProfileEdit(ctx, h.deps, b, chatID, user, text)
		return
	}

	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        h.deps.Config.BotMsgMenu,
		ReplyMarkup: mainMenuKeyboard(),
	})
}

func (h messageHandler) handleSessionInput(ctx context.Context, b *bot.Bot, chatID int64, user *database.User, session *questionnaire.Session, text string) {
	if session.Stage == questionnaire.StagePartnerName {
		session.SetPartnerName(text)
		askCurrentQuestion(ctx, h.deps, b, chatID, session)
		return
	}

	done := session.Answer(text)
	if !done {
		askCurrentQuestion(ctx, h.deps, b, chatID, session)
		return
	}

	h.deps.Sessions.Finish(user.TelegramID)
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        h.deps.Config.BotMsgAnalyzing,
		ReplyMarkup: &models.ReplyKeyboardRemove{RemoveKeyboard: true},
	})

	switch session.Kind {
	case questionnaire.KindCompatibility:
		h.finishCompatibility(ctx, b, chatID, user, session)
	default:
		h.finishProfile(ctx, b, chatID, user, session)
	}
}

func (h messageHandler) finishProfile(ctx context.Context, b *bot.Bot, chatID int64, user *database.User, session *questionnaire.Session) {
	log := h.deps.Logger.With("handler", "profile_flow")

	profile, err := h.deps.Profiles.Create(ctx, user, session)
	if err != nil {
		h.reportServiceError(ctx, b, chatID, log, err)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👤 Портрет партнёра: %s\n\n", profile.PartnerName))
	sb.WriteString(fmt.Sprintf("%s Риск манипуляций: %.1f/10\n", riskEmoji(profile.ManipulationRisk), profile.ManipulationRisk))
	sb.WriteString(fmt.Sprintf("Тип личности: %s\n", profile.PersonalityType))
	sb.WriteString(fmt.Sprintf("Срочность: %s\n", urgencyRu(profile.UrgencyLevel)))
	if len(profile.RedFlags) > 0 {
		sb.WriteString("\n🚩 Тревожные сигналы:\n")
		for _, f := range profile.RedFlags {
			sb.WriteString("• " + f + "\n")
		}
	}
	if profile.PsychologicalProfile != "" {
		sb.WriteString("\n" + profile.PsychologicalProfile)
	}

	var markup models.ReplyMarkup
	if user.SubscriptionType.IsPremium() {
		markup = &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "📄 Скачать PDF-отчёт", CallbackData: fmt.Sprintf("%s%d", cbReportPrefix, profile.ID)},
			}},
		}
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        sb.String(),
		ReplyMarkup: markup,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send profile result", "error", err, "chat_id", chatID)
	}
}

func (h messageHandler) finishCompatibility(ctx context.Context, b *bot.Bot, chatID int64, user *database.User, session *questionnaire.Session) {
	log := h.deps.Logger.With("handler", "compatibility_flow")

	test, err := h.deps.Compatibility.Run(ctx, user, session)
	if err != nil {
		h.reportServiceError(ctx, b, chatID, log, err)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💞 Совместимость с %s: %.0f%%\n\n", test.PartnerName, test.OverallScore*100))
	sb.WriteString(fmt.Sprintf("Общение: %.0f%%\n", test.CommunicationScore*100))
	sb.WriteString(fmt.Sprintf("Ценности: %.0f%%\n", test.ValuesScore*100))
	sb.WriteString(fmt.Sprintf("Образ жизни: %.0f%%\n", test.LifestyleScore*100))
	sb.WriteString(fmt.Sprintf("Эмоции: %.0f%%\n", test.EmotionalScore*100))
	if len(test.Strengths) > 0 {
		sb.WriteString("\n💪 Сильные стороны:\n")
		for _, s := range test.Strengths {
			sb.WriteString("• " + s + "\n")
		}
	}
	if len(test.Challenges) > 0 {
		sb.WriteString("\n⚠️ Зоны риска:\n")
		for _, c := range test.Challenges {
			sb.WriteString("• " + c + "\n")
		}
	}
	if test.Advice != "" {
		sb.WriteString("\n" + test.Advice)
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: sb.String()})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send compatibility result", "error", err, "chat_id", chatID)
	}
}

func (h messageHandler) reportServiceError(ctx context.Context, b *bot.Bot, chatID int64, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrRateLimited):
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.deps.Config.BotMsgRateLimited})
	case errors.Is(err, service.ErrQuotaExceeded):
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.deps.Config.BotMsgQuotaExceeded})
	default:
		log.ErrorContext(ctx, "Questionnaire flow failed", "error", err)
		sendError(ctx, h.deps, b, chatID)
	}
}
