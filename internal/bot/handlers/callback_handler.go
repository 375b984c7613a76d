package handlers

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avdotin/psychodetective/internal/database"
	"github.com/avdotin/psychodetective/internal/questionnaire"
)

// NewCallbackHandler returns the handler for all inline keyboard callbacks.
func NewCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return callbackHandler{deps}.Handle
}

type callbackHandler struct {
	deps HandlerDeps
}

func (h callbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	user := UserFromContext(ctx)
	if update.CallbackQuery == nil || user == nil {
		return
	}
	cq := update.CallbackQuery
	chatID := chatIDOf(update)
	log := h.deps.Logger.With("handler", "callback")

	// Acknowledge first so the button stops spinning.
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})
	if err != nil {
		log.WarnContext(ctx, "Failed to answer callback query", "error", err)
	}
	if chatID == 0 {
		return
	}

	data := cq.Data
	switch {
	case data == cbAnalyze:
		beginAnalysis(ctx, h.deps, b, chatID, user)
	case data == cbProfile:
		beginQuestionnaire(ctx, h.deps, b, chatID, user, questionnaire.KindProfile)
	case data == cbCompatibility:
		beginQuestionnaire(ctx, h.deps, b, chatID, user, questionnaire.KindCompatibility)
	case data == cbHistory:
		sendHistory(ctx, h.deps, b, chatID, user)
	case data == cbSubscribe:
		sendPlans(ctx, h.deps, b, chatID, user)
	case data == cbHelp:
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.deps.Config.BotMsgHelp})
	case strings.HasPrefix(data, cbBuyPrefix):
		h.handleBuy(ctx, b, chatID, user, strings.TrimPrefix(data, cbBuyPrefix))
	case strings.HasPrefix(data, cbPaidPrefix):
		h.handlePaid(ctx, b, chatID, user, strings.TrimPrefix(data, cbPaidPrefix))
	case strings.HasPrefix(data, cbReportPrefix):
		h.handleReport(ctx, b, chatID, user, strings.TrimPrefix(data, cbReportPrefix))
	case strings.HasPrefix(data, cbLikePrefix):
		h.handleLike(ctx, b, chatID, user, strings.TrimPrefix(data, cbLikePrefix))
	case data == cbSettings:
		beginProfileEdit(ctx, h.deps, b, chatID, user)
	default:
		log.WarnContext(ctx, "Unknown callback data", "data", data)
	}
}

// handleBuy creates a pending subscription and shows the payment step.
func (h callbackHandler) handleBuy(ctx context.Context, b *bot.Bot, chatID int64, user *database.User, arg string) {
	log := h.deps.Logger.With("handler", "buy")

	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 {
		return
	}
	months, err := strconv.Atoi(parts[1])
	if err != nil {
		return
	}
	tier := database.SubscriptionType(parts[0])

	sub, err := h.deps.Subscriptions.Purchase(ctx, user, tier, months)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create subscription", "user_id", user.ID, "error", err)
		sendError(ctx, h.deps, b, chatID)
		return
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text: fmt.Sprintf("Подписка %s на %d мес. К оплате: %.0f ₽.\nПосле оплаты нажмите кнопку ниже.",
			tier, months, sub.Price),
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "✅ Я оплатил(а)", CallbackData: fmt.Sprintf("%s%d", cbPaidPrefix, sub.ID)},
			}},
		},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send payment prompt", "error", err, "chat_id", chatID)
	}
}

// handlePaid confirms the payment and activates the subscription.
func (h callbackHandler) handlePaid(ctx context.Context, b *bot.Bot, chatID int64, user *database.User, arg string) {
	log := h.deps.Logger.With("handler", "paid")

	subID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}

	sub, err := h.deps.Subscriptions.Active(ctx, user.ID)
	if err == nil && sub != nil && sub.ID == subID {
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "Подписка уже активна."})
		return
	}

	paymentID := fmt.Sprintf("manual-%d-%d", user.TelegramID, subID)
	if err := h.deps.Subscriptions.ConfirmPayment(ctx, user.ID, subID, paymentID); err != nil {
		log.ErrorContext(ctx, "Failed to confirm payment", "subscription_id", subID, "error", err)
		sendError(ctx, h.deps, b, chatID)
		return
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   "🎉 Подписка активирована! Лимиты обновлены.",
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send activation message", "error", err, "chat_id", chatID)
	}
}

// handleReport renders the profile PDF and sends it as a document. Callbacks
// bypass RequirePremium, so the tier is checked here.
func (h callbackHandler) handleReport(ctx context.Context, b *bot.Bot, chatID int64, user *database.User, arg string) {
	if !user.SubscriptionType.IsPremium() {
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.deps.Config.BotMsgPremiumRequired})
		return
	}
	profileID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}
	sendProfileReport(ctx, h.deps, b, chatID, user, profileID)
}

// handleLike records a like on a daily content item.
func (h callbackHandler) handleLike(ctx context.Context, b *bot.Bot, chatID int64, user *database.User, arg string) {
	log := h.deps.Logger.With("handler", "like")

	contentID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}
	if err := h.deps.Content.Like(ctx, user.ID, contentID); err != nil {
		log.WarnContext(ctx, "Failed to record content like", "content_id", contentID, "error", err)
		return
	}
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "Спасибо за отклик! ❤️"})
}

// sendProfileReport renders the PDF for one of the user's profiles and sends
// it as a document.
func sendProfileReport(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID int64, user *database.User, profileID int64) {
	log := deps.Logger.With("handler", "report")

	profile, err := deps.Profiles.Get(ctx, user.ID, profileID)
	if err != nil {
		log.WarnContext(ctx, "Profile not available for report", "profile_id", profileID, "error", err)
		sendError(ctx, deps, b, chatID)
		return
	}

	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: deps.Config.BotMsgReportPreparing})

	data, err := deps.Reports.RenderProfile(profile, user)
	if err != nil {
		log.ErrorContext(ctx, "Failed to render report", "profile_id", profileID, "error", err)
		sendError(ctx, deps, b, chatID)
		return
	}

	_, err = b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: chatID,
		Document: &models.InputFileUpload{
			Filename: fmt.Sprintf("profile_%d.pdf", profile.ID),
			Data:     bytes.NewReader(data),
		},
		Caption: fmt.Sprintf("Психологический портрет: %s", profile.PartnerName),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send report document", "error", err, "chat_id", chatID)
	}
}
