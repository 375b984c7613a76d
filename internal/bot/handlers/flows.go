package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avdotin/psychodetective/internal/database"
	"github.com/avdotin/psychodetective/internal/questionnaire"
	"github.com/avdotin/psychodetective/internal/service"
)

// Shared flow entry points, used by both command handlers and the inline
// menu callbacks.

func beginAnalysis(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID int64, user *database.User) {
	deps.AwaitingText.Add(user.TelegramID)

	text := deps.Config.BotMsgProvideText
	if remaining := user.AnalysesRemaining(); remaining >= 0 {
		text = fmt.Sprintf("%s\n\nОсталось анализов сегодня: %d.", text, remaining)
	}
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to prompt for analysis text", "error", err, "chat_id", chatID)
	}
}

func beginQuestionnaire(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID int64, user *database.User, kind questionnaire.Kind) {
	deps.Sessions.Start(user.TelegramID, kind)

	intro := deps.Config.BotMsgProfileStarted
	if kind == questionnaire.KindCompatibility {
		intro = "Начинаем тест на совместимость. Сначала вы ответите за себя, потом — за партнёра."
	}
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   intro + "\n\nКак зовут вашего партнёра?",
	})
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to start questionnaire", "error", err, "chat_id", chatID)
	}
}

// askCurrentQuestion sends the session's pending question with its answer
// options as a one-time reply keyboard.
func askCurrentQuestion(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID int64, session *questionnaire.Session) {
	q := session.Current()
	if q == nil {
		return
	}
	pos, total := session.Progress()

	prefix := ""
	if session.Kind == questionnaire.KindCompatibility && session.Stage == questionnaire.StagePartnerAnswers {
		prefix = "Теперь ответьте за партнёра.\n\n"
	}

	rows := make([][]models.KeyboardButton, 0, len(q.Options))
	for _, opt := range q.Options {
		rows = append(rows, []models.KeyboardButton{{Text: opt}})
	}

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("%sВопрос %d из %d\n\n%s", prefix, pos, total, q.Text),
		ReplyMarkup: &models.ReplyKeyboardMarkup{
			Keyboard:        rows,
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		},
	})
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to send question", "error", err, "chat_id", chatID)
	}
}

func sendHistory(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID int64, user *database.User) {
	log := deps.Logger.With("handler", "history")

	analyses, err := deps.Analysis.History(ctx, user.ID, 5)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load analyses", "user_id", user.ID, "error", err)
		sendError(ctx, deps, b, chatID)
		return
	}
	profiles, err := deps.Profiles.List(ctx, user.ID, 5)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load profiles", "user_id", user.ID, "error", err)
		sendError(ctx, deps, b, chatID)
		return
	}

	if len(analyses) == 0 && len(profiles) == 0 {
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "История пока пуста. Начните с анализа переписки в /menu.",
		})
		return
	}

	var sb strings.Builder
	if len(analyses) > 0 {
		sb.WriteString("📜 Последние анализы:\n")
		for _, a := range analyses {
			sb.WriteString(fmt.Sprintf("• %s — токсичность %.1f/10 (%s)\n",
				a.CreatedAt.Format("02.01.2006"), a.ToxicityScore, a.UrgencyLevel))
		}
	}
	if len(profiles) > 0 {
		sb.WriteString("\n👤 Профили партнёров:\n")
		for _, p := range profiles {
			sb.WriteString(fmt.Sprintf("• %s (%s) — риск %.1f/10\n",
				p.PartnerName, p.CreatedAt.Format("02.01.2006"), p.ManipulationRisk))
		}
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: sb.String()})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send history", "error", err, "chat_id", chatID)
	}
}

func sendPlans(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID int64, user *database.User) {
	var rows [][]models.InlineKeyboardButton
	for _, plan := range service.Plans() {
		label := fmt.Sprintf("%s, %d мес — %.0f ₽", plan.Tier, plan.Months, plan.PriceRUB)
		data := fmt.Sprintf("%s%s:%d", cbBuyPrefix, plan.Tier, plan.Months)
		rows = append(rows, []models.InlineKeyboardButton{{Text: label, CallbackData: data}})
	}

	text := fmt.Sprintf("Ваш тариф: %s.\n\nPremium: расширенные лимиты и PDF-отчёты.\nVIP: без ограничений.",
		user.SubscriptionType)
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: &models.InlineKeyboardMarkup{InlineKeyboard: rows},
	})
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to send plans", "error", err, "chat_id", chatID)
	}
}

func sendError(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID int64) {
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   deps.Config.BotMsgGeneralError,
	})
}
