package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avdotin/psychodetective/internal/database"
)

// NewSettingsHandler returns a handler for the /settings command: it shows
// the user's own profile and starts the edit flow.
func NewSettingsHandler(deps HandlerDeps) bot.HandlerFunc {
	return settingsHandler{deps}.Handle
}

type settingsHandler struct {
	deps HandlerDeps
}

func (h settingsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	user := UserFromContext(ctx)
	if update.Message == nil || user == nil {
		return
	}
	beginProfileEdit(ctx, h.deps, b, update.Message.Chat.ID, user)
}

// beginProfileEdit shows the current profile data and, if the monthly edit
// window allows it, asks for a replacement.
func beginProfileEdit(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID int64, user *database.User) {
	var sb strings.Builder
	sb.WriteString("⚙️ Ваш профиль\n\n")
	sb.WriteString(fmt.Sprintf("Имя: %s\n", orDash(user.Name)))
	sb.WriteString(fmt.Sprintf("Пол: %s\n", orDash(user.Gender)))
	sb.WriteString(fmt.Sprintf("Возраст: %s\n", orDash(user.AgeGroup)))
	sb.WriteString(fmt.Sprintf("О себе: %s\n", orDash(user.Bio)))

	if !user.CanEditProfile(time.Now()) {
		next := user.LastProfileEdit.Time.Add(30 * 24 * time.Hour)
		sb.WriteString(fmt.Sprintf("\nПрофиль можно менять раз в 30 дней. Следующее изменение: %s.",
			next.Format("02.01.2006")))
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: sb.String()})
		return
	}

	sb.WriteString("\nЧтобы изменить профиль, отправьте одним сообщением:\n")
	sb.WriteString("Имя; пол; возраст; о себе\n\n")
	sb.WriteString("Например: Анна; женский; 25-34; люблю путешествия")

	deps.AwaitingEdit.Add(user.TelegramID)
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: sb.String()})
}

// handleProfileEdit parses the submitted profile line and persists it.
func handleProfileEdit(ctx context.Context, deps HandlerDeps, b *bot.Bot, chatID int64, user *database.User, text string) {
	log := deps.Logger.With("handler", "settings")

	// Re-check: the prompt may be answered days later.
	if !user.CanEditProfile(time.Now()) {
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Профиль можно менять раз в 30 дней.",
		})
		return
	}

	name, gender, age, bio, err := parseProfileInput(text)
	if err != nil {
		deps.AwaitingEdit.Add(user.TelegramID)
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Не получилось разобрать профиль. Формат: Имя; пол; возраст; о себе",
		})
		return
	}

	user.Name = name
	user.Gender = gender
	user.AgeGroup = age
	user.Bio = bio
	if err := deps.Store.UpdateUserProfile(ctx, user); err != nil {
		log.ErrorContext(ctx, "Failed to update user profile", "user_id", user.ID, "error", err)
		sendError(ctx, deps, b, chatID)
		return
	}

	log.InfoContext(ctx, "User profile updated", "user_id", user.ID)
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   "✅ Профиль обновлён. Следующее изменение будет доступно через 30 дней.",
	})
}

// parseProfileInput splits "Имя; пол; возраст; о себе". Name is required,
// the rest may be empty.
func parseProfileInput(text string) (name, gender, age, bio string, err error) {
	parts := strings.Split(text, ";")
	if len(parts) < 1 || len(parts) > 4 {
		return "", "", "", "", fmt.Errorf("%w: expected up to 4 fields", database.ErrValidation)
	}
	get := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}
	name = get(0)
	if name == "" {
		return "", "", "", "", fmt.Errorf("%w: name is required", database.ErrValidation)
	}
	return name, get(1), get(2), get(3), nil
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
