// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/avdotin/psychodetective/internal/database"
)

type ctxKey int

const userCtxKey ctxKey = iota

// UserFromContext returns the authenticated user attached by the Auth
// middleware, or nil.
func UserFromContext(ctx context.Context) *database.User {
	user, _ := ctx.Value(userCtxKey).(*database.User)
	return user
}

// senderOf extracts the Telegram sender from message or callback updates.
func senderOf(update *models.Update) *models.User {
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From
	}
	if update.CallbackQuery != nil {
		return &update.CallbackQuery.From
	}
	return nil
}

// chatIDOf extracts the chat to answer in. Zero means unknown.
func chatIDOf(update *models.Update) int64 {
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil {
		return update.CallbackQuery.Message.Message.Chat.ID
	}
	return 0
}

// Auth creates the middleware that upserts the sender as a user, refuses
// blocked users, and attaches the user row to the context. Every handler
// behind this middleware can rely on UserFromContext returning non-nil.
func Auth(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			sender := senderOf(update)
			if sender == nil {
				next(ctx, b, update)
				return
			}
			log := deps.Logger.With("middleware", "auth")

			user, err := deps.Store.UpsertUser(ctx, &database.User{
				TelegramID:   sender.ID,
				Username:     sender.Username,
				FirstName:    sender.FirstName,
				LastName:     sender.LastName,
				LanguageCode: sender.LanguageCode,
			})
			if err != nil {
				log.ErrorContext(ctx, "Failed to upsert user", "telegram_id", sender.ID, "error", err)
				if chatID := chatIDOf(update); chatID != 0 {
					_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
						ChatID: chatID,
						Text:   deps.Config.BotMsgGeneralError,
					})
				}
				return
			}

			if user.IsBlocked {
				log.WarnContext(ctx, "Blocked user attempted access", "telegram_id", sender.ID)
				if chatID := chatIDOf(update); chatID != 0 {
					_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
						ChatID: chatID,
						Text:   deps.Config.BotMsgBlocked,
					})
				}
				return
			}

			next(context.WithValue(ctx, userCtxKey, user), b, update)
		}
	}
}

// AdminOnly creates a middleware restricting a handler to configured
// administrators.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			sender := senderOf(update)
			if sender == nil || !deps.Config.IsAdmin(sender.ID) {
				log := deps.Logger.With("middleware", "admin_only")
				if sender != nil {
					log.WarnContext(ctx, "Unauthorized admin command", "telegram_id", sender.ID)
				}
				if chatID := chatIDOf(update); chatID != 0 {
					_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
						ChatID: chatID,
						Text:   deps.Config.BotMsgBlocked,
					})
				}
				return
			}
			next(ctx, b, update)
		}
	}
}

// RequirePremium creates a middleware gating a handler behind a paid tier.
// Must be applied after Auth.
func RequirePremium(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			user := UserFromContext(ctx)
			if user == nil || !user.SubscriptionType.IsPremium() {
				if chatID := chatIDOf(update); chatID != 0 {
					_, _ = b.SendMessage(ctx, &tgbot.SendMessageParams{
						ChatID: chatID,
						Text:   deps.Config.BotMsgPremiumRequired,
					})
				}
				return
			}
			next(ctx, b, update)
		}
	}
}
