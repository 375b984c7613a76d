package tasks

import (
	"context"
	"fmt"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// newDailyContentTask creates the task that publishes the next due content
// item to every user who opted into daily tips.
func newDailyContentTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "daily_content")

	return func(ctx context.Context) error {
		start := time.Now()

		content, recipients, err := deps.Content.NextDue(ctx, time.Now().UTC())
		if err != nil {
			log.ErrorContext(ctx, "Failed to fetch due content", "error", err)
			return fmt.Errorf("daily content lookup failed: %w", err)
		}
		if content == nil {
			return nil
		}

		text := fmt.Sprintf("💡 *%s*\n\n%s", tgbot.EscapeMarkdown(content.Title), tgbot.EscapeMarkdown(content.Body))
		markup := &tgmodels.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgmodels.InlineKeyboardButton{{
				{Text: "👍 Полезно", CallbackData: fmt.Sprintf("like:%d", content.ID)},
			}},
		}

		var sent, failed int
		for _, user := range recipients {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			_, err := deps.TGBot.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID:      user.TelegramID,
				Text:        text,
				ParseMode:   tgmodels.ParseModeMarkdown,
				ReplyMarkup: markup,
			})
			if err != nil {
				failed++
				log.WarnContext(ctx, "Failed to deliver daily content", "user_id", user.TelegramID, "error", err)
				continue
			}
			sent++
			deps.Content.TrackView(ctx, user.ID, content.ID)
		}

		if err := deps.Content.MarkPublished(ctx, content.ID); err != nil {
			log.ErrorContext(ctx, "Failed to mark content published", "content_id", content.ID, "error", err)
			return fmt.Errorf("marking content %d published failed: %w", content.ID, err)
		}

		log.InfoContext(ctx, "Daily content published",
			"content_id", content.ID,
			"sent", sent,
			"failed", failed,
			"duration", time.Since(start))
		return nil
	}
}
