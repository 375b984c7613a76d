package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/avdotin/psychodetective/internal/database"
)

// ContentService manages the daily editorial content queue.
type ContentService struct {
	store  database.Store
	logger *slog.Logger
}

// NewContentService creates a content service.
func NewContentService(store database.Store, logger *slog.Logger) *ContentService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ContentService{
		store:  store,
		logger: logger.With("component", "content_service"),
	}
}

// Enqueue adds a content item to the publication queue.
func (s *ContentService) Enqueue(ctx context.Context, content *database.DailyContent) error {
	return s.store.SaveDailyContent(ctx, content)
}

// NextDue returns the oldest unpublished item that is due, along with the
// users who opted into daily tips. Returns nil content when nothing is due.
func (s *ContentService) NextDue(ctx context.Context, now time.Time) (*database.DailyContent, []database.User, error) {
	content, err := s.store.NextUnpublishedContent(ctx, now)
	if err != nil {
		return nil, nil, err
	}
	if content == nil {
		return nil, nil, nil
	}

	recipients, err := s.store.ListUsersWithDailyTips(ctx)
	if err != nil {
		return nil, nil, err
	}
	return content, recipients, nil
}

// MarkPublished flags an item as published after delivery.
func (s *ContentService) MarkPublished(ctx context.Context, id int64) error {
	return s.store.MarkContentPublished(ctx, id)
}

// TrackView records one view of a content item by a user.
func (s *ContentService) TrackView(ctx context.Context, userID, contentID int64) {
	if err := s.store.IncrementContentViews(ctx, contentID); err != nil {
		s.logger.WarnContext(ctx, "Failed to increment content views", "content_id", contentID, "error", err)
	}
	if err := s.store.LogActivity(ctx, userID, database.ActivityContentViewed, ""); err != nil {
		s.logger.WarnContext(ctx, "Failed to log content view", "user_id", userID, "error", err)
	}
}

// Like records one like of a content item by a user.
func (s *ContentService) Like(ctx context.Context, userID, contentID int64) error {
	if err := s.store.IncrementContentLikes(ctx, contentID); err != nil {
		return err
	}
	if err := s.store.LogActivity(ctx, userID, database.ActivityContentViewed, "like"); err != nil {
		s.logger.WarnContext(ctx, "Failed to log content like", "user_id", userID, "error", err)
	}
	return nil
}
