package handlers

import (
	"log/slog"
	"sync"

	"github.com/avdotin/psychodetective/internal/config"
	"github.com/avdotin/psychodetective/internal/database"
	"github.com/avdotin/psychodetective/internal/questionnaire"
	"github.com/avdotin/psychodetective/internal/report"
	"github.com/avdotin/psychodetective/internal/service"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger        *slog.Logger
	Config        *config.Config
	Store         database.Store
	Sessions      *questionnaire.Manager
	Analysis      *service.AnalysisService
	Profiles      *service.ProfileService
	Compatibility *service.CompatibilityService
	Subscriptions *service.SubscriptionService
	Content       *service.ContentService
	Reports       *report.Generator

	// AwaitingText tracks users who pressed "analyze" and owe us a message.
	AwaitingText *AwaitingSet
	// AwaitingEdit tracks users who started the profile edit flow.
	AwaitingEdit *AwaitingSet
}

// AwaitingSet is a concurrent set of Telegram user IDs.
type AwaitingSet struct {
	mu  sync.Mutex
	ids map[int64]bool
}

// NewAwaitingSet creates an empty set.
func NewAwaitingSet() *AwaitingSet {
	return &AwaitingSet{ids: make(map[int64]bool)}
}

// Add marks the user as awaiting.
func (s *AwaitingSet) Add(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = true
}

// Take reports whether the user was awaiting and clears the mark.
func (s *AwaitingSet) Take(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ids[id] {
		return false
	}
	delete(s.ids, id)
	return true
}
