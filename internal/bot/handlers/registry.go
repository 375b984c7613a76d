package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a handler with its match rule and middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all bot commands and
// the callback handler. Every entry carries the Auth middleware; admin
// commands additionally carry AdminOnly.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	auth := []tgbot.Middleware{Auth(deps)}
	admin := []tgbot.Middleware{Auth(deps), AdminOnly(deps)}
	premium := []tgbot.Middleware{Auth(deps), RequirePremium(deps)}

	handlers := make(map[string]RegisteredHandler)

	command := func(name string, h tgbot.HandlerFunc, mw []tgbot.Middleware) {
		handlers["/"+name] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     name,
			Handler:     h,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  mw,
		}
	}

	command("start", NewStartHandler(deps), auth)
	command("menu", NewMenuHandler(deps), auth)
	command("analyze", NewAnalyzeHandler(deps), auth)
	command("profile", NewProfileHandler(deps), auth)
	command("compatibility", NewCompatibilityHandler(deps), auth)
	command("history", NewHistoryHandler(deps), auth)
	command("subscribe", NewSubscribeHandler(deps), auth)
	command("settings", NewSettingsHandler(deps), auth)
	command("report", NewReportHandler(deps), premium)
	command("help", NewHelpHandler(deps), auth)
	command("support", NewSupportHandler(deps), auth)
	command("stats", NewStatsHandler(deps), admin)

	handlers["callbacks"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     "",
		Handler:     NewCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
		Middleware:  auth,
	}

	return handlers
}
