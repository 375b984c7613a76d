package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	tgbot "github.com/go-telegram/bot"
)

func (s *Server) handleWebhookInfo(c *gin.Context) {
	info, err := s.tgBot.GetWebhookInfo(c.Request.Context())
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "Failed to fetch webhook info", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch webhook info"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":                    info.URL,
		"pending_update_count":   info.PendingUpdateCount,
		"has_custom_certificate": info.HasCustomCertificate,
		"last_error_message":     info.LastErrorMessage,
	})
}

// handleWebhookSet points Telegram at the configured webhook URL. A url in
// the request body overrides the configured one.
func (s *Server) handleWebhookSet(c *gin.Context) {
	var body struct {
		URL string `json:"url"`
	}
	_ = c.ShouldBindJSON(&body)

	url := body.URL
	if url == "" {
		url = s.cfg.WebhookURL
	}
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no webhook url configured or provided"})
		return
	}

	ok, err := s.tgBot.SetWebhook(c.Request.Context(), &tgbot.SetWebhookParams{URL: url})
	if err != nil || !ok {
		s.logger.ErrorContext(c.Request.Context(), "Failed to set webhook", "url", url, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to set webhook"})
		return
	}

	s.logger.InfoContext(c.Request.Context(), "Webhook set", "url", url)
	c.JSON(http.StatusOK, gin.H{"ok": true, "url": url})
}

func (s *Server) handleWebhookDelete(c *gin.Context) {
	ok, err := s.tgBot.DeleteWebhook(c.Request.Context(), &tgbot.DeleteWebhookParams{DropPendingUpdates: false})
	if err != nil || !ok {
		s.logger.ErrorContext(c.Request.Context(), "Failed to delete webhook", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to delete webhook"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
