package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleHealthDetailed probes every external dependency. The overall status
// degrades to "degraded" when Redis is down (the bot keeps working on the
// database fallback) and to "unhealthy" when the database is unreachable.
func (s *Server) handleHealthDetailed(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	overall := "ok"

	checks := gin.H{}

	if err := s.db.PingContext(ctx); err != nil {
		checks["database"] = gin.H{"status": "down", "error": err.Error()}
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = gin.H{"status": "up"}
	}

	if s.cache == nil {
		checks["redis"] = gin.H{"status": "disabled"}
		if overall == "ok" {
			overall = "degraded"
		}
	} else if err := s.cache.Ping(ctx); err != nil {
		checks["redis"] = gin.H{"status": "down", "error": err.Error()}
		if overall == "ok" {
			overall = "degraded"
		}
	} else {
		checks["redis"] = gin.H{"status": "up"}
	}

	c.JSON(status, gin.H{
		"status": overall,
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
		"checks": checks,
	})
}

// handleReady reports readiness: the server can serve traffic only when the
// database answers.
func (s *Server) handleReady(c *gin.Context) {
	if err := s.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

func (s *Server) handleLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alive": true})
}

// handleConfigInfo returns the non-secret parts of the runtime configuration.
func (s *Server) handleConfigInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"log_level":           s.cfg.LogLevel,
		"ai_model":            s.cfg.AIModel,
		"free_analyses_limit": s.cfg.FreeAnalysesLimit,
		"free_profiles_limit": s.cfg.FreeProfilesLimit,
		"webhook_configured":  s.cfg.WebhookURL != "",
		"redis_enabled":       s.cache != nil,
	})
}
