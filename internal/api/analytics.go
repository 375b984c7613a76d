package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultWindowDays = 30
	maxWindowDays     = 365
)

// windowSince resolves the `days` query parameter into a cutoff timestamp.
func windowSince(c *gin.Context) (time.Time, int) {
	days := defaultWindowDays
	if raw := c.Query("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}
	if days > maxWindowDays {
		days = maxWindowDays
	}
	return time.Now().UTC().AddDate(0, 0, -days), days
}

func (s *Server) analyticsError(c *gin.Context, operation string, err error) {
	s.logger.ErrorContext(c.Request.Context(), "Analytics query failed", "operation", operation, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "analytics query failed"})
}

func (s *Server) handleOverview(c *gin.Context) {
	overview, err := s.store.AnalyticsOverview(c.Request.Context())
	if err != nil {
		s.analyticsError(c, "overview", err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) handleUsers(c *gin.Context) {
	ctx := c.Request.Context()
	since, days := windowSince(c)

	newUsers, err := s.store.NewUsersByDay(ctx, since)
	if err != nil {
		s.analyticsError(c, "new_users", err)
		return
	}
	activeUsers, err := s.store.ActiveUsersByDay(ctx, since)
	if err != nil {
		s.analyticsError(c, "active_users", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"days":         days,
		"new_users":    newUsers,
		"active_users": activeUsers,
	})
}

func (s *Server) handleUsage(c *gin.Context) {
	ctx := c.Request.Context()
	since, days := windowSince(c)

	usage, err := s.store.UsageByDay(ctx, since)
	if err != nil {
		s.analyticsError(c, "usage_by_day", err)
		return
	}
	distribution, err := s.store.ActivityDistribution(ctx, since)
	if err != nil {
		s.analyticsError(c, "activity_distribution", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"days":                  days,
		"usage":                 usage,
		"activity_distribution": distribution,
	})
}

func (s *Server) handleRevenue(c *gin.Context) {
	since, days := windowSince(c)

	stats, err := s.store.RevenueStats(c.Request.Context(), since)
	if err != nil {
		s.analyticsError(c, "revenue", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "revenue": stats})
}

func (s *Server) handleRetention(c *gin.Context) {
	stats, err := s.store.RetentionStats(c.Request.Context(), time.Now().UTC())
	if err != nil {
		s.analyticsError(c, "retention", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
