package database

import (
	"context"
	"fmt"
	"time"
)

// Overview holds headline counters for the analytics overview endpoint.
type Overview struct {
	TotalUsers               int            `json:"total_users"`
	ActiveUsers7d            int            `json:"active_users_7d"`
	TotalAnalyses            int            `json:"total_analyses"`
	TotalProfiles            int            `json:"total_profiles"`
	TotalCompatibilityTests  int            `json:"total_compatibility_tests"`
	SubscriptionDistribution map[string]int `json:"subscription_distribution"`
}

// DayCount is a per-day counter row.
type DayCount struct {
	Day   string `db:"day" json:"day"`
	Count int    `db:"count" json:"count"`
}

// UsageDay is a per-day breakdown of produced artifacts.
type UsageDay struct {
	Day      string `db:"day" json:"day"`
	Analyses int    `db:"analyses" json:"analyses"`
	Profiles int    `db:"profiles" json:"profiles"`
}

// RevenueStats aggregates completed subscription payments.
type RevenueStats struct {
	TotalRevenue    float64        `json:"total_revenue"`
	Currency        string         `json:"currency"`
	PaymentsCount   int            `json:"payments_count"`
	ByTier          map[string]int `json:"by_tier"`
	ActiveSubs      int            `json:"active_subscriptions"`
	CancelledSubs   int            `json:"cancelled_subscriptions"`
	AverageCheckRUB float64        `json:"average_check_rub"`
}

// RetentionStats holds returning-user counts over the standard windows.
type RetentionStats struct {
	ActiveUsers1d  int `json:"active_users_1d"`
	ActiveUsers7d  int `json:"active_users_7d"`
	ActiveUsers30d int `json:"active_users_30d"`
	TotalUsers     int `json:"total_users"`
}

func (s *sqlxStore) AnalyticsOverview(ctx context.Context) (*Overview, error) {
	ov := &Overview{SubscriptionDistribution: make(map[string]int)}

	counters := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM users;`, &ov.TotalUsers},
		{`SELECT COUNT(*) FROM users WHERE last_activity >= datetime('now', '-7 days');`, &ov.ActiveUsers7d},
		{`SELECT COUNT(*) FROM text_analyses;`, &ov.TotalAnalyses},
		{`SELECT COUNT(*) FROM partner_profiles;`, &ov.TotalProfiles},
		{`SELECT COUNT(*) FROM compatibility_tests;`, &ov.TotalCompatibilityTests},
	}
	for _, c := range counters {
		if err := s.db.GetContext(ctx, c.dest, c.query); err != nil {
			return nil, fmt.Errorf("failed to compute analytics overview: %w", err)
		}
	}

	var dist []struct {
		Tier  string `db:"subscription_type"`
		Count int    `db:"count"`
	}
	err := s.db.SelectContext(ctx, &dist,
		`SELECT subscription_type, COUNT(*) AS count FROM users GROUP BY subscription_type;`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute subscription distribution: %w", err)
	}
	for _, row := range dist {
		ov.SubscriptionDistribution[row.Tier] = row.Count
	}

	return ov, nil
}

func (s *sqlxStore) NewUsersByDay(ctx context.Context, since time.Time) ([]DayCount, error) {
	var rows []DayCount
	err := s.db.SelectContext(ctx, &rows, `
        SELECT date(created_at) AS day, COUNT(*) AS count
        FROM users
        WHERE created_at >= ?
        GROUP BY date(created_at)
        ORDER BY day ASC;`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute new users by day: %w", err)
	}
	return rows, nil
}

func (s *sqlxStore) ActiveUsersByDay(ctx context.Context, since time.Time) ([]DayCount, error) {
	var rows []DayCount
	err := s.db.SelectContext(ctx, &rows, `
        SELECT date(created_at) AS day, COUNT(DISTINCT user_id) AS count
        FROM user_activities
        WHERE created_at >= ?
        GROUP BY date(created_at)
        ORDER BY day ASC;`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute active users by day: %w", err)
	}
	return rows, nil
}

func (s *sqlxStore) ActivityDistribution(ctx context.Context, since time.Time) (map[string]int, error) {
	var rows []struct {
		Type  string `db:"activity_type"`
		Count int    `db:"count"`
	}
	err := s.db.SelectContext(ctx, &rows, `
        SELECT activity_type, COUNT(*) AS count
        FROM user_activities
        WHERE created_at >= ?
        GROUP BY activity_type;`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute activity distribution: %w", err)
	}
	dist := make(map[string]int, len(rows))
	for _, row := range rows {
		dist[row.Type] = row.Count
	}
	return dist, nil
}

func (s *sqlxStore) UsageByDay(ctx context.Context, since time.Time) ([]UsageDay, error) {
	var rows []UsageDay
	err := s.db.SelectContext(ctx, &rows, `
        SELECT day, SUM(analyses) AS analyses, SUM(profiles) AS profiles FROM (
            SELECT date(created_at) AS day, COUNT(*) AS analyses, 0 AS profiles
            FROM text_analyses WHERE created_at >= ? GROUP BY date(created_at)
            UNION ALL
            SELECT date(created_at) AS day, 0 AS analyses, COUNT(*) AS profiles
            FROM partner_profiles WHERE created_at >= ? GROUP BY date(created_at)
        )
        GROUP BY day
        ORDER BY day ASC;`, since, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute usage by day: %w", err)
	}
	return rows, nil
}

func (s *sqlxStore) RevenueStats(ctx context.Context, since time.Time) (*RevenueStats, error) {
	stats := &RevenueStats{Currency: "RUB", ByTier: make(map[string]int)}

	var totals struct {
		Revenue float64 `db:"revenue"`
		Count   int     `db:"count"`
	}
	err := s.db.GetContext(ctx, &totals, `
        SELECT COALESCE(SUM(price), 0) AS revenue, COUNT(*) AS count
        FROM subscriptions
        WHERE payment_status = ? AND payment_date >= ?;`,
		PaymentCompleted, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute revenue totals: %w", err)
	}
	stats.TotalRevenue = totals.Revenue
	stats.PaymentsCount = totals.Count
	if totals.Count > 0 {
		stats.AverageCheckRUB = totals.Revenue / float64(totals.Count)
	}

	var byTier []struct {
		Tier  string `db:"subscription_type"`
		Count int    `db:"count"`
	}
	err = s.db.SelectContext(ctx, &byTier, `
        SELECT subscription_type, COUNT(*) AS count
        FROM subscriptions
        WHERE payment_status = ? AND payment_date >= ?
        GROUP BY subscription_type;`,
		PaymentCompleted, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute revenue by tier: %w", err)
	}
	for _, row := range byTier {
		stats.ByTier[row.Tier] = row.Count
	}

	if err := s.db.GetContext(ctx, &stats.ActiveSubs,
		`SELECT COUNT(*) FROM subscriptions WHERE is_active = 1;`); err != nil {
		return nil, fmt.Errorf("failed to count active subscriptions: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.CancelledSubs,
		`SELECT COUNT(*) FROM subscriptions WHERE is_cancelled = 1;`); err != nil {
		return nil, fmt.Errorf("failed to count cancelled subscriptions: %w", err)
	}

	return stats, nil
}

func (s *sqlxStore) RetentionStats(ctx context.Context, now time.Time) (*RetentionStats, error) {
	stats := &RetentionStats{}
	windows := []struct {
		days int
		dest *int
	}{
		{1, &stats.ActiveUsers1d},
		{7, &stats.ActiveUsers7d},
		{30, &stats.ActiveUsers30d},
	}
	for _, w := range windows {
		since := now.AddDate(0, 0, -w.days)
		err := s.db.GetContext(ctx, w.dest,
			`SELECT COUNT(DISTINCT user_id) FROM user_activities WHERE created_at >= ?;`, since)
		if err != nil {
			return nil, fmt.Errorf("failed to compute %d-day retention: %w", w.days, err)
		}
	}
	if err := s.db.GetContext(ctx, &stats.TotalUsers, `SELECT COUNT(*) FROM users;`); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	return stats, nil
}
