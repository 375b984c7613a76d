package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/avdotin/psychodetective/internal/config"
	"github.com/avdotin/psychodetective/internal/database"
)

func newTestServer(t *testing.T) (*Server, database.Store) {
	t.Helper()

	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	if err := database.ApplyMigrations(db.DB, "test"); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	store := database.NewStore(db, nil)

	cfg := &config.Config{
		LogLevel:          "info",
		AIModel:           "gemini-2.0-flash",
		HTTPAddr:          ":0",
		FreeAnalysesLimit: 3,
		FreeProfilesLimit: 1,
	}

	return NewServer(cfg, nil, store, db, nil, nil), store
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/health", "/api/health/ready", "/api/health/live", "/api/health/config"} {
		rec := doRequest(t, srv, http.MethodGet, path)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestHealthDetailedDegradedWithoutRedis(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/health/detailed")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want %q (redis disabled)", body.Status, "degraded")
	}
}

func TestAnalyticsOverviewEndpoint(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)
	ctx := context.Background()

	for _, tgID := range []int64{100, 101, 102} {
		if _, err := store.UpsertUser(ctx, &database.User{TelegramID: tgID}); err != nil {
			t.Fatalf("UpsertUser() error = %v", err)
		}
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/analytics/overview")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var overview database.Overview
	if err := json.Unmarshal(rec.Body.Bytes(), &overview); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if overview.TotalUsers != 3 {
		t.Errorf("TotalUsers = %d, want 3", overview.TotalUsers)
	}
	if overview.SubscriptionDistribution[string(database.SubscriptionFree)] != 3 {
		t.Errorf("free tier count = %d, want 3", overview.SubscriptionDistribution[string(database.SubscriptionFree)])
	}
}

func TestAnalyticsUsersWindowParam(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/analytics/users?days=7")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Days int `json:"days"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Days != 7 {
		t.Errorf("days = %d, want 7", body.Days)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/analytics/users?days=9999")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Days != maxWindowDays {
		t.Errorf("days = %d, want capped at %d", body.Days, maxWindowDays)
	}
}

func TestRetentionEndpoint(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)
	ctx := context.Background()

	user, err := store.UpsertUser(ctx, &database.User{TelegramID: 200})
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if err := store.LogActivity(ctx, user.ID, database.ActivityTextAnalyzed, ""); err != nil {
		t.Fatalf("LogActivity() error = %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/analytics/retention")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var stats database.RetentionStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stats.ActiveUsers1d != 1 {
		t.Errorf("ActiveUsers1d = %d, want 1", stats.ActiveUsers1d)
	}
}

func TestRevenueEndpointEmpty(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/analytics/revenue")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Revenue database.RevenueStats `json:"revenue"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Revenue.PaymentsCount != 0 {
		t.Errorf("PaymentsCount = %d, want 0", body.Revenue.PaymentsCount)
	}
}

func TestWebhookRoutesAbsentWithoutBot(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/webhook")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d when no bot is attached", rec.Code, http.StatusNotFound)
	}
}

func TestServerShutdownWithoutStart(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
