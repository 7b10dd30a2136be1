package routes

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/panoptocord/panoptocord/internal/server"
	"github.com/panoptocord/panoptocord/internal/watcher"
)

func newStatusApp(t *testing.T, status watcher.Status) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	provider := server.StatusProviderFunc(func() watcher.Status { return status })
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Provider:   provider,
		ListenPort: 8080,
	})
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	RegisterStatusRoutes(app, provider)
	return app
}

func TestHealthzBeforeFirstSweep(t *testing.T) {
	app := newStatusApp(t, watcher.Status{})

	resp, err := app.Test(httptest.NewRequest("GET", "http://localhost/-/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("首轮 sweep 之前应返回 503，得到 %d", resp.StatusCode)
	}
}

func TestHealthzAfterSweep(t *testing.T) {
	app := newStatusApp(t, watcher.Status{
		Stats: watcher.Stats{
			LastSweepStarted: time.Now().Add(-time.Minute),
			LastSuccess:      time.Now().Add(-time.Minute),
		},
	})

	resp, err := app.Test(httptest.NewRequest("GET", "http://localhost/-/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", payload["status"])
	}
	if _, ok := payload["last_success_age"]; !ok {
		t.Fatalf("应包含 last_success_age 字段")
	}
}

func TestStatusPayloadOmitsTokens(t *testing.T) {
	app := newStatusApp(t, watcher.Status{
		Folders:      3,
		Watermark:    time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC),
		TokenExpires: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
		Stats:        watcher.Stats{SweepsTotal: 7},
	})

	resp, err := app.Test(httptest.NewRequest("GET", "http://localhost/-/status", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	for _, key := range []string{"version", "watermark", "folders", "token_expires", "stats"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("缺少字段 %q: %s", key, body)
		}
	}
	for _, forbidden := range []string{"accessToken", "refreshToken", "access_token", "refresh_token"} {
		if _, ok := payload[forbidden]; ok {
			t.Fatalf("状态接口不应暴露 %q", forbidden)
		}
	}

	var stats watcher.Stats
	if err := json.Unmarshal(payload["stats"], &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.SweepsTotal != 7 {
		t.Fatalf("stats 序列化不符: %+v", stats)
	}
}
