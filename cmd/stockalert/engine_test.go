package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/config"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/events"
)

func chartServer(t *testing.T, closes ...float64) *httptest.Server {
	t.Helper()
	start := time.Now().UTC().AddDate(0, 0, -len(closes))
	ts := make([]int64, len(closes))
	for i := range closes {
		ts[i] = start.AddDate(0, 0, i).Unix()
	}
	body, _ := json.Marshal(map[string]any{
		"chart": map[string]any{
			"result": []any{map[string]any{
				"meta":       map[string]any{"symbol": "AAPL", "gmtoffset": 0},
				"timestamp":  ts,
				"indicators": map[string]any{"quote": []any{map[string]any{"close": closes}}},
			}},
			"error": nil,
		},
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func countingServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("", filepath.Join(t.TempDir(), "absent.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	dir := t.TempDir()
	assetsFile := filepath.Join(dir, "assets.yaml")
	if err := os.WriteFile(assetsFile, []byte("- symbol: AAPL\n  name: Apple\n  type: stock\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Monitor.AssetsFile = assetsFile
	cfg.Monitor.Timezone = "UTC"
	cfg.Monitor.SkipStocksOnWeekend = false
	cfg.Quotes.PacingDelay = 0
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	return cfg
}

func TestBuildEngine_TelegramOutageDoesNotStopMonitoring(t *testing.T) {
	cfg := testConfig(t)
	cfg.Quotes.BaseURLs = []string{chartServer(t, 100, 106).URL}

	emailSrv, emailHits := countingServer(t, http.StatusOK, `{"id":"msg_1"}`)
	cfg.Email = config.EmailConfig{ResendAPIKey: "re_test", From: "alerts@x.com", To: "me@x.com", APIURL: emailSrv.URL, Timeout: time.Second}

	webhookSrv, webhookHits := countingServer(t, http.StatusNoContent, "")
	cfg.Webhook = config.WebhookConfig{URL: webhookSrv.URL, Timeout: time.Second}

	tgSrv, _ := countingServer(t, http.StatusInternalServerError, `{"ok":false,"error_code":500,"description":"Internal Server Error"}`)
	cfg.Telegram = config.TelegramConfig{BotToken: "123:abc", ChatID: "42", APIEndpoint: tgSrv.URL + "/bot%s/%s", MaxRetries: 1, RetryDelayBase: time.Millisecond}

	rec := &events.Recorder{}
	e, err := buildEngine(context.Background(), cfg, rec)
	if err != nil {
		t.Fatalf("buildEngine must survive an unreachable Telegram API: %v", err)
	}
	defer e.Close()

	report, ok := e.monitor.RunCycle(context.Background())
	if !ok {
		t.Fatal("RunCycle refused to start")
	}
	if report.Alerts != 1 {
		t.Fatalf("alerts = %d, events = %v", report.Alerts, rec.Codes())
	}
	if emailHits.Load() != 1 || webhookHits.Load() != 1 {
		t.Errorf("email hits = %d, webhook hits = %d", emailHits.Load(), webhookHits.Load())
	}
	if rec.Count(events.NotifySent) != 2 || rec.Count(events.NotifyFailed) != 1 {
		t.Errorf("events = %v", rec.Codes())
	}
	for _, r := range rec.Records() {
		if r.Code == events.NotifyFailed {
			if ch, _ := r.Params.Get("channel"); ch != "telegram" {
				t.Errorf("failed channel = %v", ch)
			}
		}
	}
}

func TestBuildEngine_InvalidTelegramChatIDIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telegram = config.TelegramConfig{BotToken: "123:abc", ChatID: "not-a-number"}

	_, err := buildEngine(context.Background(), cfg, events.Nop{})
	if err == nil || !strings.Contains(err.Error(), "chat ID") {
		t.Errorf("expected chat ID error, got %v", err)
	}
}
