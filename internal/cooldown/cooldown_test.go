package cooldown

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

var now = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

func TestPurgeExpired(t *testing.T) {
	window := 360 * time.Minute
	entries := Entries{
		"FRESH":   now.Add(-10 * time.Minute).UnixMilli(),
		"EDGE":    now.Add(-window).UnixMilli(),
		"EXPIRED": now.Add(-window - time.Millisecond).UnixMilli(),
		"OLD":     now.Add(-48 * time.Hour).UnixMilli(),
	}

	kept, removed := PurgeExpired(entries, window, now)
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok := kept["FRESH"]; !ok {
		t.Error("FRESH should be kept")
	}
	if _, ok := kept["EDGE"]; !ok {
		t.Error("entry exactly at the window edge should be kept")
	}
	for symbol, ts := range kept {
		if now.UnixMilli()-ts > window.Milliseconds() {
			t.Errorf("%s survived purge but is older than the window", symbol)
		}
	}
	if len(entries) != 4 {
		t.Error("PurgeExpired must not mutate its input")
	}
}

func TestEntriesActiveAndMark(t *testing.T) {
	window := time.Hour
	e := Entries{}
	if e.Active("AAPL", window, now) {
		t.Fatal("unknown symbol should not be active")
	}
	e.Mark("AAPL", now)
	if !e.Active("AAPL", window, now.Add(window)) {
		t.Error("entry should still be active at the window edge")
	}
	if e.Active("AAPL", window, now.Add(window+time.Millisecond)) {
		t.Error("entry should expire after the window")
	}
}

func TestFileCache_MissingFileIsEmpty(t *testing.T) {
	c := NewFileCache(filepath.Join(t.TempDir(), "alert_cache.json"))
	entries, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty map, got %v", entries)
	}
}

func TestFileCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "alert_cache.json")
	c := NewFileCache(path)
	ctx := context.Background()

	want := Entries{"AAPL": 1709553600000, "BTC-USD": 1709550000000}
	if err := c.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got["AAPL"] != want["AAPL"] || got["BTC-USD"] != want["BTC-USD"] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFileCache_Decode(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Entries
		corrupt bool
	}{
		{name: "flat", content: `{"AAPL": 1700000000000}`, want: Entries{"AAPL": 1700000000000}},
		{name: "legacy wrapper", content: `{"date": "2024-03-04", "alerts": {"TSLA": 1700000000000, "MSFT": 1700000001000}}`, want: Entries{"TSLA": 1700000000000, "MSFT": 1700000001000}},
		{name: "legacy empty alerts", content: `{"date": "2024-03-04", "alerts": {}}`, want: Entries{}},
		{name: "float timestamp", content: `{"AAPL": 1700000000000.0}`, want: Entries{"AAPL": 1700000000000}},
		{name: "non-numeric value dropped", content: `{"AAPL": "soon", "MSFT": 5}`, want: Entries{"MSFT": 5}},
		{name: "empty file", content: ``, want: Entries{}},
		{name: "truncated json", content: `{"AAPL": 17`, want: Entries{}, corrupt: true},
		{name: "array", content: `[1, 2]`, want: Entries{}, corrupt: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "alert_cache.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			got, err := NewFileCache(path).Load(context.Background())
			if errors.Is(err, ErrCorrupt) != tt.corrupt {
				t.Fatalf("Load() error = %v, corrupt %v", err, tt.corrupt)
			}
			if got == nil {
				t.Fatal("Load must never return a nil map")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %d, want %d", k, got[k], v)
				}
			}
		})
	}
}

func TestFileCache_SaveNormalizesLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert_cache.json")
	if err := os.WriteFile(path, []byte(`{"date":"2024-03-04","alerts":{"TSLA":42}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewFileCache(path)
	ctx := context.Background()
	entries, _ := c.Load(ctx)
	if err := c.Save(ctx, entries); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var raw map[string]any
	data, _ := os.ReadFile(path)
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["alerts"]; ok {
		t.Errorf("saved file still nested: %s", data)
	}
	if raw["TSLA"] != float64(42) {
		t.Errorf("TSLA missing from flat file: %s", data)
	}
}

func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("STOCKALERT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STOCKALERT_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	key := "stockalert:test:" + t.Name()
	c, err := NewRedisCache(ctx, RedisOptions{Addr: addr, Key: key})
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() {
		_ = c.client.Del(ctx, key).Err()
		_ = c.Close()
	})

	if err := c.Save(ctx, Entries{"AAPL": 1, "MSFT": 2}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := c.Save(ctx, Entries{"MSFT": 3}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got["MSFT"] != 3 {
		t.Errorf("save should replace the hash, got %v", got)
	}

	if err := c.client.HSet(ctx, key, "BAD", "x").Err(); err != nil {
		t.Fatal(err)
	}
	got, err = c.Load(ctx)
	if !errors.Is(err, ErrCorrupt) || got["MSFT"] != 3 {
		t.Errorf("Load() = %v, %v; want MSFT kept and ErrCorrupt", got, err)
	}
}

func TestRedisCache_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	c := NewRedisCacheWithClient(client, "")
	t.Cleanup(func() { _ = c.Close() })

	entries, err := c.Load(ctx)
	if err == nil {
		t.Fatal("expected an error from an unreachable server")
	}
	if entries == nil {
		t.Error("Load must return an empty map on failure")
	}
}
