package activitylog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLine(t *testing.T) {
	ts := time.Date(2024, time.March, 4, 9, 5, 7, 0, time.UTC)
	tests := []struct {
		name   string
		symbol string
		label  string
		change string
		want   string
	}{
		{name: "up", symbol: "AAPL", label: "Apple", change: "6", want: "[09:05:07] AAPL (Apple) ↑ 6.00%"},
		{name: "down", symbol: "BTC-USD", label: "Bitcoin", change: "-5.456", want: "[09:05:07] BTC-USD (Bitcoin) ↓ 5.46%"},
		{name: "sanitized symbol", symbol: "../x", label: "Bad", change: "5", want: "[09:05:07] .._x (Bad) ↑ 5.00%"},
		{name: "newline in name", symbol: "TSLA", label: "Tesla\nInc", change: "7.1", want: "[09:05:07] TSLA (Tesla Inc) ↑ 7.10%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Line(tt.symbol, tt.label, decimal.RequireFromString(tt.change), ts)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppend_PartitionsByDay(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "diary_logs")
	l := New(dir, 30*24*time.Hour, time.UTC)

	day1 := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	for _, ts := range []time.Time{day1, day1.Add(time.Minute), day2} {
		if err := l.Append("AAPL", "Apple", decimal.NewFromInt(6), ts); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "2024-03-04.log"))
	if err != nil {
		t.Fatalf("day file missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 lines on day 1, got %d", len(lines))
	}
	if _, err := os.Stat(filepath.Join(dir, "2024-03-05.log")); err != nil {
		t.Errorf("day 2 file missing: %v", err)
	}
}

func TestAppend_UsesConfiguredTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	dir := t.TempDir()
	l := New(dir, 30*24*time.Hour, loc)

	// 23:30 UTC is already the next day in Madrid.
	ts := time.Date(2024, time.March, 4, 23, 30, 0, 0, time.UTC)
	if err := l.Append("AAPL", "Apple", decimal.NewFromInt(6), ts); err != nil {
		t.Fatalf("Append: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "2024-03-05.log"))
	if err != nil {
		t.Fatalf("expected Madrid-dated file: %v", err)
	}
	if !strings.HasPrefix(string(data), "[00:30:00]") {
		t.Errorf("time not rendered in Madrid: %q", data)
	}
}

func TestCleanup_RemovesOnlyOldLogs(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, 30*24*time.Hour, time.UTC)
	now := time.Now()

	write := func(name string, age time.Duration) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		mt := now.Add(-age)
		if err := os.Chtimes(p, mt, mt); err != nil {
			t.Fatal(err)
		}
		return p
	}
	old := write("2024-01-01.log", 31*24*time.Hour)
	recent := write("2024-02-20.log", 2*24*time.Hour)
	other := write("notes.txt", 90*24*time.Hour)

	if got := l.Cleanup(now); got != 1 {
		t.Errorf("Cleanup removed %d files, want 1", got)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old log should be removed")
	}
	for _, p := range []string{recent, other} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should be kept: %v", filepath.Base(p), err)
		}
	}
}

func TestCleanup_RunsAtMostHourly(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, time.Hour, time.UTC)
	clock := time.Now()
	l.now = func() time.Time { return clock }

	if err := l.Append("AAPL", "Apple", decimal.NewFromInt(6), clock); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dir, "2000-01-01.log")
	if err := os.WriteFile(stale, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mt := clock.Add(-48 * time.Hour)
	if err := os.Chtimes(stale, mt, mt); err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(30 * time.Minute)
	_ = l.Append("AAPL", "Apple", decimal.NewFromInt(6), clock)
	if _, err := os.Stat(stale); err != nil {
		t.Fatal("cleanup should not run again within the hour")
	}

	clock = clock.Add(31 * time.Minute)
	_ = l.Append("AAPL", "Apple", decimal.NewFromInt(6), clock)
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("cleanup should run once the hour has passed")
	}
}

func TestCleanup_MissingDirIsQuiet(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "absent"), time.Hour, time.UTC)
	if got := l.Cleanup(time.Now()); got != 0 {
		t.Errorf("Cleanup on missing dir = %d", got)
	}
}
