// Package activitylog appends one human-readable line per fired alert to a
// file per calendar day and prunes old days.
package activitylog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/logger"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/storage"
)

const (
	fileExt         = ".log"
	cleanupInterval = time.Hour
)

// Log writes YYYY-MM-DD.log files under dir.
type Log struct {
	dir       string
	retention time.Duration
	loc       *time.Location

	mu          sync.Mutex
	lastCleanup time.Time
	now         func() time.Time
}

// New creates a log rooted at dir. Days are cut in loc; files older than
// retention are removed opportunistically.
func New(dir string, retention time.Duration, loc *time.Location) *Log {
	if loc == nil {
		loc = time.UTC
	}
	return &Log{dir: dir, retention: retention, loc: loc, now: time.Now}
}

// Line renders one entry: [HH:MM:SS] SYMBOL (Name) ↑/↓ N.NN%
func Line(symbol, name string, changePct decimal.Decimal, ts time.Time) string {
	name = strings.NewReplacer("\r", " ", "\n", " ").Replace(name)
	return fmt.Sprintf("[%s] %s (%s) %s %s%%",
		ts.Format("15:04:05"),
		storage.SanitizeKey(symbol),
		name,
		models.DirectionOf(changePct).Arrow(),
		changePct.Abs().StringFixed(2),
	)
}

// Path returns the file that holds entries for the day of ts.
func (l *Log) Path(ts time.Time) string {
	return filepath.Join(l.dir, ts.In(l.loc).Format(models.DateLayout)+fileExt)
}

// Append writes one line for an alert, creating the directory when absent.
func (l *Log) Append(symbol, name string, changePct decimal.Decimal, ts time.Time) error {
	l.maybeCleanup()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(l.Path(ts), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(Line(symbol, name, changePct, ts.In(l.loc)) + "\n"); err != nil {
		return fmt.Errorf("failed to append activity log: %w", err)
	}
	return nil
}

func (l *Log) maybeCleanup() {
	l.mu.Lock()
	now := l.now()
	if !l.lastCleanup.IsZero() && now.Sub(l.lastCleanup) < cleanupInterval {
		l.mu.Unlock()
		return
	}
	l.lastCleanup = now
	l.mu.Unlock()

	l.Cleanup(now)
}

// Cleanup removes day files whose modification time is older than the
// retention window. Failures are logged, never returned.
func (l *Log) Cleanup(now time.Time) int {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to list activity logs in %s: %v", l.dir, err)
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			logger.Warn("Failed to stat activity log %s: %v", e.Name(), err)
			continue
		}
		if now.Sub(info.ModTime()) <= l.retention {
			continue
		}
		if err := os.Remove(filepath.Join(l.dir, e.Name())); err != nil {
			logger.Warn("Failed to remove old activity log %s: %v", e.Name(), err)
			continue
		}
		logger.Debug("Removed old activity log %s", e.Name())
		removed++
	}
	return removed
}
