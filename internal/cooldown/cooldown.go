// Package cooldown persists the symbol → last-alert timestamp map that keeps
// a symbol from alerting more than once per cooldown window.
package cooldown

import (
	"context"
	"errors"
	"time"
)

// ErrCorrupt reports a cache payload that could not be decoded. Load returns
// an empty map alongside it.
var ErrCorrupt = errors.New("cooldown cache is corrupt")

// Entries maps a symbol to its last alert time in epoch milliseconds.
type Entries map[string]int64

// Cache loads and saves the whole cooldown map.
type Cache interface {
	Load(ctx context.Context) (Entries, error)
	Save(ctx context.Context, entries Entries) error
	Close() error
}

// PurgeExpired returns a copy of entries without those older than window,
// measured against now, and the number of entries removed.
func PurgeExpired(entries Entries, window time.Duration, now time.Time) (Entries, int) {
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()
	kept := make(Entries, len(entries))
	removed := 0
	for symbol, ts := range entries {
		if nowMs-ts > windowMs {
			removed++
			continue
		}
		kept[symbol] = ts
	}
	return kept, removed
}

// Active reports whether symbol alerted within window of now.
func (e Entries) Active(symbol string, window time.Duration, now time.Time) bool {
	ts, ok := e[symbol]
	if !ok {
		return false
	}
	return now.UnixMilli()-ts <= window.Milliseconds()
}

// Mark records an alert for symbol at now.
func (e Entries) Mark(symbol string, now time.Time) {
	e[symbol] = now.UnixMilli()
}
