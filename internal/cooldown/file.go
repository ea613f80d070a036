package cooldown

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/storage"
)

// FileCache stores the map as a flat JSON object.
type FileCache struct {
	path string
}

// NewFileCache returns a cache backed by path.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Load reads the cache. A missing file yields an empty map; an undecodable
// one yields an empty map and ErrCorrupt. The older {"date", "alerts"} shape
// is flattened.
func (c *FileCache) Load(_ context.Context) (Entries, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entries{}, nil
		}
		return Entries{}, fmt.Errorf("failed to read cooldown cache: %w", err)
	}
	entries, err := decode(data)
	if err != nil {
		return Entries{}, err
	}
	return entries, nil
}

// Save overwrites the whole file.
func (c *FileCache) Save(_ context.Context, entries Entries) error {
	if entries == nil {
		entries = Entries{}
	}
	if err := storage.WriteJSONAtomic(c.path, entries); err != nil {
		return fmt.Errorf("failed to save cooldown cache: %w", err)
	}
	return nil
}

func (c *FileCache) Close() error { return nil }

func decode(data []byte) (Entries, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Entries{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if nested, ok := legacyAlerts(raw); ok {
		raw = nested
	}

	entries := make(Entries, len(raw))
	for symbol, v := range raw {
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			continue
		}
		if ts, err := n.Int64(); err == nil {
			entries[symbol] = ts
		} else if f, err := n.Float64(); err == nil && !math.IsInf(f, 0) {
			entries[symbol] = int64(f)
		}
	}
	return entries, nil
}

// legacyAlerts unwraps {"date": "...", "alerts": {...}}.
func legacyAlerts(raw map[string]json.RawMessage) (map[string]json.RawMessage, bool) {
	alerts, ok := raw["alerts"]
	if !ok {
		return nil, false
	}
	for k := range raw {
		if k != "alerts" && k != "date" {
			return nil, false
		}
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(alerts, &nested); err != nil || nested == nil {
		return nil, false
	}
	return nested, true
}
