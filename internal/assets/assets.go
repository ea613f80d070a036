// Package assets loads the watched asset list. The list is re-read on every
// cycle so edits take effect without a restart.
package assets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/logger"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
)

// Source supplies the current asset list.
type Source interface {
	Assets(ctx context.Context) ([]models.Asset, error)
}

// FileSource reads a YAML (or JSON) file holding either a top-level list of
// assets or an object with an "assets" list.
type FileSource struct {
	path string
}

// NewFileSource returns a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type rawAsset struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
}

type assetFile struct {
	Assets []rawAsset `yaml:"assets"`
}

// Assets reads and normalizes the file.
func (s *FileSource) Assets(_ context.Context) ([]models.Asset, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assets file: %w", err)
	}
	raw, err := parse(b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return normalize(raw), nil
}

func parse(b []byte) ([]rawAsset, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []rawAsset
		if err := root.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	case yaml.MappingNode:
		var f assetFile
		if err := root.Decode(&f); err != nil {
			return nil, err
		}
		return f.Assets, nil
	default:
		return nil, fmt.Errorf("expected a list of assets")
	}
}

// normalize trims and upper-cases symbols, drops invalid entries with a
// warning and keeps the first occurrence of each symbol.
func normalize(raw []rawAsset) []models.Asset {
	seen := make(map[string]bool, len(raw))
	out := make([]models.Asset, 0, len(raw))
	for i, r := range raw {
		typ, err := models.ParseAssetType(r.Type)
		if err != nil {
			logger.Warn("Skipping asset #%d (%s): %v", i+1, r.Symbol, err)
			continue
		}
		a := models.Asset{
			Symbol: strings.ToUpper(strings.TrimSpace(r.Symbol)),
			Name:   strings.TrimSpace(r.Name),
			Type:   typ,
		}
		if err := a.Validate(); err != nil {
			logger.Warn("Skipping asset #%d (%q): %v", i+1, r.Symbol, err)
			continue
		}
		if seen[a.Symbol] {
			logger.Warn("Skipping duplicate asset %s", a.Symbol)
			continue
		}
		seen[a.Symbol] = true
		out = append(out, a)
	}
	return out
}

// Static is a fixed asset list.
type Static []models.Asset

// Assets returns a copy of the list.
func (s Static) Assets(_ context.Context) ([]models.Asset, error) {
	return append([]models.Asset(nil), s...), nil
}

// IsWeekend reports whether now falls on Saturday or Sunday in loc.
func IsWeekend(now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	switch now.In(loc).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

// FilterWeekend drops stocks when now is a weekend day in loc. It returns
// the kept assets and how many stocks were skipped.
func FilterWeekend(list []models.Asset, now time.Time, loc *time.Location) ([]models.Asset, int) {
	if !IsWeekend(now, loc) {
		return list, 0
	}
	kept := make([]models.Asset, 0, len(list))
	skipped := 0
	for _, a := range list {
		if a.Type == models.AssetStock {
			skipped++
			continue
		}
		kept = append(kept, a)
	}
	return kept, skipped
}
