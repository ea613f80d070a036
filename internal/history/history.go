// Package history persists the simplified per-symbol price series.
package history

import (
	"context"
	"fmt"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/config"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
)

// Store overwrites and reads back a symbol's stored series. Symbols are
// sanitized before they form any storage location.
type Store interface {
	Save(ctx context.Context, symbol string, series models.PriceSeries) error
	Load(ctx context.Context, symbol string) (models.PriceSeries, error)
	Close() error
}

// Open builds the store selected by cfg.HistoryBackend.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.HistoryBackend {
	case "", "json":
		return NewJSONStore(cfg.HistoryDir()), nil
	case "sqlite", "postgres":
		dsn := cfg.HistoryDSN
		if cfg.HistoryBackend == "sqlite" {
			dsn = cfg.SQLiteDSN()
		}
		s, err := NewSQLStore(cfg.HistoryBackend, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown history backend: %s", cfg.HistoryBackend)
	}
}
