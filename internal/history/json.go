package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/storage"
)

// JSONStore keeps one indented JSON array of {date, close} per symbol.
type JSONStore struct {
	dir string
}

// NewJSONStore returns a store rooted at dir. The directory is created on
// first save.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{dir: dir}
}

// Path returns the file that holds symbol's series.
func (s *JSONStore) Path(symbol string) string {
	return storage.KeyPath(s.dir, symbol, ".json")
}

func (s *JSONStore) Save(_ context.Context, symbol string, series models.PriceSeries) error {
	if series == nil {
		series = models.PriceSeries{}
	}
	if err := storage.WriteJSONAtomic(s.Path(symbol), series); err != nil {
		return fmt.Errorf("failed to save history for %s: %w", symbol, err)
	}
	return nil
}

// Load returns the stored series, or an empty series when none exists.
func (s *JSONStore) Load(_ context.Context, symbol string) (models.PriceSeries, error) {
	var series models.PriceSeries
	if err := storage.ReadJSON(s.Path(symbol), &series); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.PriceSeries{}, nil
		}
		return nil, fmt.Errorf("failed to load history for %s: %w", symbol, err)
	}
	return series, nil
}

func (s *JSONStore) Close() error { return nil }
