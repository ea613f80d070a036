package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/storage"
)

// SQLStore keeps price history in a single table on SQLite or Postgres.
type SQLStore struct {
	db *sqlx.DB
}

type pointRow struct {
	Date  string `db:"date"`
	Close string `db:"close"`
}

// NewSQLStore opens the database and creates the schema. driver is "sqlite"
// (modernc) or "postgres" (lib/pq).
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	if driver == "sqlite" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set WAL mode: %w", err)
		}
	}
	s := &SQLStore{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_history (
			symbol     TEXT NOT NULL,
			date       TEXT NOT NULL,
			close      TEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (symbol, date)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save replaces every stored point for symbol with series. Duplicate dates
// keep the last occurrence.
func (s *SQLStore) Save(ctx context.Context, symbol string, series models.PriceSeries) error {
	key := storage.SanitizeKey(symbol)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM price_history WHERE symbol = ?`), key); err != nil {
		return fmt.Errorf("failed to clear history for %s: %w", symbol, err)
	}

	byDate := make(map[string]decimal.Decimal, len(series))
	order := make([]string, 0, len(series))
	for _, p := range series {
		d := p.Date.Format(models.DateLayout)
		if _, seen := byDate[d]; !seen {
			order = append(order, d)
		}
		byDate[d] = p.Close
	}

	insert := tx.Rebind(`INSERT INTO price_history (symbol, date, close, updated_at) VALUES (?, ?, ?, ?)`)
	now := time.Now().UnixNano()
	for _, d := range order {
		if _, err := tx.ExecContext(ctx, insert, key, d, byDate[d].String(), now); err != nil {
			return fmt.Errorf("failed to insert history point %s %s: %w", symbol, d, err)
		}
	}

	return tx.Commit()
}

// Load returns the stored series in ascending date order.
func (s *SQLStore) Load(ctx context.Context, symbol string) (models.PriceSeries, error) {
	var rows []pointRow
	query := s.db.Rebind(`SELECT date, close FROM price_history WHERE symbol = ? ORDER BY date ASC`)
	if err := s.db.SelectContext(ctx, &rows, query, storage.SanitizeKey(symbol)); err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", symbol, err)
	}

	series := make(models.PriceSeries, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse(models.DateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("bad stored date %q for %s: %w", r.Date, symbol, err)
		}
		c, err := decimal.NewFromString(r.Close)
		if err != nil {
			return nil, fmt.Errorf("bad stored close %q for %s: %w", r.Close, symbol, err)
		}
		series = append(series, models.PricePoint{Date: date, Close: c})
	}
	return series, nil
}
