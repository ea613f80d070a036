package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the on-disk calendar date format.
const DateLayout = "2006-01-02"

// PricePoint is one daily close.
type PricePoint struct {
	Date  time.Time
	Close decimal.Decimal
}

// NewPricePoint builds a point from a provider close. It reports false for
// a missing or non-finite close, which must be discarded.
func NewPricePoint(date time.Time, value *float64) (PricePoint, bool) {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return PricePoint{}, false
	}
	y, m, d := date.Date()
	return PricePoint{
		Date:  time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Close: decimal.NewFromFloat(*value),
	}, true
}

type pricePointJSON struct {
	Date  string          `json:"date"`
	Close json.RawMessage `json:"close"`
}

// MarshalJSON writes {"date":"YYYY-MM-DD","close":<number>}.
func (p PricePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(pricePointJSON{
		Date:  p.Date.Format(DateLayout),
		Close: json.RawMessage(p.Close.String()),
	})
}

// UnmarshalJSON accepts close as a JSON number or a numeric string.
func (p *PricePoint) UnmarshalJSON(b []byte) error {
	var raw pricePointJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	date, err := time.Parse(DateLayout, raw.Date)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", raw.Date, err)
	}
	var value decimal.Decimal
	if err := value.UnmarshalJSON(raw.Close); err != nil {
		return fmt.Errorf("invalid close for %s: %w", raw.Date, err)
	}
	p.Date = date
	p.Close = value
	return nil
}

// PriceSeries is a chronologically ascending list of closes for one symbol.
// Duplicate dates are tolerated.
type PriceSeries []PricePoint

// SortAscending orders the series by date, keeping provider order for equal dates.
func (s PriceSeries) SortAscending() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Date.Before(s[j].Date)
	})
}

// Sufficient reports whether the series can be used for change detection.
func (s PriceSeries) Sufficient() bool {
	return len(s) >= 2
}

// LastTwo returns the previous and latest closes. ok is false when the
// series holds fewer than two points.
func (s PriceSeries) LastTwo() (previous, latest PricePoint, ok bool) {
	if !s.Sufficient() {
		return PricePoint{}, PricePoint{}, false
	}
	return s[len(s)-2], s[len(s)-1], true
}

// PricePair is the latest two valid closes of a symbol.
type PricePair struct {
	Previous decimal.Decimal
	Latest   decimal.Decimal
	AsOf     time.Time
}
