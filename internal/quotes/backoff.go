package quotes

import (
	"context"
	"errors"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/logger"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
)

// Ladder returns the lookback windows tried by FetchSeriesWithBackoff:
// initial, doubled on every rung, with the cap itself as the last rung.
func Ladder(initial, maxDays int) []int {
	if initial < 1 {
		initial = 1
	}
	if maxDays < initial {
		maxDays = initial
	}
	var rungs []int
	for days := initial; ; days *= 2 {
		if days >= maxDays {
			rungs = append(rungs, maxDays)
			return rungs
		}
		rungs = append(rungs, days)
	}
}

// FetchSeriesWithBackoff widens the lookback window until the provider
// returns at least two valid closes or the cap is reached. Running out of
// rungs is not an error: the last (possibly short) series is returned. The
// error is non-nil only for ErrSymbolNotFound or context cancellation.
func (c *Client) FetchSeriesWithBackoff(ctx context.Context, symbol string) (models.PriceSeries, error) {
	best := models.PriceSeries{}
	for _, days := range Ladder(c.initialLookback, c.maxLookback) {
		series, err := c.FetchSeries(ctx, symbol, days)
		if err != nil {
			if errors.Is(err, ErrSymbolNotFound) {
				return models.PriceSeries{}, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return models.PriceSeries{}, ctxErr
			}
			logger.Debug("History fetch for %s with %dd lookback failed: %v", symbol, days, err)
			continue
		}
		if series.Sufficient() {
			return series, nil
		}
		if len(series) > len(best) {
			best = series
		}
		logger.Debug("History for %s with %dd lookback has %d closes, widening", symbol, days, len(series))
	}
	return best, nil
}

// FetchLatestPair returns the last two valid closes. ok is false when fewer
// than two are obtainable.
func (c *Client) FetchLatestPair(ctx context.Context, symbol string) (pair models.PricePair, ok bool, err error) {
	series, err := c.FetchSeriesWithBackoff(ctx, symbol)
	if err != nil {
		return models.PricePair{}, false, err
	}
	prev, latest, ok := series.LastTwo()
	if !ok {
		return models.PricePair{}, false, nil
	}
	return models.PricePair{Previous: prev.Close, Latest: latest.Close, AsOf: latest.Date}, true, nil
}
