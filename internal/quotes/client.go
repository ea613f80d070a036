// Package quotes fetches daily closes and spot prices from the Yahoo Finance
// chart API.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/logger"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
)

// ErrSymbolNotFound is returned when the provider does not know the symbol.
var ErrSymbolNotFound = errors.New("symbol not found")

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	BaseURLs            []string
	Timeout             time.Duration
	UserAgent           string
	InitialLookbackDays int
	MaxLookbackDays     int
}

// Client provides access to the chart endpoint of every configured base URL
type Client struct {
	baseURLs        []string
	httpClient      *http.Client
	userAgent       string
	initialLookback int
	maxLookback     int
	now             func() time.Time
}

// NewClient creates a new quotes client
func NewClient(opts Options) *Client {
	if len(opts.BaseURLs) == 0 {
		opts.BaseURLs = []string{"https://query1.finance.yahoo.com", "https://query2.finance.yahoo.com"}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.InitialLookbackDays < 1 {
		opts.InitialLookbackDays = 7
	}
	if opts.MaxLookbackDays < opts.InitialLookbackDays {
		opts.MaxLookbackDays = opts.InitialLookbackDays
	}
	urls := make([]string, len(opts.BaseURLs))
	for i, u := range opts.BaseURLs {
		urls[i] = strings.TrimRight(u, "/")
	}
	return &Client{
		baseURLs: urls,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		userAgent:       opts.UserAgent,
		initialLookback: opts.InitialLookbackDays,
		maxLookback:     opts.MaxLookbackDays,
		now:             time.Now,
	}
}

// chartResponse is the subset of /v8/finance/chart the engine reads.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol             string   `json:"symbol"`
		Currency           string   `json:"currency"`
		ShortName          string   `json:"shortName"`
		LongName           string   `json:"longName"`
		ExchangeName       string   `json:"exchangeName"`
		GMTOffset          int64    `json:"gmtoffset"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
		RegularMarketTime  int64    `json:"regularMarketTime"`
		PreviousClose      *float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// series converts the result into valid points, discarding null closes.
func (r *chartResult) series() models.PriceSeries {
	if len(r.Indicators.Quote) == 0 {
		return models.PriceSeries{}
	}
	closes := r.Indicators.Quote[0].Close
	out := make(models.PriceSeries, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) {
			break
		}
		// Shift to the exchange's local day before truncating.
		date := time.Unix(ts+r.Meta.GMTOffset, 0).UTC()
		if p, ok := models.NewPricePoint(date, closes[i]); ok {
			out = append(out, p)
		}
	}
	return out
}

// FetchSeries retrieves daily closes for the last lookbackDays, sorted
// ascending. Each configured base URL is tried in order until one answers.
func (c *Client) FetchSeries(ctx context.Context, symbol string, lookbackDays int) (models.PriceSeries, error) {
	to := c.now()
	from := to.AddDate(0, 0, -lookbackDays)

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")

	result, err := c.chart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}
	s := result.series()
	s.SortAscending()
	return s, nil
}

// Quote is a spot price snapshot.
type Quote struct {
	Symbol   string
	Name     string
	Price    decimal.Decimal
	Currency string
	Exchange string
	AsOf     time.Time
}

// Quote returns the provider's latest market price for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	q := url.Values{}
	q.Set("range", "1d")
	q.Set("interval", "1d")

	result, err := c.chart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}
	if result.Meta.RegularMarketPrice == nil {
		return nil, fmt.Errorf("no market price for %s", symbol)
	}
	name := result.Meta.LongName
	if name == "" {
		name = result.Meta.ShortName
	}
	sym := result.Meta.Symbol
	if sym == "" {
		sym = symbol
	}
	return &Quote{
		Symbol:   sym,
		Name:     name,
		Price:    decimal.NewFromFloat(*result.Meta.RegularMarketPrice),
		Currency: result.Meta.Currency,
		Exchange: result.Meta.ExchangeName,
		AsOf:     time.Unix(result.Meta.RegularMarketTime, 0),
	}, nil
}

// chart queries each base URL in order. An unknown symbol stops the
// fallback; transient failures move on to the next endpoint.
func (c *Client) chart(ctx context.Context, symbol string, q url.Values) (*chartResult, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	var lastErr error
	for _, base := range c.baseURLs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u := base + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + q.Encode()
		result, err := c.doRequest(ctx, u)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrSymbolNotFound) || ctx.Err() != nil {
			return nil, err
		}
		logger.Debug("Quote endpoint %s failed for %s: %v", base, symbol, err)
		lastErr = err
	}
	return nil, fmt.Errorf("all quote endpoints failed for %s: %w", symbol, lastErr)
}

// doRequest performs one chart request and decodes the payload
func (c *Client) doRequest(ctx context.Context, urlStr string) (*chartResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var payload chartResponse
	decodeErr := json.Unmarshal(body, &payload)

	// A bare 404 (CDN page, wrong host) is an endpoint failure, not an unknown symbol.
	if decodeErr == nil && isNotFound(payload.Chart.Error) {
		return nil, ErrSymbolNotFound
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("endpoint not found: %d", resp.StatusCode)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited: %d", resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("server error: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode chart: %w", decodeErr)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("provider error %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty chart result")
	}
	return &payload.Chart.Result[0], nil
}

func isNotFound(e *chartError) bool {
	return e != nil && strings.EqualFold(e.Code, "Not Found")
}
