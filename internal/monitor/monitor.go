// Package monitor runs the check cycle: for every configured asset it fetches
// recent closes, stores them, decides whether the move qualifies for an
// alert, and fans qualifying alerts out to the notification channels.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/assets"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/cooldown"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/events"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/history"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/logger"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/notify"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/quotes"
)

// Fetcher returns an ascending daily series for a symbol. A short series is
// not an error.
type Fetcher interface {
	FetchSeriesWithBackoff(ctx context.Context, symbol string) (models.PriceSeries, error)
}

// ActivityLog records fired alerts.
type ActivityLog interface {
	Append(symbol, name string, changePct decimal.Decimal, ts time.Time) error
}

// Config holds the alerting policy of a Monitor.
type Config struct {
	Threshold           decimal.Decimal // percent, inclusive
	Cooldown            time.Duration
	PacingDelay         time.Duration
	SkipStocksOnWeekend bool
	Location            *time.Location
}

// DefaultConfig returns a 5% threshold, a 6 hour cooldown and 1s pacing.
func DefaultConfig() Config {
	return Config{
		Threshold:           decimal.NewFromInt(5),
		Cooldown:            360 * time.Minute,
		PacingDelay:         time.Second,
		SkipStocksOnWeekend: true,
		Location:            time.UTC,
	}
}

// Deps are the collaborators of a Monitor. Activity and Emitter may be nil.
type Deps struct {
	Fetcher     Fetcher
	Assets      assets.Source
	Cooldown    cooldown.Cache
	History     history.Store
	Activity    ActivityLog
	Dispatchers []notify.Dispatcher
	Emitter     events.Emitter
}

// Monitor runs check cycles, at most one at a time.
type Monitor struct {
	config      Config
	fetcher     Fetcher
	assets      assets.Source
	cache       cooldown.Cache
	history     history.Store
	activity    ActivityLog
	dispatchers []notify.Dispatcher
	emit        events.Emitter

	running atomic.Bool
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Monitor. A nil Location defaults to UTC, a nil Emitter to Nop.
func New(config Config, deps Deps) *Monitor {
	if config.Location == nil {
		config.Location = time.UTC
	}
	m := &Monitor{
		config:      config,
		fetcher:     deps.Fetcher,
		assets:      deps.Assets,
		cache:       deps.Cooldown,
		history:     deps.History,
		activity:    deps.Activity,
		dispatchers: deps.Dispatchers,
		emit:        deps.Emitter,
		now:         time.Now,
		sleep:       sleepCtx,
	}
	if m.emit == nil {
		m.emit = events.Nop{}
	}
	return m
}

// AssetResult is the outcome of one asset within a cycle.
type AssetResult struct {
	Asset         models.Asset
	Outcome       models.Outcome
	ChangePercent decimal.Decimal
	Points        int
	HistorySaved  bool
	Err           error
}

// CycleReport summarizes one completed or aborted cycle.
type CycleReport struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Results        []AssetResult
	SkippedWeekend int
	Alerts         int
	Aborted        bool
}

// Running reports whether a cycle is in progress.
func (m *Monitor) Running() bool {
	return m.running.Load()
}

// RunCycle runs one check cycle. If a cycle is already running it returns
// (nil, false) without doing anything. Cancelling ctx stops the cycle
// before the next asset; the cooldown cache is still saved.
func (m *Monitor) RunCycle(ctx context.Context) (*CycleReport, bool) {
	if !m.running.CompareAndSwap(false, true) {
		m.emit.Emit(events.CycleBusy)
		return nil, false
	}
	defer m.running.Store(false)

	report := &CycleReport{ID: uuid.NewString(), StartedAt: m.now()}
	cycle := events.P("cycle", report.ID)
	m.emit.Emit(events.CycleStarted, cycle)

	entries := m.loadCooldown(ctx, cycle)

	list, err := m.assets.Assets(ctx)
	if err != nil {
		logger.Error("Failed to load assets: %v", err)
		m.emit.Emit(events.AssetsLoadFailed, cycle, events.P("error", err))
		list = nil
	}
	if m.config.SkipStocksOnWeekend {
		var skipped int
		list, skipped = assets.FilterWeekend(list, report.StartedAt, m.config.Location)
		if skipped > 0 {
			report.SkippedWeekend = skipped
			m.emit.Emit(events.StocksSkippedWeekend, cycle, events.P("count", skipped))
		}
	}

	for i, asset := range list {
		if ctx.Err() != nil {
			report.Aborted = true
			break
		}
		res := m.processAsset(ctx, report.ID, asset, entries)
		report.Results = append(report.Results, res)
		if res.Outcome == models.OutcomeAlerted {
			report.Alerts++
		}
		if res.Outcome == models.OutcomeSkipped {
			report.Aborted = true
			break
		}
		if i < len(list)-1 && m.config.PacingDelay > 0 {
			if err := m.sleep(ctx, m.config.PacingDelay); err != nil {
				report.Aborted = true
				break
			}
		}
	}

	// Saved even when ctx is cancelled so alerts already sent are remembered.
	if err := m.cache.Save(context.WithoutCancel(ctx), entries); err != nil {
		logger.Error("Failed to save cooldown cache, duplicate alerts are possible next cycle: %v", err)
		m.emit.Emit(events.CacheSaveFailed, cycle, events.P("error", err))
	}

	report.FinishedAt = m.now()
	summary := []events.Param{
		cycle,
		events.P("assets", len(list)),
		events.P("checked", len(report.Results)),
		events.P("alerts", report.Alerts),
		events.P("duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds()),
	}
	if report.Aborted {
		logger.Warn("Cycle %s aborted after %d of %d assets", report.ID, len(report.Results), len(list))
		m.emit.Emit(events.CycleAborted, summary...)
	} else {
		logger.Info("Cycle %s completed: %d assets checked, %d alerts", report.ID, len(report.Results), report.Alerts)
		m.emit.Emit(events.CycleCompleted, summary...)
	}
	return report, true
}

func (m *Monitor) loadCooldown(ctx context.Context, cycle events.Param) cooldown.Entries {
	entries, err := m.cache.Load(ctx)
	if err != nil {
		logger.Warn("Failed to load cooldown cache, starting empty: %v", err)
		m.emit.Emit(events.CacheLoadFailed, cycle, events.P("error", err))
	}
	if entries == nil {
		entries = cooldown.Entries{}
	}
	kept, removed := cooldown.PurgeExpired(entries, m.config.Cooldown, m.now())
	if removed > 0 {
		m.emit.Emit(events.CachePurged, cycle, events.P("removed", removed), events.P("remaining", len(kept)))
	}
	return kept
}

// processAsset runs fetch → history → decide → notify for one asset. A panic
// is contained here and reported as a failed outcome.
func (m *Monitor) processAsset(ctx context.Context, cycleID string, asset models.Asset, entries cooldown.Entries) (res AssetResult) {
	res = AssetResult{Asset: asset}
	cycle := events.P("cycle", cycleID)
	symbol := events.P("symbol", asset.Symbol)

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = models.OutcomeFailed
			res.Err = fmt.Errorf("panic: %v", r)
			logger.Error("Panic while checking %s: %v\n%s", asset.Symbol, r, debug.Stack())
			m.emit.Emit(events.AssetFailed, cycle, symbol, events.P("error", res.Err))
		}
	}()

	m.emit.Emit(events.AssetChecking, cycle, symbol, events.P("name", asset.DisplayName()), events.P("type", string(asset.Type)))

	series, err := m.fetcher.FetchSeriesWithBackoff(ctx, asset.Symbol)
	if err != nil {
		switch {
		case errors.Is(err, quotes.ErrSymbolNotFound):
			res.Outcome = models.OutcomeInsufficientData
			m.emit.Emit(events.InsufficientData, cycle, symbol, events.P("points", 0), events.P("reason", "symbol_not_found"))
		case ctx.Err() != nil:
			res.Outcome = models.OutcomeSkipped
			res.Err = err
		default:
			res.Outcome = models.OutcomeFailed
			res.Err = err
			logger.Warn("Failed to fetch %s: %v", asset.Symbol, err)
			m.emit.Emit(events.AssetFailed, cycle, symbol, events.P("error", err))
		}
		return res
	}
	res.Points = len(series)

	prev, last, ok := series.LastTwo()
	if !ok {
		res.Outcome = models.OutcomeInsufficientData
		m.emit.Emit(events.InsufficientData, cycle, symbol, events.P("points", len(series)), events.P("reason", "too_few_closes"))
		return res
	}
	change, ok := models.ChangePercent(prev.Close, last.Close)
	if !ok {
		res.Outcome = models.OutcomeInsufficientData
		m.emit.Emit(events.InsufficientData, cycle, symbol, events.P("points", len(series)), events.P("reason", "zero_previous_close"))
		return res
	}
	res.ChangePercent = change

	if err := m.history.Save(ctx, asset.Symbol, series); err != nil {
		logger.Warn("Failed to save history for %s: %v", asset.Symbol, err)
		m.emit.Emit(events.HistorySaveFailed, cycle, symbol, events.P("error", err))
	} else {
		res.HistorySaved = true
		m.emit.Emit(events.HistorySaved, cycle, symbol, events.P("points", len(series)))
	}

	pct := events.P("change", change.StringFixed(2))
	if change.Abs().LessThan(m.config.Threshold) {
		res.Outcome = models.OutcomeBelowThreshold
		m.emit.Emit(events.BelowThreshold, cycle, symbol, pct, events.P("threshold", m.config.Threshold.String()))
		return res
	}

	now := m.now()
	if entries.Active(asset.Symbol, m.config.Cooldown, now) {
		res.Outcome = models.OutcomeAlreadyAlerted
		m.emit.Emit(events.AlreadyAlerted, cycle, symbol, pct,
			events.P("last_alert_at", time.UnixMilli(entries[asset.Symbol]).UTC().Format(time.RFC3339)))
		return res
	}

	alert := models.AlertEvent{
		Symbol:        asset.Symbol,
		Name:          asset.DisplayName(),
		ChangePercent: change,
		Direction:     models.DirectionOf(change),
		CurrentPrice:  last.Close,
		Timestamp:     now,
	}
	m.emit.Emit(events.AlertFired, cycle, symbol, events.P("name", alert.Name), pct,
		events.P("direction", string(alert.Direction)), events.P("price", alert.CurrentPrice.String()))

	for _, d := range m.dispatchers {
		m.dispatch(ctx, cycle, d, alert)
	}

	if m.activity != nil {
		if err := m.activity.Append(alert.Symbol, alert.Name, alert.ChangePercent, alert.Timestamp); err != nil {
			logger.Warn("Failed to write activity log for %s: %v", asset.Symbol, err)
			m.emit.Emit(events.ActivityLogFailed, cycle, symbol, events.P("error", err))
		}
	}

	entries.Mark(asset.Symbol, now)
	res.Outcome = models.OutcomeAlerted
	return res
}

// dispatch sends through one channel. Errors and panics stay inside.
func (m *Monitor) dispatch(ctx context.Context, cycle events.Param, d notify.Dispatcher, alert models.AlertEvent) {
	channel := events.P("channel", d.Name())
	symbol := events.P("symbol", alert.Symbol)
	if !d.Enabled() {
		m.emit.Emit(events.NotifyDisabled, cycle, channel, symbol)
		return
	}

	id, err := func() (id string, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return d.Dispatch(ctx, alert)
	}()
	if err != nil {
		logger.Warn("Failed to send %s alert for %s: %v", d.Name(), alert.Symbol, err)
		m.emit.Emit(events.NotifyFailed, cycle, channel, symbol, events.P("error", err))
		return
	}
	m.emit.Emit(events.NotifySent, cycle, channel, symbol, events.P("id", id))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
