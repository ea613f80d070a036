package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/activitylog"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/assets"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/config"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/cooldown"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/events"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/history"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/logger"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/monitor"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/notify"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/quotes"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/scheduler"
)

// engine is the wired set of collaborators behind every subcommand.
type engine struct {
	monitor *monitor.Monitor
	quotes  *quotes.Client
	history history.Store
	cache   cooldown.Cache
}

func newQuotesClient(cfg *config.Config) *quotes.Client {
	return quotes.NewClient(quotes.Options{
		BaseURLs:            cfg.Quotes.BaseURLs,
		Timeout:             cfg.Quotes.Timeout,
		UserAgent:           cfg.Quotes.UserAgent,
		InitialLookbackDays: cfg.Quotes.InitialLookbackDays,
		MaxLookbackDays:     cfg.Quotes.MaxLookbackDays,
	})
}

func buildEngine(ctx context.Context, cfg *config.Config, emitter events.Emitter) (*engine, error) {
	loc := cfg.Location()

	store, err := history.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}

	cache, err := cooldown.Open(ctx, cfg.Storage)
	if err != nil {
		// Monitoring continues; the file cache is always constructible.
		logger.Error("Failed to initialize %s cooldown cache, falling back to %s: %v",
			cfg.Storage.CooldownBackend, cfg.Storage.CooldownFile(), err)
		cache = cooldown.NewFileCache(cfg.Storage.CooldownFile())
	}

	email, err := notify.NewEmail(cfg.Email, loc)
	if err != nil {
		_ = store.Close()
		_ = cache.Close()
		return nil, fmt.Errorf("failed to initialize email dispatcher: %w", err)
	}
	telegram, err := notify.NewTelegram(cfg.Telegram, loc)
	if err != nil {
		_ = store.Close()
		_ = cache.Close()
		return nil, fmt.Errorf("failed to initialize Telegram dispatcher: %w", err)
	}
	dispatchers := []notify.Dispatcher{email, notify.NewWebhook(cfg.Webhook, loc), telegram}
	for _, d := range dispatchers {
		if d.Enabled() {
			logger.Info("%s notifications enabled", d.Name())
		} else {
			logger.Debug("%s notifications disabled", d.Name())
		}
	}

	client := newQuotesClient(cfg)

	mc := monitor.DefaultConfig()
	mc.Threshold = decimal.NewFromFloat(cfg.Monitor.Threshold)
	mc.Cooldown = cfg.Cooldown()
	mc.PacingDelay = cfg.Quotes.PacingDelay
	mc.SkipStocksOnWeekend = cfg.Monitor.SkipStocksOnWeekend
	mc.Location = loc

	retention := time.Duration(cfg.Storage.LogRetentionDays) * 24 * time.Hour
	mon := monitor.New(mc, monitor.Deps{
		Fetcher:     client,
		Assets:      assets.NewFileSource(cfg.Monitor.AssetsFile),
		Cooldown:    cache,
		History:     store,
		Activity:    activitylog.New(cfg.Storage.ActivityLogDir(), retention, loc),
		Dispatchers: dispatchers,
		Emitter:     emitter,
	})

	return &engine{monitor: mon, quotes: client, history: store, cache: cache}, nil
}

func (e *engine) scheduler(interval time.Duration) *scheduler.Scheduler {
	return scheduler.New(interval, func(ctx context.Context) {
		if _, ok := e.monitor.RunCycle(ctx); !ok {
			logger.Debug("Previous cycle still running, tick dropped")
		}
	})
}

func (e *engine) Close() {
	if err := e.cache.Close(); err != nil {
		logger.Error("Failed to close cooldown cache: %v", err)
	}
	if err := e.history.Close(); err != nil {
		logger.Error("Failed to close history store: %v", err)
	}
}
