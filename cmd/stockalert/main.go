package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/config"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/events"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "stockalert",
		Short: "Daily price move alerts for stocks and crypto",
		Long: `stockalert polls daily closes for a list of stocks and crypto assets and
sends a notification when the move between the last two closes reaches the
configured threshold. Progress records are written to stdout as JSON lines.

Running without a subcommand is the same as 'stockalert run'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(configPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the monitor until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(configPath)
		},
	})
	rootCmd.AddCommand(newOnceCmd(&configPath))
	rootCmd.AddCommand(newQuoteCmd(&configPath))
	rootCmd.AddCommand(newHistoryCmd(&configPath))

	return rootCmd
}

// loadConfig loads, validates and applies the logging section.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, logger.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	logger.Info("Configuration loaded from %s", path)
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received, cleaning up...")
	}()
	return ctx, cancel
}

func runService(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	emitter := events.NewJSONEmitter(os.Stdout)

	ctx, cancel := signalContext()
	defer cancel()

	e, err := buildEngine(ctx, cfg, emitter)
	if err != nil {
		return err
	}
	defer e.Close()

	interval, adjusted := cfg.EffectiveCheckInterval()
	if adjusted {
		logger.Warn("Check interval %d min adjusted to %v", cfg.Monitor.CheckIntervalMinutes, interval)
		emitter.Emit(events.ConfigIntervalAdjusted,
			events.P("requested_minutes", cfg.Monitor.CheckIntervalMinutes),
			events.P("effective_minutes", int(interval.Minutes())))
	}

	logger.Info("Starting monitoring service (interval: %v, threshold: %.2f%%, cooldown: %v)",
		interval, cfg.Monitor.Threshold, cfg.Cooldown())
	emitter.Emit(events.EngineStarted,
		events.P("interval_minutes", int(interval.Minutes())),
		events.P("threshold", cfg.Monitor.Threshold),
		events.P("cooldown_minutes", cfg.Monitor.CooldownMinutes),
		events.P("assets_file", cfg.Monitor.AssetsFile))

	err = e.scheduler(interval).Run(ctx)

	emitter.Emit(events.EngineStopped)
	logger.Info("Service stopped")
	return err
}
