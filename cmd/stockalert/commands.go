package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/events"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/history"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/logger"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/monitor"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/quotes"
)

func newOnceCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single check cycle and print the per-asset report",
		Long: `Run exactly one check cycle, then exit. Intended for cron or other
external schedulers. Progress records go to stdout, the report to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			e, err := buildEngine(ctx, cfg, events.NewJSONEmitter(os.Stdout))
			if err != nil {
				return err
			}
			defer e.Close()

			report, ok := e.monitor.RunCycle(ctx)
			if !ok {
				return errors.New("a cycle is already running")
			}
			printReport(cmd, report)
			if report.Aborted {
				return errors.New("cycle aborted")
			}
			return nil
		},
	}
}

func printReport(cmd *cobra.Command, report *monitor.CycleReport) {
	w := tabwriter.NewWriter(cmd.ErrOrStderr(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Cycle %s (%v)\n", report.ID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	fmt.Fprintln(w, "SYMBOL\tOUTCOME\tCHANGE\tPOINTS\tERROR")
	for _, r := range report.Results {
		change := "-"
		if r.Outcome != models.OutcomeInsufficientData && r.Outcome != models.OutcomeFailed && r.Outcome != models.OutcomeSkipped {
			change = r.ChangePercent.StringFixed(2) + "%"
		}
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.Asset.Symbol, r.Outcome, change, r.Points, errText)
	}
	if report.SkippedWeekend > 0 {
		fmt.Fprintf(w, "%d stock(s) skipped for the weekend\n", report.SkippedWeekend)
	}
	fmt.Fprintf(w, "%d alert(s) sent\n", report.Alerts)
	_ = w.Flush()
}

func newQuoteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "quote SYMBOL...",
		Short:   "Look up the latest market price of one or more symbols",
		Long:    "Look up the latest market price. Use it to check a symbol before adding it to the asset list.",
		Example: "  stockalert quote AAPL BTC-USD",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			client := newQuotesClient(cfg)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			var failed int
			for _, raw := range args {
				symbol := strings.ToUpper(strings.TrimSpace(raw))
				q, err := client.Quote(ctx, symbol)
				switch {
				case errors.Is(err, quotes.ErrSymbolNotFound):
					failed++
					fmt.Fprintf(w, "%s\tnot found\n", symbol)
				case err != nil:
					failed++
					logger.Warn("Failed to fetch quote for %s: %v", symbol, err)
					fmt.Fprintf(w, "%s\terror: %v\n", symbol, err)
				default:
					fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n", q.Symbol, q.Name, q.Price.String(), q.Currency,
						q.Exchange, q.AsOf.In(cfg.Location()).Format("2006-01-02 15:04"))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d symbols could not be quoted", failed, len(args))
			}
			return nil
		},
	}
}

func newHistoryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history SYMBOL",
		Short: "Print the stored price history of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to open history store: %w", err)
			}
			defer store.Close()

			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			series, err := store.Load(cmd.Context(), symbol)
			if err != nil {
				return err
			}
			if len(series) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No stored history for %s\n", symbol)
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tCLOSE")
			for _, p := range series {
				fmt.Fprintf(w, "%s\t%s\n", p.Date.Format(models.DateLayout), p.Close.String())
			}
			return w.Flush()
		},
	}
}
