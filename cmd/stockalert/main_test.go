package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
	"github.com/3ColumnsC/Stock-Exchange-Project/internal/monitor"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "once", "quote", "history"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if f := root.PersistentFlags().Lookup("config"); f == nil || f.DefValue != "configs/config.yaml" {
		t.Error("expected a --config flag defaulting to configs/config.yaml")
	}
}

func TestRootCmd_ArgumentValidation(t *testing.T) {
	tests := [][]string{
		{"quote"},
		{"history"},
		{"history", "AAPL", "MSFT"},
		{"once", "extra"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			if err := root.Execute(); err == nil {
				t.Error("expected an argument error")
			}
		})
	}
}

func TestPrintReport(t *testing.T) {
	start := time.Date(2024, time.March, 4, 15, 0, 0, 0, time.UTC)
	report := &monitor.CycleReport{
		ID:         "c1",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Results: []monitor.AssetResult{
			{Asset: models.Asset{Symbol: "AAPL"}, Outcome: models.OutcomeAlerted, ChangePercent: decimal.NewFromInt(6), Points: 5},
			{Asset: models.Asset{Symbol: "XYZ"}, Outcome: models.OutcomeInsufficientData, Points: 1},
			{Asset: models.Asset{Symbol: "ERR"}, Outcome: models.OutcomeFailed, Err: errors.New("timeout")},
		},
		SkippedWeekend: 2,
		Alerts:         1,
	}

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetErr(&buf)
	printReport(cmd, report)

	out := buf.String()
	for _, want := range []string{"Cycle c1 (1.5s)", "6.00%", "insufficient_data", "timeout", "2 stock(s) skipped", "1 alert(s) sent"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
