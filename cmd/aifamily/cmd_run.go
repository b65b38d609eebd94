package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/adubusi/AI-Family/internal/api"
	"github.com/adubusi/AI-Family/internal/household"
	"github.com/adubusi/AI-Family/internal/publish"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate the household for one or more days",
		Long: `Start the thermal engine and let the household live through it.

Each day the engine is (re)started, warms up, and steps through 24 hours
while the household logs hourly costs, tracks wasted heating, and ends the
day at 23:30 with a summary. Days are stored in the history database.

Examples:
  aifamily run                          # One day with the HTTP API on the configured address
  aifamily run --days 3 --listen :8080  # Three days
  aifamily run --listen ""              # No HTTP API`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			days, _ := cmd.Flags().GetInt("days")
			if days < 1 {
				return fmt.Errorf("--days must be at least 1, got %d", days)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("listen") {
				cfg.API.Listen, _ = cmd.Flags().GetString("listen")
			}

			a, err := newApp(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			summaries, err := a.run(ctx, days)
			if err != nil {
				return err
			}
			return printSummaries(cmd.OutOrStdout(), summaries, jsonOut)
		},
	}
	cmd.Flags().Int("days", 1, "Number of days to simulate")
	cmd.Flags().String("listen", "", "HTTP API address (overrides api.listen; empty disables)")
	return cmd
}

// run drives the household for days while the API and telemetry serve
// alongside. It returns the completed days; an interrupt is not an error.
func (a *app) run(ctx context.Context, days int) ([]household.DaySummary, error) {
	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	var summaries []household.DaySummary
	g.Go(func() error {
		defer stop()
		var err error
		summaries, err = household.RunDays(runCtx, a.sup, a.monitor, days)
		if errors.Is(err, context.Canceled) {
			a.log.Info("simulation interrupted", "days_completed", len(summaries))
			return nil
		}
		return err
	})

	if listen := a.cfg.API.Listen; listen != "" {
		srv := api.NewServer(a.sup, a.metrics, a.log)
		g.Go(func() error { return srv.ListenAndServe(runCtx, listen) })
	}

	g.Go(func() error {
		return publish.RunState(runCtx, a.pub, a.sup, a.cfg.Publish.StateInterval, a.log)
	})

	err := g.Wait()
	return summaries, err
}

func printSummaries(w io.Writer, summaries []household.DaySummary, jsonOut bool) error {
	if jsonOut {
		return json.NewEncoder(w).Encode(map[string]interface{}{
			"days":  summaries,
			"count": len(summaries),
		})
	}
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No day completed.")
		return nil
	}
	for _, s := range summaries {
		printSummary(w, s)
	}
	return nil
}

func printSummary(w io.Writer, s household.DaySummary) {
	fmt.Fprintf(w, "Day %d (%s)\n", s.Day, s.DayID)
	fmt.Fprintf(w, "  Bill:            %.2f of %.2f budget", s.Bill, s.Budget)
	if s.OverBudget() {
		fmt.Fprintf(w, " (over by %.2f)", -s.BudgetLeft)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Avg discomfort:  %.3f\n", s.AvgDiscomfort)
	if ranking := s.WasteRanking(); len(ranking) > 0 {
		parts := make([]string, 0, len(ranking))
		for _, room := range ranking {
			parts = append(parts, fmt.Sprintf("%s %.1f", room, s.Waste[room]))
		}
		fmt.Fprintf(w, "  Waste:           %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(w, "  Ended:           %s\n", s.EndReason)
	if len(s.Hours) > 0 {
		fmt.Fprintln(w, "  Hour  Cost    Avg PMV  Saved if off")
		for _, h := range s.Hours {
			fmt.Fprintf(w, "  %4d  %6.2f  %7.2f  %6.2f\n", h.Hour, h.Cost, h.AvgPMV, h.WhatIf.Saved)
		}
	}
}
