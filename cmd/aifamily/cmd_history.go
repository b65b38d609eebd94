package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adubusi/AI-Family/internal/config"
	"github.com/adubusi/AI-Family/internal/store"
)

// openHistory opens the configured history database.
func openHistory(cfg *config.Config) (*store.SQLiteStore, error) {
	path := cfg.Store.Path
	if path == "" {
		var err error
		if path, err = store.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return s, nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [day]",
		Short: "List simulated days, or show one day's hourly log",
		Long: `Without an argument, list stored days newest first. With a day number
(the most recent run with that number) or a day id, show the full summary
including the hourly cost log.

Examples:
  aifamily history
  aifamily history --limit 5 --json
  aifamily history 2`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			history, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer history.Close()

			ctx := context.Background()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				day, err := history.Day(ctx, args[0])
				if err != nil {
					if errors.Is(err, store.ErrDayNotFound) {
						return fmt.Errorf("no day %q in %s", args[0], history.Path())
					}
					return err
				}
				if jsonOut {
					return json.NewEncoder(out).Encode(day)
				}
				printSummary(out, *day)
				return nil
			}

			days, err := history.Days(ctx, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"days":  days,
					"count": len(days),
				})
			}
			if len(days) == 0 {
				fmt.Fprintln(out, "No days recorded yet. Run 'aifamily run' first.")
				return nil
			}
			fmt.Fprintln(out, "Day  Started           Bill    Budget  Discomfort  Ended          ID")
			for _, d := range days {
				fmt.Fprintf(out, "%3d  %s  %6.2f  %6.2f  %10.3f  %-13s  %s\n",
					d.Day, d.Started.Local().Format("2006-01-02 15:04"), d.Bill, d.Budget,
					d.AvgDiscomfort, d.EndReason, d.DayID)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum days to list (0 for all)")
	return cmd
}
