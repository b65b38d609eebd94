package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adubusi/AI-Family/internal/export"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a day's hourly records as an Arrow IPC file",
		Long: `Write one stored day's hourly cost log, comfort and what-if estimates to
an Arrow IPC file for cost/comfort analysis. Day-level values (bill,
budget, discomfort, end reason) are stored as schema metadata.

Examples:
  aifamily export --day 1
  aifamily export --day 3 --out day3.arrow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			ref, _ := cmd.Flags().GetString("day")
			outPath, _ := cmd.Flags().GetString("out")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			history, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer history.Close()

			day, err := history.Day(context.Background(), ref)
			if err != nil {
				return fmt.Errorf("loading day %s: %w", ref, err)
			}
			if outPath == "" {
				outPath = fmt.Sprintf("aifamily-day%d.arrow", day.Day)
			}
			if err := export.WriteDayFile(outPath, *day); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"status": "exported",
					"day_id": day.DayID,
					"hours":  len(day.Hours),
					"path":   outPath,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported day %d (%d hours) to %s\n", day.Day, len(day.Hours), outPath)
			return nil
		},
	}
	cmd.Flags().String("day", "", "Day number or day id")
	cmd.Flags().String("out", "", "Output file (default aifamily-day<N>.arrow)")
	cmd.MarkFlagRequired("day")
	return cmd
}
