package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adubusi/AI-Family/internal/tariff"
)

type tariffRow struct {
	Hour int     `json:"hour"`
	Tier string  `json:"tier"`
	Rate float64 `json:"rate"`
}

func newTariffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tariff",
		Short: "Show the time-of-use electricity price by hour",
		Long: `Show the valley/flat/peak band and price for each hour of the day, using
the configured rates.

Examples:
  aifamily tariff           # All 24 hours
  aifamily tariff --hour 20 # A single hour`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			hours := make([]int, 0, 24)
			if cmd.Flags().Changed("hour") {
				h, _ := cmd.Flags().GetInt("hour")
				hours = append(hours, h)
			} else {
				for h := 0; h < 24; h++ {
					hours = append(hours, h)
				}
			}

			rows := make([]tariffRow, 0, len(hours))
			for _, h := range hours {
				t := tariff.TierForHour(h)
				rows = append(rows, tariffRow{Hour: h, Tier: t.String(), Rate: cfg.Tariff.Rate(t)})
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(rows)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Hour  Tier    Rate")
			for _, r := range rows {
				fmt.Fprintf(out, "%4d  %-6s  %.3f\n", r.Hour, r.Tier, r.Rate)
			}
			return nil
		},
	}
	cmd.Flags().Int("hour", 0, "Only show this hour (folded into 0-23)")
	return cmd
}
