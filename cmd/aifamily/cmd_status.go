package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/adubusi/AI-Family/internal/channel"
	"github.com/adubusi/AI-Family/internal/house"
	"github.com/adubusi/AI-Family/internal/tariff"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the live state of a running simulation",
		Long: `Read the shared channel file of a running simulation and print a
consistent snapshot: the hour, outdoor air, price, power, bill, and each
zone's temperature, humidity and setpoint.

The simulation must be running with channel.file set.

Examples:
  aifamily status
  aifamily status --channel /tmp/aifamily.chan --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			path, _ := cmd.Flags().GetString("channel")
			if path == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				path = cfg.Channel.File
			}
			if path == "" {
				return fmt.Errorf("no channel file: pass --channel or set channel.file")
			}

			ch, err := channel.Open(path)
			if err != nil {
				return err
			}
			defer ch.Close()
			snap := ch.Snapshot()

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(snap)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().String("channel", "", "Channel file (default channel.file from config)")
	return cmd
}

func printSnapshot(w io.Writer, s channel.Snapshot) {
	if s.WarmingUp() {
		fmt.Fprintln(w, "Hour:     warming up")
	} else {
		tier := tariff.TierForHour(int(math.Floor(s.Hour)))
		fmt.Fprintf(w, "Hour:     %05.2f (%s)\n", s.Hour, tier)
	}
	fmt.Fprintf(w, "Outdoor:  %.1f °C\n", s.Outdoor)
	fmt.Fprintf(w, "Price:    %.3f /kWh\n", s.Price)
	fmt.Fprintf(w, "Power:    %.2f kW\n", s.Power)
	fmt.Fprintf(w, "Bill:     %.2f\n", s.Bill)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Zone        Temp    RH     Setpoint")
	for _, z := range house.Zones() {
		zs := s.Zone(z)
		sp := fmt.Sprintf("%.1f", zs.Setpoint)
		if !zs.Active() {
			sp = "off"
		}
		fmt.Fprintf(w, "%-10s  %5.1f  %5.1f  %s\n", z, zs.Temperature, zs.Humidity, sp)
	}
}
