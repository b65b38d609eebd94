// Command thermalsim is a small building-physics stepper that speaks the
// aifamily engine protocol on stdin/stdout. aifamily launches it as
//
//	thermalsim -w weather.epw -b house.json
//
// Each room is a lumped thermal capacitance losing heat to the outdoors and
// ground, conditioned by an ideal-loads system limited to the room's
// capacity and driven by its dual-setpoint schedule actuators.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adubusi/AI-Family/internal/engine"
	"github.com/adubusi/AI-Family/internal/house"
	"github.com/adubusi/AI-Family/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "thermalsim:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "thermalsim -w <weather.epw> -b <house.json>",
		Short:        "Step a house through one day of weather over the engine protocol",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			weatherPath, _ := cmd.Flags().GetString("weather")
			buildingPath, _ := cmd.Flags().GetString("building")
			level, _ := cmd.Flags().GetString("log-level")

			// stdout carries the protocol.
			log := logging.NewLogger(level, cmd.ErrOrStderr())

			w, err := LoadWeather(weatherPath)
			if err != nil {
				return err
			}
			m, err := house.LoadModel(buildingPath)
			if err != nil {
				return err
			}
			log.Info("starting", "building", m.Name, "rooms", len(m.Rooms),
				"timesteps_per_hour", m.TimestepsPerHour, "warmup_steps", m.WarmupSteps)

			conn := engine.NewConn(cmd.InOrStdin(), cmd.OutOrStdout())
			return NewSim(m, w, log).Run(conn)
		},
	}
	cmd.Flags().StringP("weather", "w", "", "EPW weather file")
	cmd.Flags().StringP("building", "b", "", "Building description (JSON)")
	cmd.Flags().String("log-level", "warn", "Diagnostics level on stderr")
	cmd.MarkFlagRequired("weather")
	cmd.MarkFlagRequired("building")
	return cmd
}
