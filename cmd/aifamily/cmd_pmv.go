package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adubusi/AI-Family/internal/comfort"
)

func newPMVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pmv",
		Short: "Compute the predicted mean vote for given conditions",
		Long: `Compute Fanger's predicted mean vote (ISO 7730), the comfort score and the
sensation label for one person.

Examples:
  aifamily pmv --temp 22 --humidity 50
  aifamily pmv --temp 18 --clo 1.0 --met 1.2 --velocity 0.2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			temp, _ := cmd.Flags().GetFloat64("temp")
			rh, _ := cmd.Flags().GetFloat64("humidity")
			met, _ := cmd.Flags().GetFloat64("met")
			clo, _ := cmd.Flags().GetFloat64("clo")

			in := comfort.Indoor(temp, rh, met, clo)
			if cmd.Flags().Changed("radiant") {
				in.RadiantTemp, _ = cmd.Flags().GetFloat64("radiant")
			}
			if cmd.Flags().Changed("velocity") {
				in.AirVelocity, _ = cmd.Flags().GetFloat64("velocity")
			}
			a := comfort.Assess(in)

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"inputs":     in,
					"assessment": a,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "PMV:       %+.2f\n", a.PMV)
			fmt.Fprintf(out, "Comfort:   %.2f\n", a.Score)
			fmt.Fprintf(out, "Sensation: %s\n", a.Label)
			return nil
		},
	}
	cmd.Flags().Float64("temp", 22, "Air temperature (°C)")
	cmd.Flags().Float64("radiant", 22, "Mean radiant temperature (°C, defaults to --temp)")
	cmd.Flags().Float64("humidity", 50, "Relative humidity (%)")
	cmd.Flags().Float64("velocity", comfort.StillAirVelocity, "Air velocity (m/s)")
	cmd.Flags().Float64("met", 1.2, "Metabolic rate (met)")
	cmd.Flags().Float64("clo", 0.5, "Clothing insulation (clo)")
	return cmd
}
