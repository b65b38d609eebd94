package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adubusi/AI-Family/internal/config"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aifamily",
		Short: "AI Family - a household living in a simulated smart home",
		Long: `aifamily couples a building-physics engine to a simulated family.

The engine steps a three-zone house through a winter day while the
household reads room conditions, adjusts heating setpoints, pays a
time-of-use electricity bill, and rates its own thermal comfort.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.aifamily/config.yaml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newPMVCmd(),
		newTariffCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newExportCmd(),
		newMCPServerCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// loadConfig honours --config, falling back to the default locations.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path, ".env")
}

// configPath is where config set writes.
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}
