package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/adubusi/AI-Family/internal/household"
	"github.com/adubusi/AI-Family/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the simulation and serve it to an agent over MCP (stdio)",
		Long: `Start the simulation and expose the house to an external agent as a
Model Context Protocol server on stdin/stdout.

Tools: aifamily_zones, aifamily_energy, aifamily_set_setpoint,
aifamily_comfort, aifamily_pause, aifamily_resume.
Resource: aifamily://house/state.

Logs go to stderr. Every tool call is appended to ~/.aifamily/audit.jsonl.

Example MCP client configuration:
  {"command": "aifamily", "args": ["mcp-server", "--days", "1"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")
			if days < 1 {
				return fmt.Errorf("--days must be at least 1, got %d", days)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			// stdout carries the protocol.
			a, err := newApp(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			server, err := mcp.NewServer(a.sup, &mcp.Config{
				Name:      "aifamily",
				Version:   version,
				AuditDir:  a.dataDir,
				Occupants: cfg.Household.Occupants,
				Logger:    a.log,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			g, ctx := errgroup.WithContext(cmd.Context())
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			g.Go(func() error {
				defer cancel()
				return server.Run(ctx)
			})
			g.Go(func() error {
				summaries, err := household.RunDays(ctx, a.sup, a.monitor, days)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				for _, s := range summaries {
					a.log.Info("day complete", "day", s.Day, "bill", s.Bill, "budget_left", s.BudgetLeft, "end", s.EndReason)
				}
				// The agent can still inspect the final state after the
				// last day; the server runs until the client leaves.
				return err
			})
			return g.Wait()
		},
	}
	cmd.Flags().Int("days", 1, "Number of days to simulate")
	return cmd
}
