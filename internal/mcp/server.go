// Package mcp exposes the house to an external agent as a Model Context
// Protocol server on stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/adubusi/AI-Family/internal/channel"
	"github.com/adubusi/AI-Family/internal/household"
	"github.com/adubusi/AI-Family/internal/logging"
	"github.com/adubusi/AI-Family/internal/ratelimit"
	"github.com/adubusi/AI-Family/internal/supervisor"
)

// Simulation is the facade the tools act on. *supervisor.Supervisor
// satisfies it.
type Simulation interface {
	Zones() []supervisor.ZoneReading
	ZoneReading(name string) (supervisor.ZoneReading, error)
	SetSetpoint(name string, v float64) error
	Snapshot() channel.Snapshot
	Pause()
	Resume()
	Paused() bool
	Alive() bool
	RunID() string
}

// Server wraps the MCP server with the simulation it controls.
type Server struct {
	server       *sdk.Server
	sim          Simulation
	occupants    []household.Occupant
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	log          *slog.Logger
}

// Config holds configuration for the MCP server.
type Config struct {
	Name    string // Server name (e.g., "aifamily")
	Version string // Server version
	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string
	// Occupants are judged by aifamily_comfort. Defaults to the
	// default family.
	Occupants []household.Occupant
	Logger    *slog.Logger
}

// NewServer creates an MCP server acting on sim.
func NewServer(sim Simulation, cfg *Config) (*Server, error) {
	if sim == nil {
		return nil, fmt.Errorf("mcp server needs a simulation")
	}
	log := logging.OrDiscard(cfg.Logger)

	occupants := cfg.Occupants
	if len(occupants) == 0 {
		occupants = household.DefaultOccupants()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			log.Info("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		sim:          sim,
		occupants:    occupants,
		toolLimiters: ratelimit.NewToolLimiters(),
		log:          log,
	}
	if cfg.AuditDir != "" {
		s.auditLogger = NewAuditLogger(cfg.AuditDir)
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves on stdio until ctx is done, the client disconnects, or the
// process is signalled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, stopSignals()...)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Close releases the audit log.
func (s *Server) Close() error {
	return s.auditLogger.Close()
}
