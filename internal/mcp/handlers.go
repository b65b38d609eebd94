package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/adubusi/AI-Family/internal/household"
	"github.com/adubusi/AI-Family/internal/ratelimit"
	"github.com/adubusi/AI-Family/internal/supervisor"
	"github.com/adubusi/AI-Family/internal/tariff"
)

// StateURI is the resource holding the live channel snapshot.
const StateURI = "aifamily://house/state"

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "aifamily_zones",
		Description: "Read the air temperature, humidity and heating setpoint of each zone in the house.",
	}, s.handleZones)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "aifamily_energy",
		Description: "Read the current electricity price, tariff tier, HVAC power and today's bill.",
	}, s.handleEnergy)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "aifamily_set_setpoint",
		Description: "Change a zone's heating setpoint. The engine applies it on its next timestep. A setpoint of 1 or below turns the zone off.",
	}, s.handleSetSetpoint)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "aifamily_comfort",
		Description: "Report how each occupant feels right now: predicted mean vote, comfort score and sensation.",
	}, s.handleComfort)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "aifamily_pause",
		Description: "Pause the simulation. The engine blocks before its next timestep until resumed.",
	}, s.handlePause)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "aifamily_resume",
		Description: "Resume a paused simulation.",
	}, s.handleResume)
}

func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         StateURI,
		Name:        "aifamily-house-state",
		Description: "The full live state of the house: hour, outdoor air, price, power, bill and every zone.",
		MIMEType:    "application/json",
	}, s.handleStateResource)
}

func (s *Server) handleStateResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	data, err := json.MarshalIndent(s.sim.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{URI: StateURI, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}

func (s *Server) handleZones(ctx context.Context, req *sdk.CallToolRequest, args ZonesInput) (_ *sdk.CallToolResult, _ ZonesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("aifamily_zones", start, retErr, sanitizeToolParams(map[string]interface{}{
			"zone": args.Zone,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "aifamily_zones"); err != nil {
		return nil, ZonesOutput{}, err
	}

	if args.Zone != "" {
		zr, err := s.sim.ZoneReading(args.Zone)
		if err != nil {
			return nil, ZonesOutput{}, err
		}
		return nil, ZonesOutput{Zones: []supervisor.ZoneReading{zr}, Count: 1}, nil
	}
	zones := s.sim.Zones()
	return nil, ZonesOutput{Zones: zones, Count: len(zones)}, nil
}

func (s *Server) handleEnergy(ctx context.Context, req *sdk.CallToolRequest, args EnergyInput) (_ *sdk.CallToolResult, _ EnergyOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("aifamily_energy", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "aifamily_energy"); err != nil {
		return nil, EnergyOutput{}, err
	}

	snap := s.sim.Snapshot()
	out := EnergyOutput{
		Hour:    snap.Hour,
		Warmup:  snap.WarmingUp(),
		Price:   snap.Price,
		Power:   snap.Power,
		Bill:    snap.Bill,
		Outdoor: snap.Outdoor,
	}
	if !out.Warmup {
		out.Tier = tariff.TierForHour(int(math.Floor(snap.Hour))).String()
	}
	return nil, out, nil
}

func (s *Server) handleSetSetpoint(ctx context.Context, req *sdk.CallToolRequest, args SetSetpointInput) (_ *sdk.CallToolResult, _ SetSetpointOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("aifamily_set_setpoint", start, retErr, sanitizeToolParams(map[string]interface{}{
			"zone": args.Zone, "setpoint": args.Setpoint,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "aifamily_set_setpoint"); err != nil {
		return nil, SetSetpointOutput{}, err
	}

	before, err := s.sim.ZoneReading(args.Zone)
	if err != nil {
		return nil, SetSetpointOutput{}, err
	}
	if err := s.sim.SetSetpoint(args.Zone, args.Setpoint); err != nil {
		return nil, SetSetpointOutput{}, fmt.Errorf("setting %s setpoint: %w", args.Zone, err)
	}
	after, err := s.sim.ZoneReading(args.Zone)
	if err != nil {
		return nil, SetSetpointOutput{}, err
	}
	s.log.Info("setpoint changed", "zone", after.Zone, "setpoint", args.Setpoint, "via", "mcp")

	msg := fmt.Sprintf("%s setpoint %.1f -> %.1f", after.Zone, before.Setpoint, after.Setpoint)
	if !after.Active {
		msg = fmt.Sprintf("%s heating turned off", after.Zone)
	}
	return nil, SetSetpointOutput{Previous: before.Setpoint, Zone: after, Message: msg}, nil
}

func (s *Server) handleComfort(ctx context.Context, req *sdk.CallToolRequest, args ComfortInput) (_ *sdk.CallToolResult, _ ComfortOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("aifamily_comfort", start, retErr, sanitizeToolParams(map[string]interface{}{
			"occupant": args.Occupant,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "aifamily_comfort"); err != nil {
		return nil, ComfortOutput{}, err
	}

	occupants := s.occupants
	if args.Occupant != "" {
		occupants = nil
		for _, o := range s.occupants {
			if strings.EqualFold(o.Name, args.Occupant) {
				occupants = []household.Occupant{o}
				break
			}
		}
		if occupants == nil {
			return nil, ComfortOutput{}, fmt.Errorf("unknown occupant %q", args.Occupant)
		}
	}

	snap := s.sim.Snapshot()
	feelings, _ := household.FeelAll(occupants, snap)
	return nil, ComfortOutput{
		Hour:       snap.Hour,
		Feelings:   feelings,
		AvgComfort: household.AvgComfort(feelings),
	}, nil
}

func (s *Server) handlePause(ctx context.Context, req *sdk.CallToolRequest, args PauseInput) (_ *sdk.CallToolResult, _ PauseOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("aifamily_pause", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "aifamily_pause"); err != nil {
		return nil, PauseOutput{}, err
	}
	s.sim.Pause()
	s.log.Info("simulation paused", "via", "mcp")
	return nil, s.pauseState(), nil
}

func (s *Server) handleResume(ctx context.Context, req *sdk.CallToolRequest, args PauseInput) (_ *sdk.CallToolResult, _ PauseOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("aifamily_resume", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "aifamily_resume"); err != nil {
		return nil, PauseOutput{}, err
	}
	s.sim.Resume()
	s.log.Info("simulation resumed", "via", "mcp")
	return nil, s.pauseState(), nil
}

func (s *Server) pauseState() PauseOutput {
	return PauseOutput{Paused: s.sim.Paused(), Alive: s.sim.Alive(), RunID: s.sim.RunID()}
}
