package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/adubusi/AI-Family/internal/channel"
	"github.com/adubusi/AI-Family/internal/house"
	"github.com/adubusi/AI-Family/internal/household"
	"github.com/adubusi/AI-Family/internal/supervisor"
)

// setupTestServer serves an unstarted supervisor whose channel holds the
// day-start defaults.
func setupTestServer(t *testing.T) (*Server, *supervisor.Supervisor) {
	t.Helper()
	sup := supervisor.New(supervisor.Options{})
	t.Cleanup(func() { sup.Close() })

	server, err := NewServer(sup, &Config{
		Name:     "test-server",
		Version:  "v1.0.0",
		AuditDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server, sup
}

func TestNewServer_RequiresSimulation(t *testing.T) {
	if _, err := NewServer(nil, &Config{Name: "x"}); err == nil {
		t.Error("NewServer(nil) should fail")
	}
}

func TestNewServer_Defaults(t *testing.T) {
	sup := supervisor.New(supervisor.Options{})
	defer sup.Close()

	s, err := NewServer(sup, &Config{Name: "x", Version: "dev"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.auditLogger != nil {
		t.Error("audit logger should be off without AuditDir")
	}
	if len(s.occupants) != len(household.DefaultOccupants()) {
		t.Errorf("occupants = %d, want the default family", len(s.occupants))
	}
	if len(s.toolLimiters) == 0 {
		t.Error("expected tool rate limiters")
	}
}

func TestHandleZones(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	result, out, err := server.handleZones(ctx, req, ZonesInput{})
	if err != nil {
		t.Fatalf("handleZones failed: %v", err)
	}
	if result != nil {
		t.Error("Expected nil result (SDK auto-populates)")
	}
	if out.Count != house.ZoneCount || len(out.Zones) != house.ZoneCount {
		t.Fatalf("Count = %d, zones = %d", out.Count, len(out.Zones))
	}
	if out.Zones[0].Zone != "LivingRoom" || out.Zones[0].Temperature != 20 {
		t.Errorf("first zone = %+v", out.Zones[0])
	}

	_, out, err = server.handleZones(ctx, req, ZonesInput{Zone: "masterroom"})
	if err != nil {
		t.Fatalf("handleZones(masterroom) failed: %v", err)
	}
	if out.Count != 1 || out.Zones[0].Zone != "MasterRoom" || out.Zones[0].Setpoint != 20 {
		t.Errorf("single zone = %+v", out)
	}

	if _, _, err := server.handleZones(ctx, req, ZonesInput{Zone: "Garage"}); !errors.Is(err, house.ErrUnknownZone) {
		t.Errorf("unknown zone error = %v", err)
	}
}

func TestHandleEnergy(t *testing.T) {
	server, sup := setupTestServer(t)
	sup.Channel().Write(func(tx *channel.Tx) {
		tx.SetHour(8.25)
		tx.SetEnergy(0.9, 3.2, 4.5)
	})

	_, out, err := server.handleEnergy(context.Background(), &sdk.CallToolRequest{}, EnergyInput{})
	if err != nil {
		t.Fatalf("handleEnergy failed: %v", err)
	}
	if out.Price != 0.9 || out.Power != 3.2 || out.Bill != 4.5 || out.Hour != 8.25 {
		t.Errorf("energy = %+v", out)
	}
	if out.Warmup || out.Tier != "flat" {
		t.Errorf("tier = %q, warmup = %v", out.Tier, out.Warmup)
	}

	sup.Channel().Write(func(tx *channel.Tx) { tx.SetHour(channel.WarmupHour) })
	_, out, _ = server.handleEnergy(context.Background(), &sdk.CallToolRequest{}, EnergyInput{})
	if !out.Warmup || out.Tier != "" {
		t.Errorf("warm-up energy = %+v", out)
	}
}

func TestHandleSetSetpoint(t *testing.T) {
	server, sup := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		args       SetSetpointInput
		wantErr    bool
		wantActive bool
		wantMsg    string
	}{
		{"raise", SetSetpointInput{Zone: "LivingRoom", Setpoint: 23.5}, false, true, "22.0 -> 23.5"},
		{"turn off", SetSetpointInput{Zone: "KidsRoom", Setpoint: 0}, false, false, "turned off"},
		{"unknown zone", SetSetpointInput{Zone: "Attic", Setpoint: 20}, true, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := server.handleSetSetpoint(ctx, &sdk.CallToolRequest{}, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("handleSetSetpoint() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if out.Zone.Active != tt.wantActive {
				t.Errorf("Active = %v, want %v", out.Zone.Active, tt.wantActive)
			}
			if !strings.Contains(out.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", out.Message, tt.wantMsg)
			}
		})
	}

	if sp, _ := sup.Setpoint("LivingRoom"); sp != 23.5 {
		t.Errorf("LivingRoom setpoint = %v, want 23.5", sp)
	}
}

func TestHandleComfort(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleComfort(ctx, &sdk.CallToolRequest{}, ComfortInput{})
	if err != nil {
		t.Fatalf("handleComfort failed: %v", err)
	}
	if len(out.Feelings) != len(household.DefaultOccupants()) {
		t.Fatalf("feelings = %d", len(out.Feelings))
	}
	if out.AvgComfort < 0 || out.AvgComfort > 1 {
		t.Errorf("AvgComfort = %v, want within [0, 1]", out.AvgComfort)
	}

	_, out, err = server.handleComfort(ctx, &sdk.CallToolRequest{}, ComfortInput{Occupant: "mom"})
	if err != nil {
		t.Fatalf("handleComfort(mom) failed: %v", err)
	}
	if len(out.Feelings) != 1 || out.Feelings[0].Name != "Mom" {
		t.Errorf("feelings = %+v", out.Feelings)
	}
	if out.AvgComfort != out.Feelings[0].Comfort {
		t.Errorf("AvgComfort = %v, want %v", out.AvgComfort, out.Feelings[0].Comfort)
	}

	if _, _, err := server.handleComfort(ctx, &sdk.CallToolRequest{}, ComfortInput{Occupant: "Grandpa"}); err == nil {
		t.Error("expected error for unknown occupant")
	}
}

func TestHandlePauseResume(t *testing.T) {
	server, sup := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handlePause(ctx, &sdk.CallToolRequest{}, PauseInput{})
	if err != nil {
		t.Fatalf("handlePause failed: %v", err)
	}
	if !out.Paused || !sup.Paused() || out.Alive {
		t.Errorf("after pause: %+v", out)
	}

	_, out, err = server.handleResume(ctx, &sdk.CallToolRequest{}, PauseInput{})
	if err != nil {
		t.Fatalf("handleResume failed: %v", err)
	}
	if out.Paused || sup.Paused() {
		t.Errorf("after resume: %+v", out)
	}
}

func TestHandlePause_RateLimited(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	var err error
	for i := 0; i < 10 && err == nil; i++ {
		_, _, err = server.handlePause(ctx, &sdk.CallToolRequest{}, PauseInput{})
	}
	if err == nil || !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("expected rate limit error, got %v", err)
	}
}

func TestStateResource(t *testing.T) {
	server, sup := setupTestServer(t)
	sup.Channel().Write(func(tx *channel.Tx) { tx.SetBill(2.75) })

	res, err := server.handleStateResource(context.Background(), &sdk.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("handleStateResource failed: %v", err)
	}
	if len(res.Contents) != 1 || res.Contents[0].URI != StateURI {
		t.Fatalf("contents = %+v", res.Contents)
	}
	var snap channel.Snapshot
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &snap); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	if snap.Bill != 2.75 {
		t.Errorf("Bill = %v, want 2.75", snap.Bill)
	}
}
