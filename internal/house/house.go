// Package house describes the simulated home: its fixed set of thermal zones
// and the building description handed to the thermal engine at spawn time.
package house

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Zone identifies one of the fixed thermal control regions of the house.
// The numeric order is the slot order used by the shared channel.
type Zone int

const (
	LivingRoom Zone = iota
	MasterRoom
	KidsRoom
)

// ZoneCount is the number of zones in the house.
const ZoneCount = 3

// ErrUnknownZone is returned when a zone name does not match any zone.
var ErrUnknownZone = errors.New("unknown zone")

var zoneNames = [ZoneCount]string{"LivingRoom", "MasterRoom", "KidsRoom"}

// String returns the canonical zone name, e.g. "MasterRoom".
func (z Zone) String() string {
	if !z.Valid() {
		return fmt.Sprintf("Zone(%d)", int(z))
	}
	return zoneNames[z]
}

// Valid reports whether z is one of the defined zones.
func (z Zone) Valid() bool {
	return z >= 0 && int(z) < ZoneCount
}

// Zones returns all zones in slot order.
func Zones() []Zone {
	return []Zone{LivingRoom, MasterRoom, KidsRoom}
}

// ParseZone resolves a zone by name. Matching ignores case and surrounding
// whitespace so "masterroom" and " MasterRoom " both resolve.
func ParseZone(name string) (Zone, error) {
	n := strings.TrimSpace(name)
	for i, zn := range zoneNames {
		if strings.EqualFold(zn, n) {
			return Zone(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownZone, name)
}

// SetpointActive reports whether a setpoint value asks for active regulation.
// Values at or below 1 mean control is disabled for the zone.
func SetpointActive(v float64) bool {
	return v > 1
}

// SetpointOff is the value consumers write to disable a zone's HVAC.
const SetpointOff = 0.0

// Location is the site the weather file belongs to.
type Location struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	TimeZone  float64 `json:"time_zone" yaml:"time_zone"`
	Elevation float64 `json:"elevation" yaml:"elevation"`
}

// Room is the building description of a single zone.
type Room struct {
	Name string `json:"name" yaml:"name"`

	// Footprint and height in metres.
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Depth  float64 `json:"depth" yaml:"depth"`
	Height float64 `json:"height" yaml:"height"`

	// CapacityW limits the ideal-loads HVAC system of the room.
	CapacityW float64 `json:"capacity_w" yaml:"capacity_w"`

	// DefaultSetpoint is the target written to the channel at day start.
	DefaultSetpoint float64 `json:"default_setpoint" yaml:"default_setpoint"`

	// Schedule names of the dual-setpoint thermostat. The engine exposes
	// them as actuators.
	HeatingSchedule string  `json:"heating_schedule" yaml:"heating_schedule"`
	CoolingSchedule string  `json:"cooling_schedule" yaml:"cooling_schedule"`
	InitialHeating  float64 `json:"initial_heating" yaml:"initial_heating"`
	InitialCooling  float64 `json:"initial_cooling" yaml:"initial_cooling"`
}

// FloorArea returns the floor area in square metres.
func (r Room) FloorArea() float64 {
	return r.Width * r.Depth
}

// Volume returns the air volume in cubic metres.
func (r Room) Volume() float64 {
	return r.Width * r.Depth * r.Height
}

// EnvelopeArea returns the area exposed to the outdoors: four walls and the roof.
func (r Room) EnvelopeArea() float64 {
	return 2*(r.Width+r.Depth)*r.Height + r.FloorArea()
}

// Model is the building description passed to the thermal engine.
type Model struct {
	Name             string   `json:"name" yaml:"name"`
	Location         Location `json:"location" yaml:"location"`
	TimestepsPerHour int      `json:"timesteps_per_hour" yaml:"timesteps_per_hour"`
	WarmupSteps      int      `json:"warmup_steps" yaml:"warmup_steps"`
	GroundTemp       float64  `json:"ground_temp" yaml:"ground_temp"`
	Rooms            []Room   `json:"rooms" yaml:"rooms"`
}

// DefaultModel returns the three-room house the household lives in.
func DefaultModel() Model {
	return Model{
		Name: "GameHouse",
		Location: Location{
			Name:      "Beijing",
			Latitude:  39.9,
			Longitude: 116.4,
			TimeZone:  8.0,
			Elevation: 31.3,
		},
		TimestepsPerHour: 6,
		WarmupSteps:      6,
		GroundTemp:       5.0,
		Rooms: []Room{
			{
				Name: "LivingRoom", X: 0, Y: 0, Width: 10, Depth: 10, Height: 3,
				CapacityW: 3000, DefaultSetpoint: 22.0,
				HeatingSchedule: "Living_Heat_Sch", CoolingSchedule: "Living_Cool_Sch",
				InitialHeating: 20.0, InitialCooling: 26.0,
			},
			{
				Name: "MasterRoom", X: 10, Y: 0, Width: 5, Depth: 5, Height: 3,
				CapacityW: 1500, DefaultSetpoint: 20.0,
				HeatingSchedule: "Master_Heat_Sch", CoolingSchedule: "Master_Cool_Sch",
				InitialHeating: 18.0, InitialCooling: 26.0,
			},
			{
				Name: "KidsRoom", X: 10, Y: 5, Width: 5, Depth: 5, Height: 3,
				CapacityW: 1500, DefaultSetpoint: 24.0,
				HeatingSchedule: "Kids_Heat_Sch", CoolingSchedule: "Kids_Cool_Sch",
				InitialHeating: 22.0, InitialCooling: 26.0,
			},
		},
	}
}

// Room returns the description of zone z.
func (m Model) Room(z Zone) (Room, bool) {
	for _, r := range m.Rooms {
		if r.Name == z.String() {
			return r, true
		}
	}
	return Room{}, false
}

// DefaultSetpoints returns the day-start setpoint of every zone in slot order.
// Zones missing from the model fall back to 22.0.
func (m Model) DefaultSetpoints() [ZoneCount]float64 {
	var out [ZoneCount]float64
	for _, z := range Zones() {
		out[z] = 22.0
		if r, ok := m.Room(z); ok {
			out[z] = r.DefaultSetpoint
		}
	}
	return out
}

// Validate checks that every zone is described exactly once.
func (m Model) Validate() error {
	if m.TimestepsPerHour <= 0 {
		return fmt.Errorf("timesteps_per_hour must be positive, got %d", m.TimestepsPerHour)
	}
	seen := make(map[string]bool, len(m.Rooms))
	for _, r := range m.Rooms {
		z, err := ParseZone(r.Name)
		if err != nil {
			return fmt.Errorf("room %q: %w", r.Name, err)
		}
		if r.Name != z.String() {
			return fmt.Errorf("room %q must be spelled %q", r.Name, z.String())
		}
		if seen[r.Name] {
			return fmt.Errorf("room %q described twice", r.Name)
		}
		seen[r.Name] = true
		if r.Width <= 0 || r.Depth <= 0 || r.Height <= 0 {
			return fmt.Errorf("room %q: dimensions must be positive", r.Name)
		}
		if r.HeatingSchedule == "" || r.CoolingSchedule == "" {
			return fmt.Errorf("room %q: heating and cooling schedules are required", r.Name)
		}
	}
	for _, z := range Zones() {
		if !seen[z.String()] {
			return fmt.Errorf("room %q is missing", z.String())
		}
	}
	return nil
}

// WriteFile writes the model as indented JSON.
func (m Model) WriteFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding building description: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing building description: %w", err)
	}
	return nil
}

// LoadModel reads a building description written by WriteFile.
func LoadModel(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}, fmt.Errorf("reading building description: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return Model{}, fmt.Errorf("parsing building description: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Model{}, fmt.Errorf("invalid building description: %w", err)
	}
	return m, nil
}
