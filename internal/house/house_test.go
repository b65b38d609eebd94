package house

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestParseZone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Zone
		wantErr bool
	}{
		{"exact", "MasterRoom", MasterRoom, false},
		{"lowercase", "kidsroom", KidsRoom, false},
		{"padded", "  LivingRoom ", LivingRoom, false},
		{"unknown", "Garage", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseZone(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownZone) {
					t.Fatalf("ParseZone(%q) error = %v, want ErrUnknownZone", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseZone(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseZone(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestZoneString(t *testing.T) {
	for _, z := range Zones() {
		got, err := ParseZone(z.String())
		if err != nil || got != z {
			t.Errorf("ParseZone(%q) = %v, %v; want %v", z.String(), got, err, z)
		}
	}
	if Zone(7).Valid() {
		t.Error("Zone(7) should be invalid")
	}
}

func TestSetpointActive(t *testing.T) {
	tests := []struct {
		v    float64
		want bool
	}{
		{0, false},
		{1, false},
		{-60, false},
		{1.01, true},
		{22, true},
	}
	for _, tt := range tests {
		if got := SetpointActive(tt.v); got != tt.want {
			t.Errorf("SetpointActive(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestDefaultModel(t *testing.T) {
	m := DefaultModel()
	if err := m.Validate(); err != nil {
		t.Fatalf("DefaultModel().Validate() = %v", err)
	}

	sp := m.DefaultSetpoints()
	want := [ZoneCount]float64{22.0, 20.0, 24.0}
	if sp != want {
		t.Errorf("DefaultSetpoints() = %v, want %v", sp, want)
	}

	r, ok := m.Room(LivingRoom)
	if !ok {
		t.Fatal("LivingRoom missing from default model")
	}
	if r.Volume() != 300 {
		t.Errorf("LivingRoom volume = %v, want 300", r.Volume())
	}
}

func TestModelValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Model)
	}{
		{"missing room", func(m *Model) { m.Rooms = m.Rooms[:2] }},
		{"duplicate room", func(m *Model) { m.Rooms[2] = m.Rooms[1] }},
		{"unknown room", func(m *Model) { m.Rooms[0].Name = "Attic" }},
		{"zero timesteps", func(m *Model) { m.TimestepsPerHour = 0 }},
		{"flat room", func(m *Model) { m.Rooms[1].Height = 0 }},
		{"no schedule", func(m *Model) { m.Rooms[0].CoolingSchedule = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultModel()
			tt.mutate(&m)
			if err := m.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestModelFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "house.json")
	m := DefaultModel()
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}
	got, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel() = %v", err)
	}
	if got.Name != m.Name || len(got.Rooms) != len(m.Rooms) {
		t.Errorf("LoadModel() = %+v, want %+v", got, m)
	}
}

func TestLoadModel_Missing(t *testing.T) {
	if _, err := LoadModel(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("LoadModel() on missing file = nil error")
	}
}
