package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adubusi/AI-Family/internal/engine"
	"github.com/adubusi/AI-Family/internal/house"
	"github.com/adubusi/AI-Family/internal/logging"
)

// epwDay renders a minimal EPW: eight header lines and 24 hourly records
// with dry bulb -10+h/2 and humidity 40+h.
func epwDay() string {
	var b strings.Builder
	for i := 0; i < epwHeaderLines; i++ {
		fmt.Fprintf(&b, "HEADER%d,x\n", i)
	}
	for h := 1; h <= 24; h++ {
		fmt.Fprintf(&b, "1990,1,1,%d,60,?9?9,%.1f,-15.0,%.0f,101000\n", h, -10+float64(h-1)/2, 40+float64(h-1))
	}
	return b.String()
}

func TestParseWeather(t *testing.T) {
	w, err := ParseWeather(strings.NewReader(epwDay()))
	if err != nil {
		t.Fatal(err)
	}
	if w.DryBulb[0] != -10 || w.DryBulb[23] != 1.5 {
		t.Errorf("dry bulb = %v .. %v", w.DryBulb[0], w.DryBulb[23])
	}
	if w.Humidity[4] != 44 {
		t.Errorf("humidity[4] = %v", w.Humidity[4])
	}

	tests := []struct {
		hour    float64
		wantDry float64
	}{
		{0, -10},
		{0.5, -9.75},
		{25, -9.5},
		{-1, 1.5},
		{23.5, -4.25}, // halfway from 1.5 back to -10
	}
	for _, tt := range tests {
		if got, _ := w.At(tt.hour); got != tt.wantDry {
			t.Errorf("At(%v) = %v, want %v", tt.hour, got, tt.wantDry)
		}
	}
}

func TestParseWeather_Errors(t *testing.T) {
	short := strings.Join(strings.Split(epwDay(), "\n")[:20], "\n")
	bad := strings.Replace(epwDay(), ",-10.0,", ",cold,", 1)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing hours", short, "no record for hour"},
		{"bad number", bad, "dry bulb"},
		{"too few fields", strings.Repeat("h\n", 8) + "1990,1,1,1\n", "fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWeather(strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestZoneStep(t *testing.T) {
	room := house.DefaultModel().Rooms[1] // 1500 W

	t.Run("heats to setpoint", func(t *testing.T) {
		z := newZone(room, 19.9)
		z.heatSP, z.coolSP = 20, 24
		r := z.step(19.9, 50, 19.9, 600)
		if r.HeatingJ <= 0 || r.CoolingJ != 0 {
			t.Errorf("reading = %+v", r)
		}
		if r.Temperature < 19.999 || r.Temperature > 20.001 {
			t.Errorf("temperature = %v, want 20", r.Temperature)
		}
	})

	t.Run("capacity bound", func(t *testing.T) {
		z := newZone(room, 0)
		z.heatSP, z.coolSP = 30, 34
		r := z.step(-20, 50, 0, 600)
		if r.HeatingJ != room.CapacityW*600 {
			t.Errorf("HeatingJ = %v, want %v", r.HeatingJ, room.CapacityW*600)
		}
		if r.Temperature >= 30 {
			t.Errorf("temperature %v reached setpoint despite capacity limit", r.Temperature)
		}
	})

	t.Run("off drifts toward outdoor", func(t *testing.T) {
		z := newZone(room, 20)
		z.heatSP, z.coolSP = -60, 100
		r := z.step(-5, 50, -5, 600)
		if r.HeatingJ != 0 || r.CoolingJ != 0 {
			t.Errorf("energy with control off: %+v", r)
		}
		if r.Temperature >= 20 || r.Temperature <= -5 {
			t.Errorf("temperature = %v, want between -5 and 20", r.Temperature)
		}
		if r.Humidity < 0 || r.Humidity > 100 {
			t.Errorf("humidity = %v", r.Humidity)
		}
	})

	t.Run("cools above band", func(t *testing.T) {
		z := newZone(room, 30)
		z.heatSP, z.coolSP = 20, 24
		r := z.step(30, 50, 30, 600)
		if r.CoolingJ <= 0 || r.HeatingJ != 0 {
			t.Errorf("reading = %+v", r)
		}
	})
}

// bridge answers every step with writes from plan and records what it saw.
type bridge struct {
	steps    []engine.Message
	catalog  engine.Catalog
	finished bool
}

func (b *bridge) drive(conn *engine.Conn, writes []engine.Write) error {
	for {
		m, err := conn.Receive()
		if err != nil {
			return err
		}
		switch m.Type {
		case engine.TypeCatalog:
			b.catalog = engine.CatalogFrom(m)
		case engine.TypeStep:
			b.steps = append(b.steps, m)
			if err := conn.Send(engine.Message{Type: engine.TypeActuate, Writes: writes}); err != nil {
				return err
			}
		case engine.TypeDone:
			b.finished = true
			return nil
		}
	}
}

func runSim(t *testing.T, m house.Model, writes []engine.Write) *bridge {
	t.Helper()
	w, err := ParseWeather(strings.NewReader(epwDay()))
	if err != nil {
		t.Fatal(err)
	}

	toBridgeR, toBridgeW := io.Pipe()
	toSimR, toSimW := io.Pipe()
	simErr := make(chan error, 1)
	go func() {
		err := NewSim(m, w, logging.Discard()).Run(engine.NewConn(toSimR, toBridgeW))
		toBridgeW.CloseWithError(err)
		simErr <- err
	}()

	b := &bridge{}
	if err := b.drive(engine.NewConn(toBridgeR, toSimW), writes); err != nil {
		t.Fatalf("bridge: %v", err)
	}
	if err := <-simErr; err != nil {
		t.Fatalf("sim: %v", err)
	}
	return b
}

func TestSimRun(t *testing.T) {
	m := house.DefaultModel()
	b := runSim(t, m, nil)

	if !b.finished {
		t.Fatal("no done frame")
	}
	if len(b.catalog.Variables) != 4*len(m.Rooms)+1 || len(b.catalog.Actuators) != 2*len(m.Rooms) {
		t.Errorf("catalog = %d variables, %d actuators", len(b.catalog.Variables), len(b.catalog.Actuators))
	}
	if want := m.WarmupSteps + 24*m.TimestepsPerHour; len(b.steps) != want {
		t.Fatalf("got %d steps, want %d", len(b.steps), want)
	}
	for i := 0; i < m.WarmupSteps; i++ {
		if !b.steps[i].Warmup {
			t.Errorf("step %d should be warm-up", i)
		}
	}
	first := b.steps[m.WarmupSteps]
	last := b.steps[len(b.steps)-1]
	if first.Warmup || first.Hour != 0 {
		t.Errorf("first day step = warmup %v hour %v", first.Warmup, first.Hour)
	}
	if last.Hour <= 23.5 || last.Hour >= 24 {
		t.Errorf("last hour = %v, want in (23.5, 24)", last.Hour)
	}
	if len(first.Values) != len(b.catalog.Variables) {
		t.Errorf("step carries %d values for %d variables", len(first.Values), len(b.catalog.Variables))
	}
}

func TestSimRun_OffSavesEnergy(t *testing.T) {
	m := house.DefaultModel()
	heatJ := func(b *bridge) float64 {
		var j float64
		for _, s := range b.steps {
			for i := range m.Rooms {
				j += s.Values[4*i+2]
			}
		}
		return j
	}

	on := runSim(t, m, nil)
	var off []engine.Write
	for i := range m.Rooms {
		off = append(off,
			engine.Write{Handle: engine.HeatingActuator(i), Value: -60},
			engine.Write{Handle: engine.CoolingActuator(i), Value: 100})
	}
	offRun := runSim(t, m, off)

	if heatJ(on) <= 0 {
		t.Fatal("initial schedules should heat on a cold day")
	}
	if heatJ(offRun) >= heatJ(on) {
		t.Errorf("heating off used %v J, on used %v J", heatJ(offRun), heatJ(on))
	}
}

func TestSimApply_BadHandle(t *testing.T) {
	s := NewSim(house.DefaultModel(), Weather{}, logging.Discard())
	if err := s.apply([]engine.Write{{Handle: 99, Value: 20}}); err == nil {
		t.Error("out-of-range handle should fail")
	}
	if err := s.apply([]engine.Write{{Handle: engine.CoolingActuator(2), Value: 27}}); err != nil {
		t.Fatal(err)
	}
	if s.zones[2].coolSP != 27 {
		t.Errorf("cooling setpoint = %v", s.zones[2].coolSP)
	}
}

func TestRootCmd_RequiresFiles(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"-w", filepath.Join(t.TempDir(), "missing.epw"), "-b", "x.json"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	if err := cmd.Execute(); err == nil {
		t.Error("missing weather file should fail")
	}
}
