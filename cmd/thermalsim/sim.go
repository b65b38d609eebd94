package main

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/adubusi/AI-Family/internal/engine"
	"github.com/adubusi/AI-Family/internal/house"
)

// Sim steps a house through warm-up and one day of weather.
type Sim struct {
	model   house.Model
	weather Weather
	zones   []*zone
	log     *slog.Logger
}

// NewSim builds a simulator. Each room starts at the warmer of the first
// hour's outdoor air and its initial heating setpoint.
func NewSim(m house.Model, w Weather, log *slog.Logger) *Sim {
	s := &Sim{model: m, weather: w, log: log}
	for _, r := range m.Rooms {
		s.zones = append(s.zones, newZone(r, math.Max(w.DryBulb[0], r.InitialHeating)))
	}
	return s
}

// Run announces the catalog and plays warm-up plus 24 hours over conn,
// applying each actuate reply before the next step.
func (s *Sim) Run(conn *engine.Conn) error {
	if err := conn.Send(engine.StandardCatalog(s.model).Message()); err != nil {
		return err
	}

	perHour := s.model.TimestepsPerHour
	dtHours := 1 / float64(perHour)

	for i := 0; i < s.model.WarmupSteps; i++ {
		if err := s.exchange(conn, true, 0, dtHours); err != nil {
			return fmt.Errorf("warm-up step %d: %w", i, err)
		}
	}
	s.log.Debug("warm-up complete", "steps", s.model.WarmupSteps)

	for i := 0; i < 24*perHour; i++ {
		hour := float64(i) * dtHours
		if err := s.exchange(conn, false, hour, dtHours); err != nil {
			return fmt.Errorf("step %d (hour %.2f): %w", i, hour, err)
		}
	}
	s.log.Debug("run period complete", "steps", 24*perHour)
	return conn.Send(engine.Message{Type: engine.TypeDone})
}

func (s *Sim) exchange(conn *engine.Conn, warmup bool, hour, dtHours float64) error {
	frame := s.advance(hour, dtHours)
	msg := engine.Message{
		Type:          engine.TypeStep,
		Warmup:        warmup,
		TimestepHours: dtHours,
		Values:        frame.Values(),
	}
	if !warmup {
		msg.Hour = hour
	}
	if err := conn.Send(msg); err != nil {
		return err
	}

	reply, err := conn.Receive()
	if err != nil {
		return err
	}
	if reply.Type != engine.TypeActuate {
		return fmt.Errorf("expected actuate, got %q", reply.Type)
	}
	return s.apply(reply.Writes)
}

// advance integrates every zone across one timestep starting at hour.
func (s *Sim) advance(hour, dtHours float64) engine.Frame {
	outdoor, rh := s.weather.At(hour)
	f := engine.Frame{Outdoor: outdoor}
	for _, z := range s.zones {
		f.Rooms = append(f.Rooms, z.step(outdoor, rh, s.model.GroundTemp, dtHours*3600))
	}
	return f
}

// apply sets schedule values by StandardCatalog handle.
func (s *Sim) apply(writes []engine.Write) error {
	for _, w := range writes {
		room := w.Handle / 2
		if w.Handle < 0 || room >= len(s.zones) {
			return fmt.Errorf("actuator handle %d out of range", w.Handle)
		}
		if math.IsNaN(w.Value) || math.IsInf(w.Value, 0) {
			return fmt.Errorf("actuator handle %d: value %v is not finite", w.Handle, w.Value)
		}
		if w.Handle == engine.HeatingActuator(room) {
			s.zones[room].heatSP = w.Value
		} else {
			s.zones[room].coolSP = w.Value
		}
	}
	return nil
}
