// Package adapter implements the engine-side half of the co-simulation bridge.
// An Adapter answers each engine timestep: it waits at the pause gate, moves
// engine readings and billing into the shared channel, and returns actuator
// writes derived from the consumer's setpoints.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/adubusi/AI-Family/internal/channel"
	"github.com/adubusi/AI-Family/internal/engine"
	"github.com/adubusi/AI-Family/internal/house"
	"github.com/adubusi/AI-Family/internal/logging"
	"github.com/adubusi/AI-Family/internal/tariff"
)

// State is the adapter lifecycle state.
type State int32

const (
	Uninitialized State = iota
	WarmingUp
	Stepping
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case WarmingUp:
		return "warming_up"
	case Stepping:
		return "stepping"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// joulesPerKWh converts engine energy to billed energy.
const joulesPerKWh = 3.6e6

// Config holds the adapter's tunables.
type Config struct {
	// StepDelay paces the engine to real time after every timestep.
	StepDelay time.Duration `json:"step_delay" yaml:"step_delay"`
	// HeatingOff and CoolingOff are the schedule values that disable a zone.
	HeatingOff float64 `json:"heating_off" yaml:"heating_off"`
	CoolingOff float64 `json:"cooling_off" yaml:"cooling_off"`
	// Deadband separates the cooling setpoint above the heating setpoint.
	Deadband float64 `json:"deadband" yaml:"deadband"`
	// HeuristicKWh is billed per regulating zone when the engine reports no
	// energy while the zone is more than HeuristicDelta °C off target.
	HeuristicKWh   float64 `json:"heuristic_kwh" yaml:"heuristic_kwh"`
	HeuristicDelta float64 `json:"heuristic_delta" yaml:"heuristic_delta"`
	// DefaultTimestepHours is used when a step does not report its length.
	DefaultTimestepHours float64 `json:"default_timestep_hours" yaml:"default_timestep_hours"`
}

// DefaultConfig returns the standard pacing and actuator translation.
func DefaultConfig() Config {
	return Config{
		StepDelay:            800 * time.Millisecond,
		HeatingOff:           -60,
		CoolingOff:           100,
		Deadband:             4,
		HeuristicKWh:         0.2,
		HeuristicDelta:       0.5,
		DefaultTimestepHours: 1.0 / 6,
	}
}

// Validate checks the config for values that would break billing.
func (c Config) Validate() error {
	if c.StepDelay < 0 {
		return fmt.Errorf("step_delay must not be negative, got %v", c.StepDelay)
	}
	if c.Deadband < 0 {
		return fmt.Errorf("deadband must not be negative, got %v", c.Deadband)
	}
	if c.HeuristicKWh < 0 || c.HeuristicDelta < 0 {
		return fmt.Errorf("heuristic values must not be negative")
	}
	if c.DefaultTimestepHours <= 0 || c.DefaultTimestepHours > 1 {
		return fmt.Errorf("default_timestep_hours must be in (0, 1], got %v", c.DefaultTimestepHours)
	}
	return nil
}

// StepResult describes one answered timestep.
type StepResult struct {
	Step      int     `json:"step"`
	Warmup    bool    `json:"warmup"`
	Hour      float64 `json:"hour"`
	KWh       float64 `json:"kwh"`
	Power     float64 `json:"power"`
	Price     float64 `json:"price"`
	Bill      float64 `json:"bill"`
	Heuristic bool    `json:"heuristic"`
	Writes    int     `json:"writes"`
	Fault     error   `json:"-"`
}

// Observer is notified after every timestep, on the adapter goroutine.
type Observer interface {
	ObserveStep(r StepResult)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(StepResult)

// ObserveStep implements Observer.
func (f ObserverFunc) ObserveStep(r StepResult) { f(r) }

// Stats counts what the adapter has done in this run.
type Stats struct {
	Steps       int64 `json:"steps"`
	WarmupSteps int64 `json:"warmup_steps"`
	Faults      int64 `json:"faults"`
	Heuristic   int64 `json:"heuristic"`
	Unresolved  int64 `json:"unresolved"`
}

// Adapter answers engine timesteps for one run period. It holds no state
// across runs; build a new one per engine process.
type Adapter struct {
	ch     *channel.Channel
	gate   *Gate
	model  house.Model
	tariff tariff.Schedule
	cfg    Config

	log      *slog.Logger
	steps    *logging.StepLogger
	observer Observer

	state    atomic.Int32
	catalog  engine.Catalog
	h        handles
	resolved bool
	outdoor  int // resolved lazily for warm-up
	index    int

	nSteps, nWarmup, nFaults, nHeuristic, nUnresolved atomic.Int64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithConfig replaces DefaultConfig.
func WithConfig(c Config) Option { return func(a *Adapter) { a.cfg = c } }

// WithModel sets the house whose rooms and schedules are resolved.
func WithModel(m house.Model) Option { return func(a *Adapter) { a.model = m } }

// WithTariff sets the rate schedule.
func WithTariff(s tariff.Schedule) Option { return func(a *Adapter) { a.tariff = s } }

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option { return func(a *Adapter) { a.log = logging.OrDiscard(l) } }

// WithStepLogger sets the JSONL step trace.
func WithStepLogger(sl *logging.StepLogger) Option { return func(a *Adapter) { a.steps = sl } }

// WithObserver registers a per-step observer.
func WithObserver(o Observer) Option { return func(a *Adapter) { a.observer = o } }

// New returns an adapter writing to ch and pausing at gate.
func New(ch *channel.Channel, gate *Gate, opts ...Option) *Adapter {
	a := &Adapter{
		ch:      ch,
		gate:    gate,
		model:   house.DefaultModel(),
		tariff:  tariff.DefaultSchedule(),
		cfg:     DefaultConfig(),
		log:     logging.Discard(),
		outdoor: engine.NoHandle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the current lifecycle state.
func (a *Adapter) State() State { return State(a.state.Load()) }

// Stats returns the run's counters.
func (a *Adapter) Stats() Stats {
	return Stats{
		Steps:       a.nSteps.Load(),
		WarmupSteps: a.nWarmup.Load(),
		Faults:      a.nFaults.Load(),
		Heuristic:   a.nHeuristic.Load(),
		Unresolved:  a.nUnresolved.Load(),
	}
}

// Run serves the engine on conn until it reports done, closes the stream, or
// ctx is cancelled. A clean end of run returns nil.
func (a *Adapter) Run(ctx context.Context, conn *engine.Conn) error {
	defer a.state.Store(int32(Terminated))

	for {
		msg, err := conn.Receive()
		if errors.Is(err, io.EOF) {
			a.log.Debug("engine closed its output")
			return nil
		}
		var fe *engine.FrameError
		if errors.As(err, &fe) {
			if err := a.onBadFrame(ctx, conn, fe); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		a.log.Log(ctx, logging.LevelTrace, "engine frame", "type", msg.Type, "hour", msg.Hour, "warmup", msg.Warmup)

		switch msg.Type {
		case engine.TypeCatalog:
			a.onCatalog(msg)

		case engine.TypeStep:
			// The only suspension point: nothing of this step has run yet.
			if err := a.gate.Wait(ctx); err != nil {
				return err
			}
			writes := a.Step(msg)
			if err := sleepCtx(ctx, a.cfg.StepDelay); err != nil {
				return err
			}
			if err := conn.Send(engine.Message{Type: engine.TypeActuate, Writes: writes}); err != nil {
				return err
			}

		case engine.TypeDone:
			a.log.Debug("engine run period complete", "steps", a.nSteps.Load())
			return nil

		default:
			a.log.Debug("ignoring engine frame", "type", msg.Type)
		}
	}
}

// onBadFrame absorbs a frame that did not decode. A step is still answered,
// with no writes, so the engine keeps running; anything else is dropped.
func (a *Adapter) onBadFrame(ctx context.Context, conn *engine.Conn, fe *engine.FrameError) error {
	a.nFaults.Add(1)
	if fe.Type != engine.TypeStep {
		a.log.Debug("dropping undecodable engine frame", "error", fe)
		return nil
	}
	if err := a.gate.Wait(ctx); err != nil {
		return err
	}
	a.index++
	res := StepResult{Step: a.index, Hour: a.ch.Hour(), Fault: fe}
	a.log.Debug("engine step faulted", "step", res.Step, "error", fe)
	a.report(res)
	if err := sleepCtx(ctx, a.cfg.StepDelay); err != nil {
		return err
	}
	return conn.Send(engine.Message{Type: engine.TypeActuate})
}

func (a *Adapter) onCatalog(msg engine.Message) {
	a.catalog = engine.CatalogFrom(msg)
	a.resolved = false
	a.outdoor = a.catalog.Variable(engine.VarOutdoor, engine.OutdoorKey).Handle
	if a.State() == Uninitialized {
		a.state.Store(int32(WarmingUp))
	}
	a.log.Debug("engine catalog received", "variables", len(a.catalog.Variables), "actuators", len(a.catalog.Actuators))
}

// Step handles one step frame and returns the actuator writes. A fault
// anywhere in the step is absorbed: the step becomes a no-op and no writes
// are returned, so the engine keeps running.
func (a *Adapter) Step(msg engine.Message) (writes []engine.Write) {
	a.index++
	res := StepResult{Step: a.index, Warmup: msg.Warmup, Hour: msg.Hour}

	defer func() {
		if r := recover(); r != nil {
			res.Fault = fmt.Errorf("step panicked: %v", r)
			writes = nil
		}
		if res.Fault != nil {
			a.nFaults.Add(1)
			res.Writes = 0
			a.log.Debug("engine step faulted", "step", res.Step, "error", res.Fault)
		}
		a.report(res)
	}()

	if a.State() == Uninitialized {
		// A step before any catalog: every reference stays unresolved.
		a.onCatalog(engine.Message{Type: engine.TypeCatalog})
	}

	if msg.Warmup {
		a.warmup(msg)
		a.nWarmup.Add(1)
		res.Hour = channel.WarmupHour
		return nil
	}

	if !a.resolved {
		a.enterStepping()
	}

	var err error
	writes, err = a.step(msg, &res)
	if err != nil {
		res.Fault = err
		return nil
	}
	a.nSteps.Add(1)
	res.Writes = len(writes)
	return writes
}

func (a *Adapter) warmup(msg engine.Message) {
	outdoor, ok := msg.Value(a.outdoor)
	a.ch.Write(func(tx *channel.Tx) {
		tx.SetHour(channel.WarmupHour)
		if ok && finite(outdoor) {
			tx.SetOutdoor(outdoor)
		}
	})
}

func (a *Adapter) enterStepping() {
	h, missing := resolveHandles(a.catalog, a.model, a.log)
	a.h = h
	a.resolved = true
	a.nUnresolved.Store(int64(missing))
	a.ch.Write(func(tx *channel.Tx) { tx.SetBill(0) })
	a.state.Store(int32(Stepping))
	a.log.Info("engine warm-up complete", "unresolved", missing)
}

func (a *Adapter) step(msg engine.Message, res *StepResult) ([]engine.Write, error) {
	if !finite(msg.Hour) {
		return nil, fmt.Errorf("step hour is not finite: %v", msg.Hour)
	}
	dt := msg.TimestepHours
	if !finite(dt) || dt <= 0 {
		dt = a.cfg.DefaultTimestepHours
	}

	cur := a.ch.Snapshot()
	var sp [house.ZoneCount]float64
	for _, z := range house.Zones() {
		sp[z] = a.ch.Setpoint(z)
	}

	var temps, rh [house.ZoneCount]float64
	joules := 0.0
	for _, z := range house.Zones() {
		temps[z] = a.reading(msg, a.h.temp[z], cur.Zones[z].Temperature)
		rh[z] = a.reading(msg, a.h.humidity[z], cur.Zones[z].Humidity)
		for _, hd := range []int{a.h.heating[z], a.h.cooling[z]} {
			if v, ok := msg.Value(hd); ok {
				if !finite(v) || v < 0 {
					return nil, fmt.Errorf("zone %s energy reading %v is invalid", z, v)
				}
				joules += v
			}
		}
	}
	outdoor := a.reading(msg, a.h.outdoor, cur.Outdoor)

	kwh := joules / joulesPerKWh
	if joules == 0 {
		for _, z := range house.Zones() {
			if house.SetpointActive(sp[z]) && math.Abs(sp[z]-temps[z]) > a.cfg.HeuristicDelta {
				kwh += a.cfg.HeuristicKWh
				res.Heuristic = true
			}
		}
		if res.Heuristic {
			a.nHeuristic.Add(1)
		}
	}

	hour := math.Mod(msg.Hour, 24)
	if hour < 0 {
		hour += 24
	}
	price := a.tariff.PriceAt(hour)
	power := kwh / dt
	bill := cur.Bill + price*kwh

	a.ch.Write(func(tx *channel.Tx) {
		tx.SetHour(hour)
		for _, z := range house.Zones() {
			tx.SetZone(z, temps[z], rh[z])
		}
		tx.SetEnergy(price, power, bill)
		tx.SetOutdoor(outdoor)
	})

	res.Hour, res.KWh, res.Power, res.Price, res.Bill = hour, kwh, power, price, bill
	return a.actuate(sp), nil
}

// reading returns the value at handle, or fallback when unresolved or not finite.
func (a *Adapter) reading(msg engine.Message, handle int, fallback float64) float64 {
	v, ok := msg.Value(handle)
	if !ok || !finite(v) {
		return fallback
	}
	return v
}

// actuate translates setpoints into dual-setpoint schedule writes.
func (a *Adapter) actuate(sp [house.ZoneCount]float64) []engine.Write {
	writes := make([]engine.Write, 0, 2*house.ZoneCount)
	for _, z := range house.Zones() {
		heat, cool := a.cfg.HeatingOff, a.cfg.CoolingOff
		if house.SetpointActive(sp[z]) {
			heat = sp[z]
			cool = heat + a.cfg.Deadband
		}
		if hd := a.h.heatSched[z]; hd != engine.NoHandle {
			writes = append(writes, engine.Write{Handle: hd, Value: heat})
		}
		if hd := a.h.coolSched[z]; hd != engine.NoHandle {
			writes = append(writes, engine.Write{Handle: hd, Value: cool})
		}
	}
	return writes
}

func (a *Adapter) report(res StepResult) {
	ev := logging.StepEvent{
		Step:      res.Step,
		Warmup:    res.Warmup,
		Hour:      res.Hour,
		KWh:       res.KWh,
		Price:     res.Price,
		Bill:      res.Bill,
		Power:     res.Power,
		Heuristic: res.Heuristic,
		Writes:    res.Writes,
	}
	switch {
	case res.Fault != nil:
		ev.Skipped = res.Fault.Error()
	case res.Warmup:
		ev.Skipped = "warmup"
	}
	a.steps.Log(ev)

	if a.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.log.Debug("step observer panicked", "step", res.Step, "panic", r)
		}
	}()
	a.observer.ObserveStep(res)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
