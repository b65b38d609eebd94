// Package supervisor owns the lifecycle of one engine process and its
// adapter, and is the consumer's only sanctioned access point to the shared
// channel.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/adubusi/AI-Family/internal/adapter"
	"github.com/adubusi/AI-Family/internal/channel"
	"github.com/adubusi/AI-Family/internal/engine"
	"github.com/adubusi/AI-Family/internal/house"
	"github.com/adubusi/AI-Family/internal/logging"
	"github.com/adubusi/AI-Family/internal/tariff"
)

// BuildingFile is the name of the generated house description in the work dir.
const BuildingFile = "house.json"

var (
	// ErrAlreadyStarted is returned by Start when an engine was started and
	// not restarted or closed since.
	ErrAlreadyStarted = errors.New("simulation already started")
	// ErrNotStarted is returned by operations that need a running engine.
	ErrNotStarted = errors.New("simulation not started")
	// ErrWeatherMissing is returned when the weather file does not exist.
	ErrWeatherMissing = errors.New("weather file missing")
	// ErrInvalidSetpoint is returned for a setpoint that is not a finite number.
	ErrInvalidSetpoint = errors.New("invalid setpoint")
)

// Options configures a Supervisor.
type Options struct {
	// Launcher spawns the engine. Nil uses engine.ExecLauncher.
	Launcher engine.Launcher
	// Invocation names the engine command and weather file. BuildingFile is
	// filled in by Start.
	Invocation engine.Invocation
	Model      house.Model
	Tariff     tariff.Schedule
	Adapter    adapter.Config
	// Channel is the shared block. Nil allocates an in-memory one.
	Channel    *channel.Channel
	Logger     *slog.Logger
	StepLogger *logging.StepLogger
	Observer   adapter.Observer
}

// ZoneReading is the sensed state of a zone.
type ZoneReading struct {
	Zone        string  `json:"zone"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Setpoint    float64 `json:"setpoint"`
	Active      bool    `json:"active"`
}

// EnergySummary is the billing state of the house.
type EnergySummary struct {
	Price   float64 `json:"price"`
	Power   float64 `json:"power"`
	Bill    float64 `json:"bill"`
	Outdoor float64 `json:"outdoor"`
}

// run is one engine process and the adapter serving it.
type run struct {
	id      string
	proc    engine.Process
	adapter *adapter.Adapter
	cancel  context.CancelFunc
	done    chan struct{}
	exitErr error

	// stopping is set by Restart and Close before they cancel the run.
	stopping atomic.Bool
}

// Supervisor starts, pauses, restarts and observes the engine.
type Supervisor struct {
	opts Options
	ch   *channel.Channel
	log  *slog.Logger

	// life serializes Start, Restart and Close.
	life sync.Mutex

	// mu guards the current run and consumer-side aggregate reads.
	mu   sync.Mutex
	cur  *run
	gate *adapter.Gate
}

// New returns a supervisor. Nothing is spawned until Start.
func New(opts Options) *Supervisor {
	if opts.Launcher == nil {
		opts.Launcher = engine.ExecLauncher{}
	}
	if len(opts.Model.Rooms) == 0 {
		opts.Model = house.DefaultModel()
	}
	if opts.Tariff == (tariff.Schedule{}) {
		opts.Tariff = tariff.DefaultSchedule()
	}
	if opts.Adapter == (adapter.Config{}) {
		opts.Adapter = adapter.DefaultConfig()
	}
	ch := opts.Channel
	if ch == nil {
		ch = channel.New()
	}
	return &Supervisor{
		opts: opts,
		ch:   ch,
		log:  logging.OrDiscard(opts.Logger),
		gate: adapter.NewGate(),
	}
}

// Start resets the channel and spawns the engine bound to a fresh adapter.
// The engine runs until it finishes its run period or is killed; ctx only
// bounds the launch.
func (s *Supervisor) Start(ctx context.Context) error {
	s.life.Lock()
	defer s.life.Unlock()
	return s.start(ctx)
}

func (s *Supervisor) start(ctx context.Context) error {
	s.mu.Lock()
	started := s.cur != nil
	s.mu.Unlock()
	if started {
		return ErrAlreadyStarted
	}

	inv := s.opts.Invocation
	if inv.WeatherFile == "" {
		return fmt.Errorf("%w: no weather file configured", ErrWeatherMissing)
	}
	if _, err := os.Stat(inv.WeatherFile); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWeatherMissing, inv.WeatherFile, err)
	}

	if inv.WorkDir == "" {
		dir, err := os.MkdirTemp("", "aifamily-")
		if err != nil {
			return fmt.Errorf("creating work dir: %w", err)
		}
		s.opts.Invocation.WorkDir = dir
		inv.WorkDir = dir
	}
	if err := os.MkdirAll(inv.WorkDir, 0755); err != nil {
		return fmt.Errorf("creating work dir: %w", err)
	}
	inv.BuildingFile = filepath.Join(inv.WorkDir, BuildingFile)
	if err := s.opts.Model.WriteFile(inv.BuildingFile); err != nil {
		return fmt.Errorf("writing building description: %w", err)
	}

	s.ch.Reset(channel.DefaultState(s.opts.Model))
	gate := adapter.NewGate()

	id := uuid.NewString()
	s.opts.StepLogger.SetRun(id)

	proc, err := s.opts.Launcher.Launch(ctx, inv)
	if err != nil {
		return fmt.Errorf("launching engine: %w", err)
	}

	a := adapter.New(s.ch, gate,
		adapter.WithConfig(s.opts.Adapter),
		adapter.WithModel(s.opts.Model),
		adapter.WithTariff(s.opts.Tariff),
		adapter.WithLogger(s.log),
		adapter.WithStepLogger(s.opts.StepLogger),
		adapter.WithObserver(s.opts.Observer),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{id: id, proc: proc, adapter: a, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.cur = r
	s.gate = gate
	s.mu.Unlock()

	s.log.Info("engine started", "run", id, "pid", proc.Pid(), "command", inv.Command)
	go s.serve(runCtx, r)
	return nil
}

// serve runs the adapter until the engine stops, then reaps the process.
func (s *Supervisor) serve(ctx context.Context, r *run) {
	defer close(r.done)
	defer r.cancel()

	// An adapter held at the pause gate is not reading; release it when the
	// engine dies so the exit is observed.
	go func() {
		select {
		case <-r.proc.Exited():
			r.cancel()
		case <-ctx.Done():
		}
	}()

	runErr := r.adapter.Run(ctx, engine.NewConn(r.proc.Stdout(), r.proc.Stdin()))
	if runErr != nil {
		// A stuck or broken engine must not outlive its adapter.
		_ = r.proc.Kill()
	}
	waitErr := r.proc.Wait()

	switch {
	case r.stopping.Load():
		// Stopped by Restart or Close.
	case waitErr != nil:
		r.exitErr = fmt.Errorf("engine exited: %w", waitErr)
	case runErr != nil:
		r.exitErr = fmt.Errorf("engine bridge: %w", runErr)
	}

	st := r.adapter.Stats()
	s.log.Info("engine stopped", "run", r.id, "steps", st.Steps, "faults", st.Faults, "error", r.exitErr)
}

// Restart kills the engine if it is alive, waits for it, and starts again.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.life.Lock()
	defer s.life.Unlock()
	s.stop()
	return s.start(ctx)
}

// Close kills the engine if it is alive and waits for it to exit.
func (s *Supervisor) Close() error {
	s.life.Lock()
	defer s.life.Unlock()
	s.stop()
	return nil
}

func (s *Supervisor) stop() {
	s.mu.Lock()
	r := s.cur
	s.cur = nil
	s.mu.Unlock()
	if r == nil {
		return
	}
	r.stopping.Store(true)
	r.cancel()
	_ = r.proc.Kill()
	<-r.done
}

// Pause suspends the adapter before its next timestep. Channel values are
// not touched.
func (s *Supervisor) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate.Pause()
}

// Resume releases a paused adapter.
func (s *Supervisor) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate.Resume()
}

// Paused reports whether the adapter is held at the gate.
func (s *Supervisor) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.Paused()
}

// Started reports whether Start has run since the last Restart or Close.
func (s *Supervisor) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// Alive reports whether the engine is still running.
func (s *Supervisor) Alive() bool {
	s.mu.Lock()
	r := s.cur
	s.mu.Unlock()
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	case <-r.proc.Exited():
		return false
	default:
		return true
	}
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Done is closed when the current engine exits. Without a run it is closed.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return closedChan
	}
	return s.cur.done
}

// ExitErr returns why the current engine stopped, once it has. A clean end of
// the run period and a requested stop both return nil.
func (s *Supervisor) ExitErr() error {
	s.mu.Lock()
	r := s.cur
	s.mu.Unlock()
	if r == nil {
		return ErrNotStarted
	}
	select {
	case <-r.done:
		return r.exitErr
	default:
		return nil
	}
}

// RunID identifies the current engine run.
func (s *Supervisor) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return ""
	}
	return s.cur.id
}

// Stats returns the current adapter's counters.
func (s *Supervisor) Stats() adapter.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return adapter.Stats{}
	}
	return s.cur.adapter.Stats()
}

// Model returns the house being simulated.
func (s *Supervisor) Model() house.Model { return s.opts.Model }

// Tariff returns the rate schedule.
func (s *Supervisor) Tariff() tariff.Schedule { return s.opts.Tariff }

// Snapshot returns a consistent copy of the channel.
func (s *Supervisor) Snapshot() channel.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch.Snapshot()
}

// ZoneReading returns the state of the named zone.
func (s *Supervisor) ZoneReading(name string) (ZoneReading, error) {
	z, err := house.ParseZone(name)
	if err != nil {
		return ZoneReading{}, err
	}
	zs := s.Snapshot().Zone(z)
	return ZoneReading{
		Zone:        z.String(),
		Temperature: zs.Temperature,
		Humidity:    zs.Humidity,
		Setpoint:    zs.Setpoint,
		Active:      zs.Active(),
	}, nil
}

// Zones returns every zone reading in house order.
func (s *Supervisor) Zones() []ZoneReading {
	snap := s.Snapshot()
	out := make([]ZoneReading, 0, house.ZoneCount)
	for _, z := range house.Zones() {
		zs := snap.Zone(z)
		out = append(out, ZoneReading{
			Zone:        z.String(),
			Temperature: zs.Temperature,
			Humidity:    zs.Humidity,
			Setpoint:    zs.Setpoint,
			Active:      zs.Active(),
		})
	}
	return out
}

// EnergySummary returns the billing state.
func (s *Supervisor) EnergySummary() EnergySummary {
	snap := s.Snapshot()
	return EnergySummary{Price: snap.Price, Power: snap.Power, Bill: snap.Bill, Outdoor: snap.Outdoor}
}

// Setpoint returns the requested setpoint of the named zone.
func (s *Supervisor) Setpoint(name string) (float64, error) {
	z, err := house.ParseZone(name)
	if err != nil {
		return 0, err
	}
	return s.ch.Setpoint(z), nil
}

// SetSetpoint requests a setpoint for the named zone. Values at or below 1
// disable the zone's HVAC.
func (s *Supervisor) SetSetpoint(name string, v float64) error {
	z, err := house.ParseZone(name)
	if err != nil {
		return err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSetpoint, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch.SetSetpoint(z, v)
	return nil
}

// CurrentHour returns the hour-of-day, or channel.WarmupHour while the engine
// warms up.
func (s *Supervisor) CurrentHour() float64 {
	return s.ch.Hour()
}

// Channel exposes the shared block for read-only observers.
func (s *Supervisor) Channel() *channel.Channel { return s.ch }
