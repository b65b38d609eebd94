package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adubusi/AI-Family/internal/channel"
	"github.com/adubusi/AI-Family/internal/engine"
	"github.com/adubusi/AI-Family/internal/engine/enginetest"
	"github.com/adubusi/AI-Family/internal/house"
)

func testConfig() Config {
	c := DefaultConfig()
	c.StepDelay = 0
	return c
}

// frame builds standard step values from per-zone temperatures and heating joules.
func frame(temps [house.ZoneCount]float64, heatJ [house.ZoneCount]float64, outdoor float64) []float64 {
	f := engine.Frame{Outdoor: outdoor}
	for _, z := range house.Zones() {
		f.Rooms = append(f.Rooms, engine.RoomReading{Temperature: temps[z], Humidity: 45, HeatingJ: heatJ[z]})
	}
	return f.Values()
}

// runEngine serves e with a until the run ends and returns Run's error.
func runEngine(t *testing.T, a *Adapter, e *enginetest.Engine) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.Run(ctx, engine.NewConn(e.Stdout(), e.Stdin()))
	e.Kill()
	return err
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

type recorder struct {
	mu      sync.Mutex
	results []StepResult
}

func (r *recorder) ObserveStep(res StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func TestRun_BillsAndActuates(t *testing.T) {
	script := enginetest.NewScript(2, 3)
	script.Values = func(i int) []float64 {
		return frame([house.ZoneCount]float64{21, 20.5, 23}, [house.ZoneCount]float64{joulesPerKWh, 0, 0}, -6)
	}
	e := enginetest.Start(script)

	ch := channel.New()
	rec := &recorder{}
	a := New(ch, NewGate(), WithConfig(testConfig()), WithObserver(rec))

	if a.State() != Uninitialized {
		t.Fatalf("initial state = %v", a.State())
	}
	if err := runEngine(t, a, e); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if a.State() != Terminated {
		t.Errorf("final state = %v, want terminated", a.State())
	}

	s := ch.Snapshot()
	// 1 kWh per step at the valley rate.
	if !near(s.Bill, 3*0.30) {
		t.Errorf("Bill = %v, want 0.9", s.Bill)
	}
	if !near(s.Power, 6) {
		t.Errorf("Power = %v, want 6 kW", s.Power)
	}
	if s.Price != 0.30 {
		t.Errorf("Price = %v, want 0.30", s.Price)
	}
	if s.Outdoor != -6 {
		t.Errorf("Outdoor = %v, want -6", s.Outdoor)
	}
	if s.Zone(house.KidsRoom).Temperature != 23 || s.Zone(house.KidsRoom).Humidity != 45 {
		t.Errorf("KidsRoom = %+v", s.Zone(house.KidsRoom))
	}

	acts := e.Actuations()
	if len(acts) != 5 {
		t.Fatalf("answered %d steps, want 5", len(acts))
	}
	for i := 0; i < 2; i++ {
		if len(acts[i]) != 0 {
			t.Errorf("warm-up step %d wrote %v", i, acts[i])
		}
	}
	want := []engine.Write{
		{Handle: 0, Value: 22}, {Handle: 1, Value: 26},
		{Handle: 2, Value: 20}, {Handle: 3, Value: 24},
		{Handle: 4, Value: 24}, {Handle: 5, Value: 28},
	}
	got := acts[4]
	if len(got) != len(want) {
		t.Fatalf("writes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	st := a.Stats()
	if st.Steps != 3 || st.WarmupSteps != 2 || st.Faults != 0 || st.Unresolved != 0 {
		t.Errorf("Stats() = %+v", st)
	}
	if len(rec.results) != 5 || !rec.results[0].Warmup || rec.results[4].Writes != 6 {
		t.Errorf("observer saw %+v", rec.results)
	}
}

func TestStep_WarmupWritesSentinelOnly(t *testing.T) {
	ch := channel.New()
	a := New(ch, NewGate(), WithConfig(testConfig()))
	a.onCatalog(engine.StandardCatalog(house.DefaultModel()).Message())

	writes := a.Step(engine.Message{
		Type:   engine.TypeStep,
		Warmup: true,
		Values: frame([house.ZoneCount]float64{5, 5, 5}, [house.ZoneCount]float64{1e9, 0, 0}, -12),
	})
	if len(writes) != 0 {
		t.Errorf("warm-up writes = %v", writes)
	}

	s := ch.Snapshot()
	if !s.WarmingUp() {
		t.Errorf("hour = %v, want warm-up sentinel", s.Hour)
	}
	if s.Outdoor != -12 {
		t.Errorf("Outdoor = %v, want -12", s.Outdoor)
	}
	if s.Bill != 0 {
		t.Errorf("warm-up billed %v", s.Bill)
	}
	if s.Zone(house.LivingRoom).Temperature != 20 {
		t.Errorf("warm-up touched zone temperature: %v", s.Zone(house.LivingRoom).Temperature)
	}
	if a.State() != WarmingUp {
		t.Errorf("state = %v, want warming_up", a.State())
	}
}

func TestStep_ZeroEnergyHeuristic(t *testing.T) {
	ch := channel.New()
	a := New(ch, NewGate(), WithConfig(testConfig()))
	a.onCatalog(engine.StandardCatalog(house.DefaultModel()).Message())

	// LivingRoom wants 22 and sits at 18. The other rooms are on target.
	a.Step(engine.Message{
		Type:          engine.TypeStep,
		Hour:          8,
		TimestepHours: 1.0 / 6,
		Values:        frame([house.ZoneCount]float64{18, 20, 24}, [house.ZoneCount]float64{}, -4),
	})

	s := ch.Snapshot()
	if !near(s.Bill, 0.2*0.90) {
		t.Errorf("Bill = %v, want %v", s.Bill, 0.2*0.90)
	}
	if !near(s.Power, 0.2*6) {
		t.Errorf("Power = %v, want 1.2", s.Power)
	}
	if a.Stats().Heuristic != 1 {
		t.Errorf("Heuristic = %d, want 1", a.Stats().Heuristic)
	}

	// A disabled zone far from target draws nothing.
	ch.SetSetpoint(house.LivingRoom, house.SetpointOff)
	a.Step(engine.Message{
		Type:   engine.TypeStep,
		Hour:   8.5,
		Values: frame([house.ZoneCount]float64{10, 20, 24}, [house.ZoneCount]float64{}, -4),
	})
	if !near(ch.Bill(), 0.2*0.90) {
		t.Errorf("Bill after disabled step = %v, want unchanged", ch.Bill())
	}
}

func TestStep_DisabledZoneActuation(t *testing.T) {
	ch := channel.New()
	a := New(ch, NewGate(), WithConfig(testConfig()))
	a.onCatalog(engine.StandardCatalog(house.DefaultModel()).Message())

	ch.SetSetpoint(house.MasterRoom, 0)
	ch.SetSetpoint(house.KidsRoom, 1)
	writes := a.Step(engine.Message{Type: engine.TypeStep, Hour: 12, Values: frame([house.ZoneCount]float64{22, 20, 24}, [house.ZoneCount]float64{}, 0)})

	want := map[int]float64{0: 22, 1: 26, 2: -60, 3: 100, 4: -60, 5: 100}
	if len(writes) != len(want) {
		t.Fatalf("writes = %v", writes)
	}
	for _, w := range writes {
		if want[w.Handle] != w.Value {
			t.Errorf("handle %d = %v, want %v", w.Handle, w.Value, want[w.Handle])
		}
	}
}

func TestStep_BillResetOnEnteringStepping(t *testing.T) {
	ch := channel.New()
	ch.Write(func(tx *channel.Tx) { tx.SetBill(7) })

	a := New(ch, NewGate(), WithConfig(testConfig()))
	a.onCatalog(engine.StandardCatalog(house.DefaultModel()).Message())
	a.Step(engine.Message{Type: engine.TypeStep, Hour: 3, Values: frame([house.ZoneCount]float64{22, 20, 24}, [house.ZoneCount]float64{}, 0)})

	if ch.Bill() != 0 {
		t.Errorf("Bill = %v, want 0 after handle resolution", ch.Bill())
	}
	if a.State() != Stepping {
		t.Errorf("state = %v, want stepping", a.State())
	}
}

func TestStep_HourNormalization(t *testing.T) {
	ch := channel.New()
	a := New(ch, NewGate(), WithConfig(testConfig()))
	a.onCatalog(engine.StandardCatalog(house.DefaultModel()).Message())

	a.Step(engine.Message{Type: engine.TypeStep, Hour: 24, Values: frame([house.ZoneCount]float64{22, 20, 24}, [house.ZoneCount]float64{joulesPerKWh, 0, 0}, 0)})
	s := ch.Snapshot()
	if s.Hour != 0 || s.Price != 0.30 {
		t.Errorf("hour 24 => hour %v price %v, want 0 / valley", s.Hour, s.Price)
	}
}

func TestStep_FaultIsAbsorbed(t *testing.T) {
	ch := channel.New()
	rec := &recorder{}
	a := New(ch, NewGate(), WithConfig(testConfig()), WithObserver(rec))
	a.onCatalog(engine.StandardCatalog(house.DefaultModel()).Message())

	writes := a.Step(engine.Message{
		Type:   engine.TypeStep,
		Hour:   9,
		Values: frame([house.ZoneCount]float64{30, 30, 30}, [house.ZoneCount]float64{math.NaN(), 0, 0}, 0),
	})
	if writes != nil {
		t.Errorf("faulted step wrote %v", writes)
	}
	if a.Stats().Faults != 1 || a.Stats().Steps != 0 {
		t.Errorf("Stats() = %+v", a.Stats())
	}
	if ch.Snapshot().Zone(house.LivingRoom).Temperature != 20 {
		t.Error("faulted step changed the channel")
	}
	if len(rec.results) != 1 || rec.results[0].Fault == nil {
		t.Errorf("observer saw %+v", rec.results)
	}

	// A panicking observer is absorbed too.
	b := New(ch, NewGate(), WithConfig(testConfig()), WithObserver(ObserverFunc(func(StepResult) { panic("boom") })))
	b.onCatalog(engine.StandardCatalog(house.DefaultModel()).Message())
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("observer panic escaped Step: %v", r)
			}
		}()
		b.Step(engine.Message{Type: engine.TypeStep, Hour: 9, Values: frame([house.ZoneCount]float64{22, 20, 24}, [house.ZoneCount]float64{}, 0)})
	}()
}

func TestRun_FaultKeepsEngineRunning(t *testing.T) {
	script := enginetest.NewScript(0, 4)
	script.Values = func(i int) []float64 {
		heat := 0.0
		if i == 1 {
			heat = -5
		}
		return frame([house.ZoneCount]float64{22, 20, 24}, [house.ZoneCount]float64{heat, 0, 0}, 0)
	}
	e := enginetest.Start(script)
	a := New(channel.New(), NewGate(), WithConfig(testConfig()))

	if err := runEngine(t, a, e); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if e.Completed() != 4 {
		t.Errorf("engine completed %d steps, want 4", e.Completed())
	}
	if len(e.Actuations()[1]) != 0 {
		t.Errorf("faulted step wrote %v", e.Actuations()[1])
	}
	if a.Stats().Faults != 1 || a.Stats().Steps != 3 {
		t.Errorf("Stats() = %+v", a.Stats())
	}
}

func TestRun_UndecodableStepIsAnswered(t *testing.T) {
	catalog, _ := json.Marshal(engine.StandardCatalog(house.DefaultModel()).Message())
	step := func(hour float64) string {
		b, _ := json.Marshal(engine.Message{
			Type:          engine.TypeStep,
			Hour:          hour,
			TimestepHours: 1.0 / 6,
			Values:        frame([house.ZoneCount]float64{22, 20, 24}, [house.ZoneCount]float64{}, -4),
		})
		return string(b)
	}
	nanStep := strings.Replace(step(8), `"values":[22,`, `"values":[NaN,`, 1)
	if nanStep == step(8) {
		t.Fatal("test frame has an unexpected layout")
	}
	lines := []string{step(7), nanStep, `{"type":"step","hour":9,"values":[1,}`, step(10)}

	engineIn, bridgeOut := io.Pipe()
	bridgeIn, engineOut := io.Pipe()
	answers := make(chan []engine.Message, 1)
	go func() {
		conn := engine.NewConn(engineIn, io.Discard)
		var got []engine.Message
		defer func() { answers <- got }()
		fmt.Fprintln(engineOut, string(catalog))
		for _, line := range lines {
			fmt.Fprintln(engineOut, line)
			m, err := conn.Receive()
			if err != nil {
				return
			}
			got = append(got, m)
		}
		fmt.Fprintln(engineOut, `{"type":"done"}`)
		engineOut.Close()
	}()

	ch := channel.New()
	var atNaN float64
	a := New(ch, NewGate(), WithConfig(testConfig()), WithObserver(ObserverFunc(func(res StepResult) {
		if res.Fault == nil && res.Hour == 8 {
			atNaN = ch.Snapshot().Zone(house.LivingRoom).Temperature
		}
	})))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Run(ctx, engine.NewConn(bridgeIn, bridgeOut)); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	got := <-answers
	if len(got) != len(lines) {
		t.Fatalf("engine got %d answers, want %d", len(got), len(lines))
	}
	for i, m := range got {
		if m.Type != engine.TypeActuate {
			t.Errorf("answer %d is %q", i, m.Type)
		}
	}
	if len(got[2].Writes) != 0 {
		t.Errorf("undecodable step wrote %v", got[2].Writes)
	}
	if len(got[1].Writes) != 2*house.ZoneCount {
		t.Errorf("NaN step wrote %d actuators", len(got[1].Writes))
	}
	if atNaN != 22 {
		t.Errorf("LivingRoom after NaN reading = %v, want last value 22", atNaN)
	}
	if st := a.Stats(); st.Faults != 1 || st.Steps != 3 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestRun_MissingHandlesAreSkipped(t *testing.T) {
	cat := engine.StandardCatalog(house.DefaultModel())
	// Drop the outdoor variable and the KidsRoom schedules.
	cat.Variables = cat.Variables[:len(cat.Variables)-1]
	cat.Actuators = cat.Actuators[:4]

	script := enginetest.NewScript(0, 1)
	script.Catalog = cat
	script.Values = func(int) []float64 {
		v := frame([house.ZoneCount]float64{22, 20, 24}, [house.ZoneCount]float64{}, 99)
		return v[:len(v)-1]
	}
	e := enginetest.Start(script)
	ch := channel.New()
	a := New(ch, NewGate(), WithConfig(testConfig()))

	if err := runEngine(t, a, e); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := len(e.Actuations()[0]); got != 4 {
		t.Errorf("wrote %d actuators, want 4", got)
	}
	if a.Stats().Unresolved != 3 {
		t.Errorf("Unresolved = %d, want 3", a.Stats().Unresolved)
	}
	if ch.Snapshot().Outdoor != -4 {
		t.Errorf("Outdoor = %v, want last value -4", ch.Snapshot().Outdoor)
	}
}

func TestRun_RelaxedKeys(t *testing.T) {
	cat := engine.StandardCatalog(house.DefaultModel())
	for i := range cat.Variables {
		if cat.Variables[i].Name == engine.VarZoneTemperature {
			cat.Variables[i].Key = "LIVINGROOM"
			break
		}
	}
	script := enginetest.NewScript(0, 1)
	script.Catalog = cat
	script.Values = func(int) []float64 {
		return frame([house.ZoneCount]float64{17.5, 20, 24}, [house.ZoneCount]float64{}, 0)
	}
	e := enginetest.Start(script)
	ch := channel.New()
	a := New(ch, NewGate(), WithConfig(testConfig()))

	if err := runEngine(t, a, e); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := ch.Snapshot().Zone(house.LivingRoom).Temperature; got != 17.5 {
		t.Errorf("LivingRoom temperature = %v, want 17.5 via relaxed key", got)
	}
	if a.Stats().Unresolved != 0 {
		t.Errorf("Unresolved = %d", a.Stats().Unresolved)
	}
}

func TestRun_PauseSuspendsBeforeStep(t *testing.T) {
	e := enginetest.Start(enginetest.NewScript(1, 2))
	ch := channel.New()
	gate := NewGate()
	gate.Pause()
	a := New(ch, gate, WithConfig(testConfig()))

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background(), engine.NewConn(e.Stdout(), e.Stdin())) }()

	time.Sleep(50 * time.Millisecond)
	if e.Completed() != 0 {
		t.Fatalf("engine advanced %d steps while paused", e.Completed())
	}
	if ch.Snapshot().WarmingUp() {
		t.Fatal("paused adapter wrote the warm-up sentinel")
	}

	gate.Resume()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not finish after Resume")
	}
	if e.Completed() != 3 {
		t.Errorf("completed %d steps, want 3", e.Completed())
	}
}

func TestRun_CancelWhilePaused(t *testing.T) {
	e := enginetest.Start(enginetest.NewScript(0, 2))
	defer e.Kill()
	gate := NewGate()
	gate.Pause()
	a := New(channel.New(), gate, WithConfig(testConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, engine.NewConn(e.Stdout(), e.Stdin())) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run ignored cancellation while paused")
	}
}

func TestRun_EngineKilled(t *testing.T) {
	script := enginetest.NewScript(0, 1)
	script.Hold = true
	e := enginetest.Start(script)
	a := New(channel.New(), NewGate(), WithConfig(testConfig()))

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background(), engine.NewConn(e.Stdout(), e.Stdin())) }()

	for e.Completed() < 1 {
		time.Sleep(time.Millisecond)
	}
	e.Kill()
	select {
	case err := <-done:
		if err == nil {
			t.Error("Run() = nil after kill, want a read error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not notice the kill")
	}
	if !errors.Is(e.Wait(), enginetest.ErrKilled) {
		t.Errorf("Wait() = %v, want ErrKilled", e.Wait())
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	bad := []func(*Config){
		func(c *Config) { c.StepDelay = -time.Second },
		func(c *Config) { c.Deadband = -1 },
		func(c *Config) { c.HeuristicKWh = -0.1 },
		func(c *Config) { c.DefaultTimestepHours = 0 },
		func(c *Config) { c.DefaultTimestepHours = 2 },
	}
	for i, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: Validate() = nil", i)
		}
	}
}
