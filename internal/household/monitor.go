// Package household is the headless consumer loop: it watches the shared
// channel tick by tick, places occupants, scores their comfort, keeps the
// hourly cost log and waste score, and decides when the simulated day ends.
package household

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adubusi/AI-Family/internal/channel"
	"github.com/adubusi/AI-Family/internal/comfort"
	"github.com/adubusi/AI-Family/internal/house"
	"github.com/adubusi/AI-Family/internal/logging"
)

// Source is the simulation the monitor watches. *supervisor.Supervisor
// satisfies it.
type Source interface {
	Snapshot() channel.Snapshot
	Alive() bool
	Pause()
	RunID() string
}

// Config holds the monitor's tunables.
type Config struct {
	// Tick is the real-time interval between observations.
	Tick time.Duration `json:"tick" yaml:"tick"`
	// DayEndHour ends the day once the hour slot passes it.
	DayEndHour float64 `json:"day_end_hour" yaml:"day_end_hour"`
	// DailyBudget is the household's spending limit per day.
	DailyBudget float64 `json:"daily_budget" yaml:"daily_budget"`
	// WasteRate is the waste score accrued per second a zone is
	// conditioned while empty.
	WasteRate float64    `json:"waste_rate" yaml:"waste_rate"`
	Occupants []Occupant `json:"occupants" yaml:"occupants"`
}

// DefaultConfig returns a 30 Hz loop for the default family.
func DefaultConfig() Config {
	return Config{
		Tick:        time.Second / 30,
		DayEndHour:  23.5,
		DailyBudget: 20,
		WasteRate:   0.1,
		Occupants:   DefaultOccupants(),
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.Tick <= 0 {
		return fmt.Errorf("household.tick must be positive, got %v", c.Tick)
	}
	if c.DayEndHour <= 0 || c.DayEndHour > 24 {
		return fmt.Errorf("household.day_end_hour must be in (0, 24], got %v", c.DayEndHour)
	}
	if c.DailyBudget < 0 {
		return fmt.Errorf("household.daily_budget must not be negative")
	}
	if c.WasteRate < 0 {
		return fmt.Errorf("household.waste_rate must not be negative")
	}
	if len(c.Occupants) == 0 {
		return fmt.Errorf("household needs at least one occupant")
	}
	for _, o := range c.Occupants {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// End reasons.
const (
	EndDayComplete = "day_complete"
	EndEngineExit  = "engine_exited"
)

// HourRecord is one entry of the hourly cost log.
type HourRecord struct {
	DayID  string         `json:"day_id"`
	Day    int            `json:"day"`
	Hour   int            `json:"hour"`
	Cost   float64        `json:"cost"`
	AvgPMV float64        `json:"avg_pmv"`
	Bill   float64        `json:"bill"`
	WhatIf comfort.WhatIf `json:"what_if"`
}

// DaySummary is the household's end-of-day report.
type DaySummary struct {
	DayID         string             `json:"day_id"`
	Day           int                `json:"day"`
	Started       time.Time          `json:"started"`
	Ended         time.Time          `json:"ended"`
	Bill          float64            `json:"bill"`
	Budget        float64            `json:"budget"`
	BudgetLeft    float64            `json:"budget_left"`
	AvgDiscomfort float64            `json:"avg_discomfort"`
	Waste         map[string]float64 `json:"waste"`
	Hours         []HourRecord       `json:"hours"`
	EndReason     string             `json:"end_reason"`
}

// OverBudget reports whether the day's bill exceeded the budget.
func (d DaySummary) OverBudget() bool { return d.BudgetLeft < 0 }

// TickReport is what one observation saw.
type TickReport struct {
	Snapshot   channel.Snapshot `json:"snapshot"`
	Feelings   []Feeling        `json:"feelings"`
	AvgComfort float64          `json:"avg_comfort"`
	BudgetLeft float64          `json:"budget_left"`
	Alerts     []string         `json:"alerts,omitempty"`
	Summary    *DaySummary      `json:"summary,omitempty"`
}

// Listener receives the monitor's records. Calls are made on the monitor's
// goroutine; listeners log their own failures.
type Listener interface {
	OnHour(ctx context.Context, r HourRecord)
	OnDay(ctx context.Context, s DaySummary)
}

// Monitor is the consumer loop for one day at a time.
type Monitor struct {
	src       Source
	cfg       Config
	log       *slog.Logger
	listeners []Listener
	now       func() time.Time

	// mu guards the day state; observers read it while RunDay ticks.
	mu         sync.Mutex
	day        int
	dayID      string
	started    time.Time
	ended      bool
	lastLogged int
	prevBill   float64
	discomfort float64
	samples    int
	waste      [house.ZoneCount]float64
	hours      []HourRecord
	last       TickReport
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option { return func(m *Monitor) { m.log = logging.OrDiscard(l) } }

// WithListener adds a listener for hourly records and day summaries.
func WithListener(l Listener) Option {
	return func(m *Monitor) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

// NewMonitor returns a monitor for src. Call BeginDay before ticking.
func NewMonitor(src Source, cfg Config, opts ...Option) *Monitor {
	m := &Monitor{src: src, cfg: cfg, log: logging.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.BeginDay(1)
	return m
}

// BeginDay clears the per-day state. Call it after the engine is (re)started.
func (m *Monitor) BeginDay(day int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.day = day
	m.dayID = m.src.RunID()
	m.started = m.now()
	m.ended = false
	m.lastLogged = -1
	m.prevBill = 0
	m.discomfort = 0
	m.samples = 0
	m.waste = [house.ZoneCount]float64{}
	m.hours = nil
	m.last = TickReport{}
}

// Day returns the current day number.
func (m *Monitor) Day() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.day
}

// Ended reports whether the current day is over.
func (m *Monitor) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

// Last returns the most recent tick report.
func (m *Monitor) Last() TickReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Hours returns the hourly log so far.
func (m *Monitor) Hours() []HourRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HourRecord(nil), m.hours...)
}

// Tick makes one observation dt after the previous one. The report carries a
// Summary exactly once, on the tick that ends the day.
func (m *Monitor) Tick(ctx context.Context, dt time.Duration) TickReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.src.Snapshot()
	rep := TickReport{
		Snapshot:   snap,
		BudgetLeft: m.cfg.DailyBudget - snap.Bill,
	}

	feelings, occupied := FeelAll(m.cfg.Occupants, snap)
	rep.Feelings = feelings
	rep.AvgComfort = AvgComfort(feelings)

	if m.ended {
		m.last = rep
		return rep
	}

	m.logHour(ctx, snap, feelings)
	rep.Alerts = m.trackWaste(snap, occupied, dt)

	alive := m.src.Alive()
	if !alive || snap.Hour > m.cfg.DayEndHour {
		m.ended = true
		if alive {
			m.src.Pause()
		}
		reason := EndDayComplete
		if !alive {
			reason = EndEngineExit
		}
		s := m.summarize(snap, reason)
		rep.Summary = &s
		m.log.Info("end of day", "day", m.day, "bill", s.Bill, "budget_left", s.BudgetLeft,
			"avg_discomfort", s.AvgDiscomfort, "reason", reason)
		for _, l := range m.listeners {
			l.OnDay(ctx, s)
		}
		m.last = rep
		return rep
	}

	m.discomfort += 1 - rep.AvgComfort
	m.samples++
	m.last = rep
	return rep
}

// FeelAll evaluates every occupant against snap and reports which zones
// are occupied. Warm-up is judged as midnight.
func FeelAll(occupants []Occupant, snap channel.Snapshot) ([]Feeling, [house.ZoneCount]bool) {
	var occupied [house.ZoneCount]bool
	out := make([]Feeling, 0, len(occupants))
	hour := snap.Hour
	if snap.WarmingUp() {
		hour = 0
	}
	for _, o := range occupants {
		p := o.At(hour)
		temp, rh := snap.Outdoor, comfort.WhatIfHumidity
		if p.InZone {
			occupied[p.Zone] = true
			zs := snap.Zone(p.Zone)
			temp, rh = zs.Temperature, zs.Humidity
		} else if strings.EqualFold(p.Room, "Kitchen") {
			// The kitchen shares the living room's air.
			zs := snap.Zone(house.LivingRoom)
			temp, rh = zs.Temperature, zs.Humidity
		}
		out = append(out, o.Feel(p, temp, rh))
	}
	return out, occupied
}

// AvgComfort is the mean comfort of fs, 1 when nobody is home.
func AvgComfort(fs []Feeling) float64 {
	if len(fs) == 0 {
		return 1
	}
	sum := 0.0
	for _, f := range fs {
		sum += f.Comfort
	}
	return sum / float64(len(fs))
}

// logHour appends a record whenever the integer hour changes. The cost is the
// bill accrued since the previous record.
func (m *Monitor) logHour(ctx context.Context, snap channel.Snapshot, fs []Feeling) {
	h := int(math.Floor(snap.Hour))
	if h == m.lastLogged || snap.WarmingUp() {
		return
	}
	cost := math.Max(0, snap.Bill-m.prevBill)

	pmv := 0.0
	for _, f := range fs {
		pmv += f.PMV
	}
	if len(fs) > 0 {
		pmv /= float64(len(fs))
	}

	r := HourRecord{
		DayID:  m.dayID,
		Day:    m.day,
		Hour:   h,
		Cost:   cost,
		AvgPMV: pmv,
		Bill:   snap.Bill,
		WhatIf: comfort.EstimateWhatIf(snap.Zone(house.LivingRoom).Temperature, snap.Outdoor, cost),
	}
	m.hours = append(m.hours, r)
	m.prevBill = snap.Bill
	m.lastLogged = h
	m.log.Debug("hour logged", "day", m.day, "hour", h, "cost", cost, "avg_pmv", pmv)
	for _, l := range m.listeners {
		l.OnHour(ctx, r)
	}
}

// trackWaste accrues waste for every conditioned zone nobody is in.
func (m *Monitor) trackWaste(snap channel.Snapshot, occupied [house.ZoneCount]bool, dt time.Duration) []string {
	var alerts []string
	for _, z := range house.Zones() {
		if snap.Zone(z).Active() && !occupied[z] {
			m.waste[z] += dt.Seconds() * m.cfg.WasteRate
			alerts = append(alerts, z.String()+" HVAC is on but the room is empty")
		}
	}
	return alerts
}

func (m *Monitor) summarize(snap channel.Snapshot, reason string) DaySummary {
	waste := make(map[string]float64, house.ZoneCount)
	for _, z := range house.Zones() {
		waste[z.String()] = m.waste[z]
	}
	avg := 0.0
	if m.samples > 0 {
		avg = m.discomfort / float64(m.samples)
	}
	return DaySummary{
		DayID:         m.dayID,
		Day:           m.day,
		Started:       m.started,
		Ended:         m.now(),
		Bill:          snap.Bill,
		Budget:        m.cfg.DailyBudget,
		BudgetLeft:    m.cfg.DailyBudget - snap.Bill,
		AvgDiscomfort: avg,
		Waste:         waste,
		Hours:         append([]HourRecord(nil), m.hours...),
		EndReason:     reason,
	}
}

// RunDay ticks until the day ends or ctx is done.
func (m *Monitor) RunDay(ctx context.Context) (DaySummary, error) {
	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()

	last := m.now()
	for {
		select {
		case <-ctx.Done():
			return DaySummary{}, ctx.Err()
		case <-ticker.C:
		}
		now := m.now()
		rep := m.Tick(ctx, now.Sub(last))
		last = now
		if rep.Summary != nil {
			return *rep.Summary, nil
		}
	}
}

// WasteRanking returns zones by descending waste score.
func (d DaySummary) WasteRanking() []string {
	names := make([]string, 0, len(d.Waste))
	for n := range d.Waste {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if d.Waste[names[i]] != d.Waste[names[j]] {
			return d.Waste[names[i]] > d.Waste[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// Simulation is a Source the household can also restart for the next day.
type Simulation interface {
	Source
	Start(ctx context.Context) error
	Restart(ctx context.Context) error
	Started() bool
}

// RunDays simulates days consecutive days, restarting the engine before each
// one after the first. It stops early when ctx is done.
func RunDays(ctx context.Context, sim Simulation, m *Monitor, days int) ([]DaySummary, error) {
	var out []DaySummary
	for d := 1; d <= days; d++ {
		var err error
		if sim.Started() {
			err = sim.Restart(ctx)
		} else {
			err = sim.Start(ctx)
		}
		if err != nil {
			return out, fmt.Errorf("starting day %d: %w", d, err)
		}
		m.BeginDay(d)

		s, err := m.RunDay(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}
