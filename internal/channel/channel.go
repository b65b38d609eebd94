// Package channel implements the shared register block that bridges the
// household consumer loop and the thermal engine adapter.
//
// The block is a fixed array of float64 slots. Every slot is read and written
// atomically. Writers that update a related group of slots (one engine
// timestep) bracket the group with a sequence counter so readers can take a
// snapshot that never mixes two timesteps. The counter assumes a single
// group writer at a time: the adapter while the engine runs, or Reset while
// it does not.
//
// The block can live in process memory (New) or in a memory-mapped file
// (Create, Open) so another OS process can observe it.
package channel

import (
	"errors"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/adubusi/AI-Family/internal/house"
)

// Slot layout. Indices are internal; callers use the named accessors.
const (
	slotHour         = 0
	slotTempBase     = 1
	slotSetpointBase = 4
	slotPrice        = 7
	slotPower        = 8
	slotBill         = 9
	slotHumidityBase = 10
	slotOutdoor      = 13

	// Size is the fixed number of slots. Slots 14-16 are reserved.
	Size = 17
)

// Header words precede the slots in the backing memory.
const (
	wordMagic   = 0
	wordSeq     = 1
	headerWords = 2
	totalWords  = headerWords + Size

	// ByteSize is the size of a file-backed block.
	ByteSize = totalWords * 8

	magic uint64 = 0x61696661_6d01 // "aifam" v1
)

// WarmupHour is the hour slot value while the engine is warming up.
const WarmupHour = -1.0

// maxSnapshotRetries bounds how long a reader waits for a writer that may
// have died mid-group (file-backed blocks only).
const maxSnapshotRetries = 10000

// ErrBadMagic is returned when a mapped file does not hold a channel block.
var ErrBadMagic = errors.New("channel: file is not a channel block")

// Channel is the shared register block.
type Channel struct {
	words    []uint64
	unmap    func() error
	readOnly bool
}

// New allocates an in-memory channel initialized to DefaultState.
func New() *Channel {
	c := &Channel{words: make([]uint64, totalWords)}
	atomic.StoreUint64(&c.words[wordMagic], magic)
	c.Reset(DefaultState(house.DefaultModel()))
	return c
}

// ZoneState is the reading and control target of one zone.
type ZoneState struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Setpoint    float64 `json:"setpoint"`
}

// Active reports whether the zone's HVAC is regulating.
func (z ZoneState) Active() bool {
	return house.SetpointActive(z.Setpoint)
}

// Snapshot is a consistent copy of every named slot.
type Snapshot struct {
	Hour    float64                    `json:"hour"`
	Zones   [house.ZoneCount]ZoneState `json:"zones"`
	Price   float64                    `json:"price"`
	Power   float64                    `json:"power"`
	Bill    float64                    `json:"bill"`
	Outdoor float64                    `json:"outdoor"`
}

// WarmingUp reports whether the engine had not finished warm-up.
func (s Snapshot) WarmingUp() bool {
	return s.Hour < 0
}

// Zone returns the state of zone z.
func (s Snapshot) Zone(z house.Zone) ZoneState {
	return s.Zones[z]
}

// DefaultState returns the documented day-start values for model m.
func DefaultState(m house.Model) Snapshot {
	s := Snapshot{
		Hour:    0,
		Price:   0.1,
		Power:   0,
		Bill:    0,
		Outdoor: -4.0,
	}
	sp := m.DefaultSetpoints()
	for _, z := range house.Zones() {
		s.Zones[z] = ZoneState{Temperature: 20.0, Humidity: 50.0, Setpoint: sp[z]}
	}
	return s
}

func (c *Channel) load(slot int) float64 {
	return math.Float64frombits(atomic.LoadUint64(&c.words[headerWords+slot]))
}

func (c *Channel) store(slot int, v float64) {
	atomic.StoreUint64(&c.words[headerWords+slot], math.Float64bits(v))
}

// Reset overwrites every slot with s and zeroes the reserved slots.
// It must not run concurrently with an adapter writing to the channel.
func (c *Channel) Reset(s Snapshot) {
	c.Write(func(tx *Tx) {
		for i := 0; i < Size; i++ {
			c.store(i, 0)
		}
		tx.SetHour(s.Hour)
		for _, z := range house.Zones() {
			zs := s.Zones[z]
			tx.SetZone(z, zs.Temperature, zs.Humidity)
			c.store(slotSetpointBase+int(z), zs.Setpoint)
		}
		tx.SetEnergy(s.Price, s.Power, s.Bill)
		tx.SetOutdoor(s.Outdoor)
	})
}

// Tx writes a group of related slots inside a sequence bracket.
type Tx struct {
	c *Channel
}

// SetHour writes the hour-of-day slot.
func (tx *Tx) SetHour(h float64) { tx.c.store(slotHour, h) }

// SetZone writes the temperature and humidity of z.
func (tx *Tx) SetZone(z house.Zone, temperature, humidity float64) {
	tx.c.store(slotTempBase+int(z), temperature)
	tx.c.store(slotHumidityBase+int(z), humidity)
}

// SetTemperature writes the temperature of z.
func (tx *Tx) SetTemperature(z house.Zone, v float64) { tx.c.store(slotTempBase+int(z), v) }

// SetHumidity writes the relative humidity of z.
func (tx *Tx) SetHumidity(z house.Zone, v float64) { tx.c.store(slotHumidityBase+int(z), v) }

// SetEnergy writes the tariff rate, instantaneous power and cumulative bill.
func (tx *Tx) SetEnergy(price, power, bill float64) {
	tx.c.store(slotPrice, price)
	tx.c.store(slotPower, power)
	tx.c.store(slotBill, bill)
}

// SetBill writes the cumulative bill.
func (tx *Tx) SetBill(v float64) { tx.c.store(slotBill, v) }

// SetOutdoor writes the outdoor temperature.
func (tx *Tx) SetOutdoor(v float64) { tx.c.store(slotOutdoor, v) }

// Write runs fn inside a sequence bracket. The counter is odd while fn runs.
func (c *Channel) Write(fn func(tx *Tx)) {
	if c.readOnly {
		return
	}
	atomic.AddUint64(&c.words[wordSeq], 1)
	defer atomic.AddUint64(&c.words[wordSeq], 1)
	fn(&Tx{c: c})
}

// Snapshot copies every named slot. It retries while a group write is in
// flight, so the copy never mixes two timesteps. If a writer stalls past the
// retry bound (a killed process holding a file-backed block), the last copy
// is returned as is.
func (c *Channel) Snapshot() Snapshot {
	var s Snapshot
	for i := 0; i < maxSnapshotRetries; i++ {
		before := atomic.LoadUint64(&c.words[wordSeq])
		if before&1 == 1 {
			runtime.Gosched()
			continue
		}
		s = c.read()
		if atomic.LoadUint64(&c.words[wordSeq]) == before {
			return s
		}
	}
	return c.read()
}

func (c *Channel) read() Snapshot {
	s := Snapshot{
		Hour:    c.load(slotHour),
		Price:   c.load(slotPrice),
		Power:   c.load(slotPower),
		Bill:    c.load(slotBill),
		Outdoor: c.load(slotOutdoor),
	}
	for _, z := range house.Zones() {
		s.Zones[z] = ZoneState{
			Temperature: c.load(slotTempBase + int(z)),
			Humidity:    c.load(slotHumidityBase + int(z)),
			Setpoint:    c.load(slotSetpointBase + int(z)),
		}
	}
	return s
}

// Hour returns the hour-of-day slot.
func (c *Channel) Hour() float64 { return c.load(slotHour) }

// Bill returns the cumulative bill slot.
func (c *Channel) Bill() float64 { return c.load(slotBill) }

// Setpoint returns the requested setpoint of z.
func (c *Channel) Setpoint(z house.Zone) float64 { return c.load(slotSetpointBase + int(z)) }

// SetSetpoint writes the requested setpoint of z. Setpoints are single-slot
// consumer writes and take no part in the sequence bracket.
func (c *Channel) SetSetpoint(z house.Zone, v float64) {
	if c.readOnly {
		return
	}
	c.store(slotSetpointBase+int(z), v)
}

// ReadOnly reports whether the channel is an observer view opened with Open.
// Writes to a read-only channel are dropped.
func (c *Channel) ReadOnly() bool { return c.readOnly }

// Seq returns the current sequence counter. It changes on every group write.
func (c *Channel) Seq() uint64 { return atomic.LoadUint64(&c.words[wordSeq]) }

// Close releases a file-backed block. It is a no-op for in-memory channels.
func (c *Channel) Close() error {
	if c.unmap == nil {
		return nil
	}
	err := c.unmap()
	c.unmap = nil
	return err
}
