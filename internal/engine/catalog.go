package engine

import (
	"strings"

	"github.com/adubusi/AI-Family/internal/house"
)

// NoHandle marks a reference the catalog could not resolve.
const NoHandle = -1

// Output variable names the bridge consumes.
const (
	VarZoneTemperature = "Zone Mean Air Temperature"
	VarZoneHumidity    = "Zone Air Relative Humidity"
	VarZoneHeating     = "Zone Air System Sensible Heating Energy"
	VarZoneCooling     = "Zone Air System Sensible Cooling Energy"
	VarOutdoor         = "Site Outdoor Air Drybulb Temperature"

	// OutdoorKey is the key of the site-level outdoor variable.
	OutdoorKey = "Environment"
)

// Actuator identifiers for the per-zone dual-setpoint schedules.
const (
	ScheduleComponent = "Schedule:Compact"
	ScheduleControl   = "Schedule Value"
)

// Catalog is the engine's announced set of variables and actuators.
// A handle is the index of an entry in its list.
type Catalog struct {
	Variables []Variable
	Actuators []Actuator
}

// CatalogFrom extracts the catalog from a catalog message.
func CatalogFrom(m Message) Catalog {
	return Catalog{Variables: m.Variables, Actuators: m.Actuators}
}

// Message returns the catalog as a protocol frame.
func (c Catalog) Message() Message {
	return Message{Type: TypeCatalog, Variables: c.Variables, Actuators: c.Actuators}
}

// Lookup is the outcome of resolving one reference.
type Lookup struct {
	Handle  int
	Relaxed bool // found only by the relaxed match
}

// Found reports whether the reference resolved.
func (l Lookup) Found() bool { return l.Handle != NoHandle }

// Variable resolves (name, key). An exact match wins. Otherwise the
// reference is retried once with an empty key, then case-insensitively.
func (c Catalog) Variable(name, key string) Lookup {
	for i, v := range c.Variables {
		if v.Name == name && v.Key == key {
			return Lookup{Handle: i}
		}
	}
	for i, v := range c.Variables {
		if v.Name == name && v.Key == "" {
			return Lookup{Handle: i, Relaxed: true}
		}
	}
	for i, v := range c.Variables {
		if strings.EqualFold(v.Name, name) && strings.EqualFold(v.Key, key) {
			return Lookup{Handle: i, Relaxed: true}
		}
	}
	return Lookup{Handle: NoHandle}
}

// Actuator resolves (component, control, key) with the same relaxation as
// Variable.
func (c Catalog) Actuator(component, control, key string) Lookup {
	for i, a := range c.Actuators {
		if a.Component == component && a.Control == control && a.Key == key {
			return Lookup{Handle: i}
		}
	}
	for i, a := range c.Actuators {
		if a.Component == component && a.Control == control && a.Key == "" {
			return Lookup{Handle: i, Relaxed: true}
		}
	}
	for i, a := range c.Actuators {
		if strings.EqualFold(a.Component, component) &&
			strings.EqualFold(a.Control, control) &&
			strings.EqualFold(a.Key, key) {
			return Lookup{Handle: i, Relaxed: true}
		}
	}
	return Lookup{Handle: NoHandle}
}

// Per-room offsets in the standard layout.
const (
	stdTemp = iota
	stdHumidity
	stdHeating
	stdCooling
	stdPerRoom
)

// StandardCatalog returns the catalog a conforming engine announces for m:
// four variables per room (temperature, humidity, heating J, cooling J) in
// room order, then the outdoor temperature; and two schedule actuators per
// room (heating, cooling).
func StandardCatalog(m house.Model) Catalog {
	var c Catalog
	for _, r := range m.Rooms {
		c.Variables = append(c.Variables,
			Variable{Name: VarZoneTemperature, Key: r.Name},
			Variable{Name: VarZoneHumidity, Key: r.Name},
			Variable{Name: VarZoneHeating, Key: r.Name},
			Variable{Name: VarZoneCooling, Key: r.Name},
		)
	}
	c.Variables = append(c.Variables, Variable{Name: VarOutdoor, Key: OutdoorKey})
	for _, r := range m.Rooms {
		c.Actuators = append(c.Actuators,
			Actuator{Component: ScheduleComponent, Control: ScheduleControl, Key: r.HeatingSchedule},
			Actuator{Component: ScheduleComponent, Control: ScheduleControl, Key: r.CoolingSchedule},
		)
	}
	return c
}

// RoomReading is what an engine reports for one room over a timestep.
type RoomReading struct {
	Temperature float64
	Humidity    float64
	HeatingJ    float64
	CoolingJ    float64
}

// Frame is one timestep of readings in room order.
type Frame struct {
	Rooms   []RoomReading
	Outdoor float64
}

// Values lays f out in the StandardCatalog order.
func (f Frame) Values() []float64 {
	v := make([]float64, len(f.Rooms)*stdPerRoom+1)
	for i, r := range f.Rooms {
		base := i * stdPerRoom
		v[base+stdTemp] = r.Temperature
		v[base+stdHumidity] = r.Humidity
		v[base+stdHeating] = r.HeatingJ
		v[base+stdCooling] = r.CoolingJ
	}
	v[len(v)-1] = f.Outdoor
	return v
}

// HeatingActuator and CoolingActuator return the StandardCatalog actuator
// handles of room index i.
func HeatingActuator(i int) int { return 2 * i }
func CoolingActuator(i int) int { return 2*i + 1 }
