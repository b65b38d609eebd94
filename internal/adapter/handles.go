package adapter

import (
	"log/slog"

	"github.com/adubusi/AI-Family/internal/engine"
	"github.com/adubusi/AI-Family/internal/house"
)

// handles are the catalog indices the adapter reads and writes each step.
type handles struct {
	temp, humidity, heating, cooling [house.ZoneCount]int
	heatSched, coolSched             [house.ZoneCount]int
	outdoor                          int
}

// resolveHandles looks up every reference once. Missing references are left
// at engine.NoHandle and skipped for the rest of the run.
func resolveHandles(cat engine.Catalog, m house.Model, log *slog.Logger) (handles, int) {
	var h handles
	missing := 0

	variable := func(name, key string) int {
		l := cat.Variable(name, key)
		switch {
		case !l.Found():
			missing++
			log.Warn("engine variable unresolved, skipping", "name", name, "key", key)
		case l.Relaxed:
			log.Debug("engine variable resolved by relaxed match", "name", name, "key", key, "handle", l.Handle)
		}
		return l.Handle
	}
	actuator := func(key string) int {
		l := cat.Actuator(engine.ScheduleComponent, engine.ScheduleControl, key)
		switch {
		case !l.Found():
			missing++
			log.Warn("engine actuator unresolved, skipping", "schedule", key)
		case l.Relaxed:
			log.Debug("engine actuator resolved by relaxed match", "schedule", key, "handle", l.Handle)
		}
		return l.Handle
	}

	for _, z := range house.Zones() {
		r, ok := m.Room(z)
		if !ok {
			h.temp[z], h.humidity[z], h.heating[z], h.cooling[z] = engine.NoHandle, engine.NoHandle, engine.NoHandle, engine.NoHandle
			h.heatSched[z], h.coolSched[z] = engine.NoHandle, engine.NoHandle
			missing += 6
			log.Warn("house model has no room for zone", "zone", z.String())
			continue
		}
		h.temp[z] = variable(engine.VarZoneTemperature, r.Name)
		h.humidity[z] = variable(engine.VarZoneHumidity, r.Name)
		h.heating[z] = variable(engine.VarZoneHeating, r.Name)
		h.cooling[z] = variable(engine.VarZoneCooling, r.Name)
		h.heatSched[z] = actuator(r.HeatingSchedule)
		h.coolSched[z] = actuator(r.CoolingSchedule)
	}
	h.outdoor = variable(engine.VarOutdoor, engine.OutdoorKey)

	return h, missing
}
