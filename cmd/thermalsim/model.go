package main

import (
	"math"

	"github.com/adubusi/AI-Family/internal/engine"
	"github.com/adubusi/AI-Family/internal/house"
)

// Lumped-capacitance parameters shared by every zone.
const (
	airDensity      = 1.2    // kg/m³
	airSpecificHeat = 1005.0 // J/(kg·K)
	massMultiplier  = 15.0   // furnishings and inner surfaces relative to the air
	envelopeU       = 1.2    // W/(m²·K) walls and roof to outdoors
	floorU          = 0.4    // W/(m²·K) slab to ground
	moistureGainPa  = 250.0  // indoor vapour pressure above outdoor
)

// zone is one room as a single thermal capacitance with an ideal-loads
// system bounded by the room's capacity.
type zone struct {
	room     house.Room
	temp     float64 // °C
	humidity float64 // %
	capacity float64 // J/K
	envUA    float64 // W/K
	floorUA  float64 // W/K
	heatSP   float64
	coolSP   float64
}

func newZone(r house.Room, initial float64) *zone {
	return &zone{
		room:     r,
		temp:     initial,
		humidity: 50,
		capacity: airDensity * airSpecificHeat * r.Volume() * massMultiplier,
		envUA:    envelopeU * r.EnvelopeArea(),
		floorUA:  floorU * r.FloorArea(),
		heatSP:   r.InitialHeating,
		coolSP:   r.InitialCooling,
	}
}

// step advances the zone by dt seconds and returns the reading, with the
// sensible energy the ideal-loads system delivered.
func (z *zone) step(outdoor, outdoorRH, ground, dt float64) engine.RoomReading {
	loss := z.envUA*(outdoor-z.temp) + z.floorUA*(ground-z.temp)
	free := z.temp + loss*dt/z.capacity

	var heatJ, coolJ float64
	limit := z.room.CapacityW * dt
	switch {
	case free < z.heatSP:
		heatJ = math.Min((z.heatSP-free)*z.capacity, limit)
		free += heatJ / z.capacity
	case free > z.coolSP:
		coolJ = math.Min((free-z.coolSP)*z.capacity, limit)
		free -= coolJ / z.capacity
	}
	z.temp = free

	pv := outdoorRH/100*saturationPressure(outdoor) + moistureGainPa
	z.humidity = math.Max(0, math.Min(100, 100*pv/saturationPressure(z.temp)))

	return engine.RoomReading{
		Temperature: z.temp,
		Humidity:    z.humidity,
		HeatingJ:    heatJ,
		CoolingJ:    coolJ,
	}
}

// saturationPressure returns the saturation vapour pressure in Pa (Magnus).
func saturationPressure(t float64) float64 {
	return 610.94 * math.Exp(17.625*t/(t+243.04))
}
