// Package tariff maps an hour of day to a time-of-use electricity rate.
package tariff

import (
	"fmt"
	"math"
)

// Tier is one of the three time-of-use bands.
type Tier int

const (
	// Valley covers the night hours 0 through 7.
	Valley Tier = iota
	// Flat covers every hour that is neither valley nor peak.
	Flat
	// Peak covers the midday and evening demand hours.
	Peak
)

// String returns the band name.
func (t Tier) String() string {
	switch t {
	case Valley:
		return "valley"
	case Flat:
		return "flat"
	case Peak:
		return "peak"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Default rates in $/kWh.
const (
	DefaultValleyRate = 0.30
	DefaultFlatRate   = 0.90
	DefaultPeakRate   = 1.50
)

// peakHours are the hours billed at the peak rate.
var peakHours = [24]bool{
	11: true, 12: true, 13: true, 14: true, 15: true,
	19: true, 20: true, 21: true,
}

// Schedule holds the rate of each band. The band shape is fixed.
type Schedule struct {
	Valley float64 `json:"valley" yaml:"valley"`
	Flat   float64 `json:"flat" yaml:"flat"`
	Peak   float64 `json:"peak" yaml:"peak"`
}

// DefaultSchedule returns the standard residential rates.
func DefaultSchedule() Schedule {
	return Schedule{
		Valley: DefaultValleyRate,
		Flat:   DefaultFlatRate,
		Peak:   DefaultPeakRate,
	}
}

// Validate checks that every rate is finite and non-negative.
func (s Schedule) Validate() error {
	for _, r := range []struct {
		name string
		v    float64
	}{{"valley", s.Valley}, {"flat", s.Flat}, {"peak", s.Peak}} {
		if math.IsNaN(r.v) || math.IsInf(r.v, 0) || r.v < 0 {
			return fmt.Errorf("tariff.%s must be a non-negative number, got %v", r.name, r.v)
		}
	}
	return nil
}

// normalizeHour folds any integer hour into [0,24). Hour 24 becomes 0.
func normalizeHour(hour int) int {
	h := hour % 24
	if h < 0 {
		h += 24
	}
	return h
}

// TierForHour returns the band that applies to hour.
func TierForHour(hour int) Tier {
	h := normalizeHour(hour)
	switch {
	case h <= 7:
		return Valley
	case peakHours[h]:
		return Peak
	default:
		return Flat
	}
}

// Rate returns the rate of band t.
func (s Schedule) Rate(t Tier) float64 {
	switch t {
	case Valley:
		return s.Valley
	case Peak:
		return s.Peak
	default:
		return s.Flat
	}
}

// PriceForHour returns the rate billed during hour.
func (s Schedule) PriceForHour(hour int) float64 {
	return s.Rate(TierForHour(hour))
}

// PriceAt returns the rate for a fractional hour-of-day, keyed on its floor.
func (s Schedule) PriceAt(hour float64) float64 {
	if math.IsNaN(hour) || math.IsInf(hour, 0) {
		return s.Flat
	}
	return s.PriceForHour(int(math.Floor(hour)))
}

// PriceForHour prices hour with the default schedule.
func PriceForHour(hour int) float64 {
	return DefaultSchedule().PriceForHour(hour)
}
