// Package comfort computes Fanger's Predicted Mean Vote (ISO 7730) and the
// derived comfort score and sensation label.
package comfort

import "math"

// Inputs describes an occupant and the air around them.
type Inputs struct {
	AirTemp     float64 `json:"air_temp"`     // °C
	RadiantTemp float64 `json:"radiant_temp"` // mean radiant temperature, °C
	AirVelocity float64 `json:"air_velocity"` // m/s
	Humidity    float64 `json:"humidity"`     // relative humidity, %
	Metabolic   float64 `json:"metabolic"`    // met
	Clothing    float64 `json:"clothing"`     // clo
}

// Indoor returns inputs for still indoor air where the radiant temperature
// equals the air temperature.
func Indoor(airTemp, humidity, met, clo float64) Inputs {
	return Inputs{
		AirTemp:     airTemp,
		RadiantTemp: airTemp,
		AirVelocity: StillAirVelocity,
		Humidity:    humidity,
		Metabolic:   met,
		Clothing:    clo,
	}
}

const (
	// StillAirVelocity is the indoor air speed assumed when none is measured.
	StillAirVelocity = 0.1

	// MinAirTemp and MaxAirTemp bound the air temperatures the model accepts.
	MinAirTemp = -50.0
	MaxAirTemp = 100.0

	// MaxPMV bounds the scale in both directions.
	MaxPMV = 3.0

	metWatts      = 58.15   // W/m² per met
	stefanFactor  = 3.96e-8 // radiative exchange coefficient
	kelvinOffset  = 273.0
	maxIterations = 100
	tolerance     = 0.001
)

// PMV returns the predicted mean vote for in, clamped to [-3, 3].
// Air temperatures outside [MinAirTemp, MaxAirTemp] and any non-finite
// intermediate result yield 0.
func PMV(in Inputs) float64 {
	ta := in.AirTemp
	if math.IsNaN(ta) || ta < MinAirTemp || ta > MaxAirTemp {
		return 0
	}
	rh := math.Max(0, math.Min(100, in.Humidity))
	if math.IsNaN(rh) {
		rh = 0
	}
	vel := math.Max(0, in.AirVelocity)

	pa := rh * 10 * math.Exp(16.6536-4030.183/(ta+235))
	icl := 0.155 * in.Clothing
	m := in.Metabolic * metWatts
	mw := m

	fcl := 1.05 + 0.645*icl
	if icl <= 0.078 {
		fcl = 1.0 + 1.29*icl
	}

	tra4 := math.Pow(in.RadiantTemp+kelvinOffset, 4)
	tSkin := 35.7 - 0.028*mw

	losses := func(tcl float64) (hc, rad, conv float64) {
		hc = math.Max(12.1*math.Sqrt(vel), 2.38*math.Pow(math.Abs(tcl-ta), 0.25))
		rad = stefanFactor * fcl * (math.Pow(tcl+kelvinOffset, 4) - tra4)
		conv = fcl * hc * (tcl - ta)
		return hc, rad, conv
	}

	// Damped fixed point for the clothing surface temperature.
	tcl := ta + (35.5-ta)/(3.5*icl+0.1)
	for i := 0; i < maxIterations; i++ {
		_, rad, conv := losses(tcl)
		next := tSkin - icl*(rad+conv)
		if math.Abs(next-tcl) < tolerance {
			tcl = next
			break
		}
		tcl = (tcl + next) / 2
	}

	_, rad, conv := losses(tcl)

	skinDiffusion := 3.05e-3 * (5733 - 6.99*mw - pa)
	sweat := 0.42 * (mw - metWatts)
	latentResp := 1.7e-5 * m * (5867 - pa)
	dryResp := 0.0014 * m * (34 - ta)

	load := mw - skinDiffusion - sweat - latentResp - dryResp - rad - conv
	pmv := (0.303*math.Exp(-0.036*m) + 0.028) * load

	if math.IsNaN(pmv) || math.IsInf(pmv, 0) {
		return 0
	}
	return math.Max(-MaxPMV, math.Min(MaxPMV, pmv))
}

// ComfortScore maps a vote onto [0, 1]: 1 at neutral, 0 at either extreme.
func ComfortScore(pmv float64) float64 {
	if math.IsNaN(pmv) {
		return 0
	}
	return math.Max(0, 1-math.Abs(pmv)/MaxPMV)
}

// Sensation labels, warmest first.
const (
	Hot          = "Hot"
	Warm         = "Warm"
	SlightlyWarm = "Slightly Warm"
	Neutral      = "Neutral"
	SlightlyCool = "Slightly Cool"
	Cool         = "Cool"
	Cold         = "Cold"
)

// SensationLabel names the seven-point band of pmv. A value on a boundary
// belongs to the warmer band.
func SensationLabel(pmv float64) string {
	switch {
	case pmv >= 2.5:
		return Hot
	case pmv >= 1.5:
		return Warm
	case pmv >= 0.5:
		return SlightlyWarm
	case pmv >= -0.5:
		return Neutral
	case pmv >= -1.5:
		return SlightlyCool
	case pmv >= -2.5:
		return Cool
	default:
		return Cold
	}
}

// Assessment bundles a vote with its derived score and label.
type Assessment struct {
	PMV   float64 `json:"pmv"`
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

// Assess evaluates in.
func Assess(in Inputs) Assessment {
	p := PMV(in)
	return Assessment{PMV: p, Score: ComfortScore(p), Label: SensationLabel(p)}
}
