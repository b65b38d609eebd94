package mcp

import (
	"github.com/adubusi/AI-Family/internal/household"
	"github.com/adubusi/AI-Family/internal/supervisor"
)

// ZonesInput defines the input for aifamily_zones.
type ZonesInput struct {
	Zone string `json:"zone,omitempty" jsonschema:"Only report this zone (LivingRoom, MasterRoom or KidsRoom)"`
}

// ZonesOutput defines the output for aifamily_zones.
type ZonesOutput struct {
	Zones []supervisor.ZoneReading `json:"zones" jsonschema:"Air temperature, humidity and setpoint per zone"`
	Count int                      `json:"count" jsonschema:"Number of zones reported"`
}

// EnergyInput defines the input for aifamily_energy.
type EnergyInput struct{}

// EnergyOutput defines the output for aifamily_energy.
type EnergyOutput struct {
	Hour    float64 `json:"hour" jsonschema:"Simulated hour of day, -1 during warm-up"`
	Warmup  bool    `json:"warmup" jsonschema:"True while the engine is warming up"`
	Tier    string  `json:"tier,omitempty" jsonschema:"Tariff tier of the current hour: valley, flat or peak"`
	Price   float64 `json:"price" jsonschema:"Electricity price per kWh"`
	Power   float64 `json:"power" jsonschema:"HVAC power over the last timestep in kW"`
	Bill    float64 `json:"bill" jsonschema:"Bill accumulated today"`
	Outdoor float64 `json:"outdoor" jsonschema:"Outdoor temperature in Celsius"`
}

// SetSetpointInput defines the input for aifamily_set_setpoint.
type SetSetpointInput struct {
	Zone     string  `json:"zone" jsonschema:"Zone to change (LivingRoom, MasterRoom or KidsRoom)"`
	Setpoint float64 `json:"setpoint" jsonschema:"Heating setpoint in Celsius; 1 or below turns the zone off"`
}

// SetSetpointOutput defines the output for aifamily_set_setpoint.
type SetSetpointOutput struct {
	Previous float64                `json:"previous" jsonschema:"Setpoint before the change"`
	Zone     supervisor.ZoneReading `json:"zone" jsonschema:"Zone reading after the change"`
	Message  string                 `json:"message" jsonschema:"Human-readable result"`
}

// ComfortInput defines the input for aifamily_comfort.
type ComfortInput struct {
	Occupant string `json:"occupant,omitempty" jsonschema:"Only report this occupant"`
}

// ComfortOutput defines the output for aifamily_comfort.
type ComfortOutput struct {
	Hour       float64             `json:"hour" jsonschema:"Simulated hour of day the feelings were taken at"`
	Feelings   []household.Feeling `json:"feelings" jsonschema:"Thermal sensation per occupant"`
	AvgComfort float64             `json:"avg_comfort" jsonschema:"Mean comfort score across the reported occupants"`
}

// PauseInput defines the input for aifamily_pause and aifamily_resume.
type PauseInput struct{}

// PauseOutput defines the output for aifamily_pause and aifamily_resume.
type PauseOutput struct {
	Paused bool   `json:"paused" jsonschema:"Whether stepping is gated"`
	Alive  bool   `json:"alive" jsonschema:"Whether the engine is running"`
	RunID  string `json:"run_id,omitempty" jsonschema:"Identifier of the current engine run"`
}
