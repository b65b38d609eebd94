package household

import (
	"fmt"
	"math"

	"github.com/adubusi/AI-Family/internal/comfort"
	"github.com/adubusi/AI-Family/internal/house"
)

// Activity sets an occupant's metabolic rate.
type Activity string

const (
	Sleeping Activity = "sleeping"
	Resting  Activity = "resting"
	Moving   Activity = "moving"
	Playing  Activity = "playing"
)

// Metabolic returns the activity's metabolic rate in met.
func (a Activity) Metabolic() float64 {
	switch a {
	case Sleeping:
		return 0.7
	case Moving:
		return 1.7
	case Playing:
		return 2.0
	default:
		return 1.0
	}
}

// Slot places an occupant in a room for the hours [From, To).
// Rooms that are not house zones (a kitchen, outside) are unconditioned.
type Slot struct {
	From     int      `json:"from" yaml:"from"`
	To       int      `json:"to" yaml:"to"`
	Room     string   `json:"room" yaml:"room"`
	Activity Activity `json:"activity" yaml:"activity"`
}

// Occupant is a household member following a daily room schedule.
type Occupant struct {
	Name        string  `json:"name" yaml:"name"`
	Clothing    float64 `json:"clothing" yaml:"clothing"`
	DefaultRoom string  `json:"default_room" yaml:"default_room"`
	Schedule    []Slot  `json:"schedule" yaml:"schedule"`
}

// Validate checks the schedule for impossible hours.
func (o Occupant) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("occupant has no name")
	}
	if o.Clothing < 0 || o.Clothing > 4 {
		return fmt.Errorf("occupant %s: clothing %v clo out of range", o.Name, o.Clothing)
	}
	for i, s := range o.Schedule {
		if s.From < 0 || s.To > 24 || s.From >= s.To {
			return fmt.Errorf("occupant %s: slot %d has bad hours [%d,%d)", o.Name, i, s.From, s.To)
		}
	}
	return nil
}

// Placement is where an occupant is and what they are doing.
type Placement struct {
	Room     string
	Zone     house.Zone
	InZone   bool // Room is a conditioned house zone
	Activity Activity
}

// At returns the occupant's placement at a fractional hour of day. Warm-up
// and out-of-range hours are folded into [0, 24).
func (o Occupant) At(hour float64) Placement {
	h := int(math.Floor(hour))
	h %= 24
	if h < 0 {
		h += 24
	}

	p := Placement{Room: o.DefaultRoom, Activity: Resting}
	for _, s := range o.Schedule {
		if h >= s.From && h < s.To {
			p.Room = s.Room
			if s.Activity != "" {
				p.Activity = s.Activity
			}
			break
		}
	}
	if z, err := house.ParseZone(p.Room); err == nil {
		p.Zone, p.InZone = z, true
	}
	return p
}

// Physio returns the clothing insulation and metabolic rate for activity a.
// Sleepers are under a duvet worth at least 1 clo.
func (o Occupant) Physio(a Activity) (clo, met float64) {
	clo = o.Clothing
	if a == Sleeping {
		clo = math.Max(clo, 1.0)
	}
	return clo, a.Metabolic()
}

// Perceived comfort penalties for dressing against the weather while awake.
const (
	heavyClothing        = 0.8
	heavyClothingPenalty = 0.1 // per clo above heavyClothing
	lightClothing        = 0.4
	lightClothingPenalty = 0.05
)

// Feeling is an occupant's thermal state at one tick.
type Feeling struct {
	Name      string  `json:"name"`
	Room      string  `json:"room"`
	Activity  string  `json:"activity"`
	PMV       float64 `json:"pmv"`
	Comfort   float64 `json:"comfort"`
	Sensation string  `json:"sensation"`
}

// Feel evaluates the occupant at hour given the air of the room they are in.
func (o Occupant) Feel(p Placement, airTemp, humidity float64) Feeling {
	clo, met := o.Physio(p.Activity)
	a := comfort.Assess(comfort.Indoor(airTemp, humidity, met, clo))

	penalty := 0.0
	if p.Activity != Sleeping {
		switch {
		case clo > heavyClothing:
			penalty = (clo - heavyClothing) * heavyClothingPenalty
		case clo < lightClothing:
			penalty = lightClothingPenalty
		}
	}

	return Feeling{
		Name:      o.Name,
		Room:      p.Room,
		Activity:  string(p.Activity),
		PMV:       a.PMV,
		Comfort:   math.Max(0, a.Score-penalty),
		Sensation: a.Label,
	}
}

// DefaultOccupants returns a family of three on a weekday.
func DefaultOccupants() []Occupant {
	return []Occupant{
		{
			Name: "Mom", Clothing: 0.5, DefaultRoom: "LivingRoom",
			Schedule: []Slot{
				{From: 0, To: 7, Room: "MasterRoom", Activity: Sleeping},
				{From: 7, To: 9, Room: "LivingRoom", Activity: Resting},
				{From: 11, To: 13, Room: "Kitchen", Activity: Moving},
				{From: 18, To: 19, Room: "Kitchen", Activity: Moving},
				{From: 22, To: 24, Room: "MasterRoom", Activity: Sleeping},
			},
		},
		{
			Name: "Dad", Clothing: 0.5, DefaultRoom: "LivingRoom",
			Schedule: []Slot{
				{From: 0, To: 7, Room: "MasterRoom", Activity: Sleeping},
				{From: 7, To: 8, Room: "LivingRoom", Activity: Resting},
				{From: 8, To: 18, Room: "Outside", Activity: Moving},
				{From: 22, To: 24, Room: "MasterRoom", Activity: Sleeping},
			},
		},
		{
			Name: "Son", Clothing: 0.5, DefaultRoom: "LivingRoom",
			Schedule: []Slot{
				{From: 0, To: 7, Room: "KidsRoom", Activity: Sleeping},
				{From: 8, To: 16, Room: "Outside", Activity: Moving},
				{From: 16, To: 19, Room: "KidsRoom", Activity: Playing},
				{From: 21, To: 24, Room: "KidsRoom", Activity: Sleeping},
			},
		},
	}
}
