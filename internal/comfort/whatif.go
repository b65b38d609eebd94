package comfort

// Counterfactual assumptions: with the HVAC off for an hour the room drifts a
// fifth of the way toward outdoor, and the occupant is judged in winter
// clothing at light activity.
const (
	WhatIfDrift     = 0.2
	WhatIfHumidity  = 50.0
	WhatIfMetabolic = 1.2
	WhatIfClothing  = 1.2
)

// WhatIf is the estimated outcome of having left the HVAC off.
type WhatIf struct {
	Temperature float64 `json:"hypothetical_temp"`
	PMV         float64 `json:"hypothetical_pmv"`
	Saved       float64 `json:"saved_money"`
}

// EstimateWhatIf estimates the room temperature and vote had the HVAC been off
// for the period that cost cost.
func EstimateWhatIf(roomTemp, outdoorTemp, cost float64) WhatIf {
	t := roomTemp + (outdoorTemp-roomTemp)*WhatIfDrift
	return WhatIf{
		Temperature: t,
		PMV:         PMV(Indoor(t, WhatIfHumidity, WhatIfMetabolic, WhatIfClothing)),
		Saved:       cost,
	}
}
