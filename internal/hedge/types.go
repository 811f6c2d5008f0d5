// Package hedge computes hedge-sizing recommendations for a paired long and short position
package hedge

// DefaultProfile is the built-in recommendation profile
const DefaultProfile = "default"

// Side describes one leg of a hedge. Size is quote-currency notional.
type Side struct {
	Entry       float64 `json:"entry"`
	Size        float64 `json:"size"`
	Liquidation float64 `json:"liquidation"`
}

// Input carries every argument of a recommendation call
type Input struct {
	SimPrice     float64 `json:"simPrice"`
	Long         Side    `json:"long"`
	Short        Side    `json:"short"`
	TargetMargin float64 `json:"targetMargin"`
}

// Recommendation is the signed size to add to each side.
// A zero delta means no actionable recommendation exists for that side.
type Recommendation struct {
	LongDelta  float64 `json:"longDelta"`
	ShortDelta float64 `json:"shortDelta"`
}

// Strategy turns one Input into a Recommendation
type Strategy func(in Input) Recommendation
