// Package position derives risk metrics for leveraged positions and groups
// paired positions into hedges
package position

import "strings"

// Side is the direction of a position
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ParseSide normalizes free-form side labels. Anything mentioning "short" is a
// short; everything else is treated as long.
func ParseSide(raw string) Side {
	if strings.Contains(strings.ToLower(strings.TrimSpace(raw)), "short") {
		return SideShort
	}
	return SideLong
}

// UnmarshalText accepts any label ParseSide understands, e.g. "long" or "Short"
func (s *Side) UnmarshalText(text []byte) error {
	*s = ParseSide(string(text))
	return nil
}

// Position is a leveraged position. Size is quote-currency notional.
type Position struct {
	ID               string  `json:"id"`
	Asset            string  `json:"asset"`
	Side             Side    `json:"side"`
	EntryPrice       float64 `json:"entry_price"`
	CurrentPrice     float64 `json:"current_price"`
	LiquidationPrice float64 `json:"liquidation_price"`
	Size             float64 `json:"size"`
	Collateral       float64 `json:"collateral"`
	HedgeBuddyID     string  `json:"hedge_buddy_id,omitempty"`
}

// Metrics are the derived display values of one position
type Metrics struct {
	Position            Position `json:"position"`
	TravelPercent       float64  `json:"travel_percent"`
	LiquidationDistance float64  `json:"liquidation_distance"`
	Value               float64  `json:"value"`
	Leverage            float64  `json:"leverage"`
	HeatIndex           float64  `json:"heat_index"`
}

// Summary aggregates metrics across positions
type Summary struct {
	TotalSize        float64 `json:"total_size"`
	TotalValue       float64 `json:"total_value"`
	TotalCollateral  float64 `json:"total_collateral"`
	AvgLeverage      float64 `json:"avg_leverage"`
	AvgTravelPercent float64 `json:"avg_travel_percent"`
	AvgHeatIndex     float64 `json:"avg_heat_index"`
}
