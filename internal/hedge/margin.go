package hedge

import "math"

// SafetyMargin is the distance from simPrice to liquidation normalized by the
// distance from entry to liquidation. Returns 0 when entry equals liquidation.
func SafetyMargin(side Side, simPrice float64, short bool) float64 {
	if short {
		span := side.Liquidation - side.Entry
		if span == 0 {
			return 0
		}
		return (side.Liquidation - simPrice) / span
	}
	span := side.Entry - side.Liquidation
	if span == 0 {
		return 0
	}
	return (simPrice - side.Liquidation) / span
}

// BlendedEntry returns the weighted entry price after adding delta at simPrice
func BlendedEntry(side Side, delta, simPrice float64) float64 {
	total := side.Size + delta
	if total == 0 {
		return side.Entry
	}
	return (side.Size*side.Entry + delta*simPrice) / total
}

// Apply returns the side after adding delta at simPrice. Liquidation is kept.
func (s Side) Apply(delta, simPrice float64) Side {
	return Side{
		Entry:       BlendedEntry(s, delta, simPrice),
		Size:        s.Size + delta,
		Liquidation: s.Liquidation,
	}
}

// IsActionable reports whether a delta carries a usable recommendation
func IsActionable(delta float64) bool {
	return delta != 0 && !math.IsNaN(delta) && !math.IsInf(delta, 0)
}
