package position

import (
	"math"

	"hedge_advisor/pkg/tradingutils"
)

// TravelPercent measures how far the current price has moved from entry.
// Moves against the position are scaled by the entry-to-liquidation range and
// are negative; favourable moves are scaled by a profit anchor at twice entry.
func TravelPercent(side Side, entry, current, liq float64) float64 {
	if entry <= 0 || liq <= 0 {
		return 0
	}
	profitAnchor := entry * 2

	if side == SideShort {
		if current > entry {
			return pctOfRange(entry-current, math.Abs(liq-entry))
		}
		return pctOfRange(entry-current, math.Abs(entry-profitAnchor))
	}
	if current < entry {
		return pctOfRange(current-entry, math.Abs(entry-liq))
	}
	return pctOfRange(current-entry, profitAnchor-entry)
}

// TravelPercentNoProfit is 0 at entry and -100 at liquidation, with no profit anchor
func TravelPercentNoProfit(side Side, entry, current, liq float64) float64 {
	if entry <= 0 || liq <= 0 || entry == liq {
		return 0
	}
	span := math.Abs(entry - liq)
	if side == SideShort {
		return pctOfRange(entry-current, span)
	}
	return pctOfRange(current-entry, span)
}

func pctOfRange(numer, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	return numer / denom * 100
}

// LiquidationDistance is the absolute price gap to liquidation
func LiquidationDistance(current, liq float64) float64 {
	return tradingutils.Round2(math.Abs(liq - current))
}

// Leverage is size over collateral, or 0 when either is not positive
func Leverage(size, collateral float64) float64 {
	if size <= 0 || collateral <= 0 {
		return 0
	}
	return tradingutils.Round2(size / collateral)
}

// HeatIndex is (size * leverage) / collateral. ok is false without collateral.
func HeatIndex(size, leverage, collateral float64) (heat float64, ok bool) {
	if collateral <= 0 {
		return 0, false
	}
	return tradingutils.Round2(size * leverage / collateral), true
}

// Value is collateral plus unrealized PnL
func Value(p Position) float64 {
	pnl := tradingutils.CalculatePnL(p.Side == SideShort, p.EntryPrice, p.CurrentPrice, p.Size)
	return tradingutils.Round2(p.Collateral + pnl)
}

// Enrich computes the display metrics for p
func Enrich(p Position) Metrics {
	leverage := Leverage(p.Size, p.Collateral)
	heat, _ := HeatIndex(p.Size, leverage, p.Collateral)
	return Metrics{
		Position:            p,
		TravelPercent:       TravelPercentNoProfit(p.Side, p.EntryPrice, p.CurrentPrice, p.LiquidationPrice),
		LiquidationDistance: LiquidationDistance(p.CurrentPrice, p.LiquidationPrice),
		Value:               Value(p),
		Leverage:            leverage,
		HeatIndex:           heat,
	}
}

// Totals aggregates metrics. Leverage and travel are size-weighted; heat is
// averaged over positions with a non-zero heat index.
func Totals(items []Metrics) Summary {
	var s Summary
	var weightedLeverage, weightedTravel, heatSum float64
	heatCount := 0

	for _, m := range items {
		size := m.Position.Size
		s.TotalSize += size
		s.TotalValue += m.Value
		s.TotalCollateral += m.Position.Collateral
		weightedLeverage += m.Leverage * size
		weightedTravel += m.TravelPercent * size
		if m.HeatIndex != 0 {
			heatSum += m.HeatIndex
			heatCount++
		}
	}

	if s.TotalSize > 0 {
		s.AvgLeverage = weightedLeverage / s.TotalSize
		s.AvgTravelPercent = weightedTravel / s.TotalSize
	}
	if heatCount > 0 {
		s.AvgHeatIndex = heatSum / float64(heatCount)
	}
	return s
}
