package tradingutils

import (
	"github.com/shopspring/decimal"
)

// RoundTo rounds a float to the given number of decimal places (half away from zero)
func RoundTo(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Round2 rounds a float to cents
func Round2(v float64) float64 {
	return RoundTo(v, 2)
}

// CalculatePriceLevels generates count evenly spaced prices from `from` to `to`
// inclusive. A single level returns `from`.
func CalculatePriceLevels(from, to float64, count int) []float64 {
	if count <= 0 {
		return nil
	}
	start := decimal.NewFromFloat(from)
	if count == 1 {
		f, _ := start.Float64()
		return []float64{f}
	}
	interval := decimal.NewFromFloat(to).Sub(start).Div(decimal.NewFromInt(int64(count - 1)))

	prices := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		f, _ := start.Add(interval.Mul(decimal.NewFromInt(int64(i)))).Float64()
		prices = append(prices, f)
	}
	return prices
}

// CalculatePnL returns the profit of a position whose size is quote notional
func CalculatePnL(isShort bool, entry, current, size float64) float64 {
	if entry <= 0 {
		return 0
	}
	units := decimal.NewFromFloat(size).Div(decimal.NewFromFloat(entry))
	move := decimal.NewFromFloat(current).Sub(decimal.NewFromFloat(entry))
	if isShort {
		move = move.Neg()
	}
	f, _ := move.Mul(units).Float64()
	return f
}
