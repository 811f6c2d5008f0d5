package hedge

// SolveLongDelta returns the size to add to a long position at simPrice so that
// its safety margin (simPrice-liq)/(entry-liq) becomes targetMargin.
//
// Returns 0 when the price is at or below liquidation or when targetMargin is 1.
func SolveLongDelta(simPrice, longEntry, longSize, longLiq, targetMargin float64) float64 {
	if simPrice <= longLiq || targetMargin == 1 {
		return 0
	}
	cushion := simPrice - longLiq
	return longSize * (targetMargin*(longEntry-longLiq) - cushion) / (cushion * (1 - targetMargin))
}

// SolveShortDelta is the mirror of SolveLongDelta for a short position, whose
// liquidation price sits above entry.
//
// Returns 0 when the price is at or above liquidation or when targetMargin is 1.
func SolveShortDelta(simPrice, shortEntry, shortSize, shortLiq, targetMargin float64) float64 {
	if shortLiq <= simPrice || targetMargin == 1 {
		return 0
	}
	cushion := shortLiq - simPrice
	return shortSize * (targetMargin*(shortLiq-shortEntry) - cushion) / (cushion * (1 - targetMargin))
}

// defaultStrategy solves both sides independently
func defaultStrategy(in Input) Recommendation {
	return Recommendation{
		LongDelta:  SolveLongDelta(in.SimPrice, in.Long.Entry, in.Long.Size, in.Long.Liquidation, in.TargetMargin),
		ShortDelta: SolveShortDelta(in.SimPrice, in.Short.Entry, in.Short.Size, in.Short.Liquidation, in.TargetMargin),
	}
}
