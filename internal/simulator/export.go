package simulator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{
	"step", "timestamp", "price", "travel_percent", "static_travel_percent",
	"action", "unrealized_pnl", "cumulative_profit", "trade_profit", "hedging_cost", "net_profit",
}

// ExportCSV writes the step log of r to w
func (r *Result) ExportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, s := range r.Steps {
		row := []string{
			strconv.Itoa(s.Step),
			s.Timestamp.Format(time.RFC3339),
			f(s.Price),
			f(s.TravelPercent),
			f(s.StaticTravelPercent),
			s.Action,
			f(s.UnrealizedPnL),
			f(s.CumulativeProfit),
			f(s.TradeProfit),
			f(s.HedgingCost),
			f(s.NetProfit),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", s.Step, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
