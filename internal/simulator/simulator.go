// Package simulator replays a leveraged position along a geometric Brownian
// motion price path and rebalances it whenever it travels too far toward
// liquidation.
package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"hedge_advisor/internal/core"
	"hedge_advisor/internal/position"
	apperrors "hedge_advisor/pkg/errors"
	"hedge_advisor/pkg/tradingutils"
)

// MinutesInYear converts minute steps into year fractions for a 24/7 market
const MinutesInYear = 525600

// MaxSteps bounds the length of one run
const MaxSteps = 1_000_000

const (
	ActionNone      = "NONE"
	ActionRebalance = "REBALANCE"
)

// Params configures one simulation run. Size is in base units.
type Params struct {
	EntryPrice         float64       `json:"entryPrice"`
	LiquidationPrice   float64       `json:"liquidationPrice"`
	Size               float64       `json:"size"`
	Collateral         float64       `json:"collateral"`
	RebalanceThreshold float64       `json:"rebalanceThreshold"` // travel percent, e.g. -25
	HedgingCostPct     float64       `json:"hedgingCostPct"`     // fraction of notional
	Side               position.Side `json:"side"`
	DurationMinutes    float64       `json:"durationMinutes"`
	StepMinutes        float64       `json:"stepMinutes"`
	Drift              float64       `json:"drift"`
	Volatility         float64       `json:"volatility"`
	Seed               int64         `json:"seed"`
	Start              time.Time     `json:"start"`
}

// DefaultParams mirrors a one hour, one minute step BTC long run
func DefaultParams() Params {
	return Params{
		EntryPrice:         10000,
		LiquidationPrice:   8000,
		Size:               1,
		Collateral:         1000,
		RebalanceThreshold: -25,
		HedgingCostPct:     0.001,
		Side:               position.SideLong,
		DurationMinutes:    60,
		StepMinutes:        1,
		Drift:              0.05,
		Volatility:         0.8,
		Seed:               1,
	}
}

// Validate rejects parameters that cannot produce a price path
func (p Params) Validate() error {
	for _, v := range []float64{p.EntryPrice, p.LiquidationPrice, p.Size, p.Collateral, p.RebalanceThreshold,
		p.HedgingCostPct, p.DurationMinutes, p.StepMinutes, p.Drift, p.Volatility} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("parameters must be finite: %w", apperrors.ErrInvalidInput)
		}
	}

	switch {
	case p.EntryPrice <= 0 || p.LiquidationPrice <= 0:
		return fmt.Errorf("entry and liquidation prices must be positive: %w", apperrors.ErrInvalidInput)
	case p.StepMinutes <= 0 || p.DurationMinutes < p.StepMinutes:
		return fmt.Errorf("duration must cover at least one step: %w", apperrors.ErrInvalidInput)
	case p.Volatility < 0 || p.HedgingCostPct < 0:
		return fmt.Errorf("volatility and hedging cost must be non-negative: %w", apperrors.ErrInvalidInput)
	case p.Side != position.SideLong && p.Side != position.SideShort:
		return fmt.Errorf("unknown side %q: %w", p.Side, apperrors.ErrInvalidInput)
	case p.DurationMinutes/p.StepMinutes > MaxSteps:
		return fmt.Errorf("%.0f steps exceeds limit %d: %w", p.DurationMinutes/p.StepMinutes, MaxSteps, apperrors.ErrTooManySteps)
	}
	return nil
}

// Step is one row of the simulation log
type Step struct {
	Step                int       `json:"step"`
	Timestamp           time.Time `json:"timestamp"`
	Price               float64   `json:"price"`
	TravelPercent       float64   `json:"travelPercent"`
	StaticTravelPercent float64   `json:"staticTravelPercent"`
	Action              string    `json:"action"`
	UnrealizedPnL       float64   `json:"unrealizedPnl"`
	CumulativeProfit    float64   `json:"cumulativeProfit"`
	TradeProfit         float64   `json:"tradeProfit,omitempty"`
	HedgingCost         float64   `json:"hedgingCost,omitempty"`
	NetProfit           float64   `json:"netProfit,omitempty"`
}

// Result summarises a run
type Result struct {
	Steps              []Step        `json:"steps,omitempty"`
	FinalPrice         float64       `json:"finalPrice"`
	FinalUnrealizedPnL float64       `json:"finalUnrealizedPnl"`
	CumulativeProfit   float64       `json:"cumulativeProfit"`
	TotalProfit        float64       `json:"totalProfit"`
	RebalanceCount     int           `json:"rebalanceCount"`
	TotalHedgingCost   float64       `json:"totalHedgingCost"`
	Leverage           float64       `json:"leverage"`
	Side               position.Side `json:"side"`
}

// Simulator runs price paths
type Simulator struct {
	logger core.ILogger
}

func New(logger core.ILogger) *Simulator {
	return &Simulator{logger: logger.WithField("component", "simulator")}
}

type state struct {
	params         Params
	effectiveEntry float64
	cumulative     float64
	totalCost      float64
	rebalanceCount int
}

func (s *state) pnl(price float64) float64 {
	if s.params.Side == position.SideShort {
		return (s.effectiveEntry - price) * s.params.Size
	}
	return (price - s.effectiveEntry) * s.params.Size
}

// travel is measured from the effective entry, which resets on every rebalance
func (s *state) travel(price float64) float64 {
	if s.params.Side == position.SideShort {
		denom := s.params.LiquidationPrice - s.effectiveEntry
		if denom == 0 {
			return 0
		}
		return (s.effectiveEntry - price) / denom * 100
	}
	denom := s.effectiveEntry - s.params.LiquidationPrice
	if denom == 0 {
		return 0
	}
	return (price - s.effectiveEntry) / denom * 100
}

func (s *state) rebalance(price float64, step *Step) {
	step.TradeProfit = s.pnl(price)
	step.HedgingCost = math.Abs(price*s.params.Size) * s.params.HedgingCostPct
	step.NetProfit = step.TradeProfit - step.HedgingCost

	s.cumulative += step.NetProfit
	s.totalCost += step.HedgingCost
	s.rebalanceCount++
	s.effectiveEntry = price
}

// Run simulates the configured duration. It stops with ctx.Err() when the
// context is cancelled.
func (sim *Simulator) Run(ctx context.Context, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Start.IsZero() {
		p.Start = time.Now().UTC()
	}

	rng := rand.New(rand.NewSource(p.Seed))
	dt := p.StepMinutes / MinutesInYear
	numSteps := int(p.DurationMinutes / p.StepMinutes)
	driftTerm := (p.Drift - 0.5*p.Volatility*p.Volatility) * dt
	volTerm := p.Volatility * math.Sqrt(dt)

	st := &state{params: p, effectiveEntry: p.EntryPrice}
	price := p.EntryPrice
	steps := make([]Step, 0, numSteps)

	sim.logger.Info("Running simulation", "steps", numSteps, "side", p.Side, "seed", p.Seed)

	for i := 0; i < numSteps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		price *= math.Exp(driftTerm + volTerm*rng.NormFloat64())

		step := Step{
			Step:                i + 1,
			Timestamp:           p.Start.Add(time.Duration(float64(i) * p.StepMinutes * float64(time.Minute))),
			Price:               price,
			TravelPercent:       st.travel(price),
			StaticTravelPercent: position.TravelPercentNoProfit(p.Side, p.EntryPrice, price, p.LiquidationPrice),
			Action:              ActionNone,
		}
		if step.TravelPercent <= p.RebalanceThreshold {
			step.Action = ActionRebalance
			st.rebalance(price, &step)
			sim.logger.Debug("Rebalanced",
				"step", step.Step,
				"price", tradingutils.Round2(price),
				"net", tradingutils.Round2(step.NetProfit))
		}
		step.UnrealizedPnL = st.pnl(price)
		step.CumulativeProfit = st.cumulative
		steps = append(steps, step)
	}

	finalUnrealized := st.pnl(price)
	res := &Result{
		Steps:              steps,
		FinalPrice:         price,
		FinalUnrealizedPnL: finalUnrealized,
		CumulativeProfit:   st.cumulative,
		TotalProfit:        st.cumulative + finalUnrealized,
		RebalanceCount:     st.rebalanceCount,
		TotalHedgingCost:   st.totalCost,
		Side:               p.Side,
	}
	if p.Collateral != 0 {
		res.Leverage = p.Size * price / p.Collateral
	}

	sim.logger.Info("Simulation complete",
		"final_price", tradingutils.Round2(price),
		"rebalances", res.RebalanceCount,
		"total_profit", tradingutils.Round2(res.TotalProfit))
	return res, nil
}
