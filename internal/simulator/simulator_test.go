package simulator

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"testing"
	"time"

	"hedge_advisor/internal/position"
	apperrors "hedge_advisor/pkg/errors"
	"hedge_advisor/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSim() *Simulator {
	return New(logging.NewNopLogger())
}

func TestRun_Deterministic(t *testing.T) {
	p := DefaultParams()
	p.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a, err := newSim().Run(context.Background(), p)
	require.NoError(t, err)
	b, err := newSim().Run(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, a.Steps, 60)
	assert.Equal(t, a.FinalPrice, b.FinalPrice)
	assert.Equal(t, a.Steps, b.Steps)
	assert.Equal(t, p.Start.Add(59*time.Minute), a.Steps[59].Timestamp)

	p.Seed = 2
	c, err := newSim().Run(context.Background(), p)
	require.NoError(t, err)
	assert.NotEqual(t, a.FinalPrice, c.FinalPrice)
}

func TestRun_Accounting(t *testing.T) {
	p := DefaultParams()
	p.DurationMinutes = 500
	p.Volatility = 3
	p.RebalanceThreshold = -1

	res, err := newSim().Run(context.Background(), p)
	require.NoError(t, err)

	var net, cost float64
	rebalances := 0
	for _, s := range res.Steps {
		if s.Action == ActionRebalance {
			rebalances++
			net += s.NetProfit
			cost += s.HedgingCost
			assert.InDelta(t, s.TradeProfit-s.HedgingCost, s.NetProfit, 1e-9)
			// entry resets to the rebalance price
			assert.InDelta(t, 0, s.UnrealizedPnL, 1e-9)
		}
	}

	require.Greater(t, rebalances, 0)
	assert.Equal(t, rebalances, res.RebalanceCount)
	assert.InDelta(t, net, res.CumulativeProfit, 1e-6)
	assert.InDelta(t, cost, res.TotalHedgingCost, 1e-6)
	assert.InDelta(t, res.CumulativeProfit+res.FinalUnrealizedPnL, res.TotalProfit, 1e-9)
	assert.InDelta(t, res.FinalPrice/1000, res.Leverage, 1e-9)
}

func TestRun_NoRebalanceBelowThreshold(t *testing.T) {
	p := DefaultParams()
	p.Volatility = 0
	p.Drift = 0
	p.Side = position.SideShort
	p.LiquidationPrice = 12000

	res, err := newSim().Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RebalanceCount)
	assert.InDelta(t, 10000, res.FinalPrice, 1e-9)
	assert.InDelta(t, 0, res.TotalProfit, 1e-9)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newSim().Run(ctx, DefaultParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero entry", func(p *Params) { p.EntryPrice = 0 }},
		{"zero step", func(p *Params) { p.StepMinutes = 0 }},
		{"duration shorter than step", func(p *Params) { p.DurationMinutes = 0.5 }},
		{"negative volatility", func(p *Params) { p.Volatility = -1 }},
		{"bad side", func(p *Params) { p.Side = "SIDEWAYS" }},
		{"NaN duration", func(p *Params) { p.DurationMinutes = math.NaN() }},
		{"NaN step", func(p *Params) { p.StepMinutes = math.NaN() }},
		{"infinite drift", func(p *Params) { p.Drift = math.Inf(1) }},
		{"NaN volatility", func(p *Params) { p.Volatility = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			_, err := newSim().Run(context.Background(), p)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestParams_ValidateStepLimit(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		step     float64
		wantErr  bool
	}{
		{"at limit", MaxSteps, 1, false},
		{"one over limit", MaxSteps + 1, 1, true},
		{"huge duration", 1e300, 1, true},
		{"tiny step", 60, 1e-9, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			p.DurationMinutes = tt.duration
			p.StepMinutes = tt.step
			err := p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrTooManySteps)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	p := DefaultParams()
	p.DurationMinutes = 1e300
	assert.NotPanics(t, func() {
		_, err := newSim().Run(context.Background(), p)
		assert.ErrorIs(t, err, apperrors.ErrTooManySteps)
	})
}

func TestExportCSV(t *testing.T) {
	p := DefaultParams()
	p.DurationMinutes = 5
	res, err := newSim().Run(context.Background(), p)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, res.ExportCSV(&buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, ActionNone, rows[1][5])
}
