package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"hedge_advisor/internal/position"
	"hedge_advisor/internal/simulator"
)

func runSimulate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	d := simulator.DefaultParams()

	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to configuration file")
	entry := fs.Float64("entry", d.EntryPrice, "Entry price")
	liq := fs.Float64("liq", d.LiquidationPrice, "Liquidation price")
	size := fs.Float64("size", d.Size, "Position size in base units")
	collateral := fs.Float64("collateral", d.Collateral, "Collateral")
	threshold := fs.Float64("threshold", d.RebalanceThreshold, "Rebalance when travel percent falls to this value")
	cost := fs.Float64("cost", d.HedgingCostPct, "Hedging cost as a fraction of notional")
	side := fs.String("side", "long", "Position side: long or short")
	duration := fs.Float64("duration", d.DurationMinutes, "Simulated minutes")
	step := fs.Float64("step", d.StepMinutes, "Minutes per step")
	drift := fs.Float64("drift", d.Drift, "Annual drift")
	volatility := fs.Float64("volatility", d.Volatility, "Annual volatility")
	seed := fs.Int64("seed", time.Now().UnixNano(), "Random seed")
	csvPath := fs.String("csv", "", "Write the step log to this CSV file")
	withSteps := fs.Bool("steps", false, "Include every step in the JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}

	params := simulator.Params{
		EntryPrice:         *entry,
		LiquidationPrice:   *liq,
		Size:               *size,
		Collateral:         *collateral,
		RebalanceThreshold: *threshold,
		HedgingCostPct:     *cost,
		Side:               position.ParseSide(*side),
		DurationMinutes:    *duration,
		StepMinutes:        *step,
		Drift:              *drift,
		Volatility:         *volatility,
		Seed:               *seed,
	}

	res, err := simulator.New(logger).Run(ctx, params)
	if err != nil {
		return err
	}

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			return fmt.Errorf("failed to create csv: %w", err)
		}
		if err := res.ExportCSV(f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close csv: %w", err)
		}
		logger.Info("Simulation log exported", "path", *csvPath, "rows", len(res.Steps))
	}

	if !*withSteps {
		res.Steps = nil
	}
	return writeIndented(stdout, res)
}
