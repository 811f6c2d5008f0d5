package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"hedge_advisor/internal/advisor"
	"hedge_advisor/internal/config"
	"hedge_advisor/internal/core"
	"hedge_advisor/internal/hedge"
	"hedge_advisor/internal/pricefeed"
	apperrors "hedge_advisor/pkg/errors"
)

func runRecommend(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to configuration file")
	simPrice := fs.Float64("sim-price", 0, "Simulated price (fetched for -symbol when omitted)")
	longEntry := fs.Float64("long-entry", 0, "Long entry price")
	longSize := fs.Float64("long-size", 0, "Long size (quote notional)")
	longLiq := fs.Float64("long-liq", 0, "Long liquidation price")
	shortEntry := fs.Float64("short-entry", 0, "Short entry price")
	shortSize := fs.Float64("short-size", 0, "Short size (quote notional)")
	shortLiq := fs.Float64("short-liq", 0, "Short liquidation price")
	targetMargin := fs.Float64("target-margin", 0, "Target safety margin (defaults to advisor.default_target_margin)")
	profile := fs.String("profile", "", "Recommendation profile (defaults to advisor.default_profile)")
	symbol := fs.String("symbol", "", "Trading pair used for the price lookup, e.g. BTCUSDT")
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

	req := advisor.Request{
		Input: hedge.Input{
			SimPrice:     *simPrice,
			Long:         hedge.Side{Entry: *longEntry, Size: *longSize, Liquidation: *longLiq},
			Short:        hedge.Side{Entry: *shortEntry, Size: *shortSize, Liquidation: *shortLiq},
			TargetMargin: *targetMargin,
		},
		Profile: *profile,
		Symbol:  *symbol,
	}
	if !flagWasSet(fs, "target-margin") {
		req.TargetMargin = cfg.Advisor.DefaultTargetMargin
	}
	if !flagWasSet(fs, "profile") {
		req.Profile = cfg.Advisor.DefaultProfile
	}

	if !flagWasSet(fs, "sim-price") {
		if req.Symbol == "" {
			return fmt.Errorf("either -sim-price or -symbol is required: %w", apperrors.ErrInvalidInput)
		}
		req.SimPrice, err = fetchPrice(ctx, cfg, logger, req.Symbol)
		if err != nil {
			return err
		}
	}

	store, err := openJournal(cfg)
	if err != nil {
		return err
	}
	svc := advisor.NewService(advisor.Options{
		Journal:       store,
		SweepWorkers:  cfg.Advisor.SweepWorkers,
		SweepMaxSteps: cfg.Advisor.SweepMaxSteps,
	}, logger)
	defer svc.Close()

	res, err := svc.Recommend(ctx, req)
	if err != nil {
		return err
	}
	return writeIndented(stdout, res)
}

func fetchPrice(ctx context.Context, cfg *config.Config, logger core.ILogger, symbol string) (float64, error) {
	timeout := time.Duration(cfg.PriceFeed.TimeoutSeconds) * time.Second
	feed := pricefeed.New(cfg.PriceFeed.BaseURL, cfg.PriceFeed.APIKey.Reveal(), timeout, logger)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return feed.Price(ctx, symbol)
}

func writeIndented(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
