package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"hedge_advisor/internal/advisor"
	"hedge_advisor/internal/hedge"
	"hedge_advisor/internal/position"
	apperrors "hedge_advisor/pkg/errors"
)

type hedgeReport struct {
	Hedge          position.Hedge   `json:"hedge"`
	Summary        position.Summary `json:"summary"`
	Recommendation *advisor.Result  `json:"recommendation,omitempty"`
	Skipped        string           `json:"skipped,omitempty"`
}

func runHedges(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("hedges", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to configuration file")
	positionsPath := fs.String("positions", "", "JSON file holding an array of positions")
	simPrice := fs.Float64("sim-price", 0, "Simulated price (defaults to each hedge's current price)")
	targetMargin := fs.Float64("target-margin", 0, "Target safety margin (defaults to advisor.default_target_margin)")
	profile := fs.String("profile", "", "Recommendation profile (defaults to advisor.default_profile)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *positionsPath == "" {
		return fmt.Errorf("-positions is required: %w", apperrors.ErrInvalidInput)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}

	positions, err := readPositions(*positionsPath)
	if err != nil {
		return err
	}

	if !flagWasSet(fs, "target-margin") {
		*targetMargin = cfg.Advisor.DefaultTargetMargin
	}
	if !flagWasSet(fs, "profile") {
		*profile = cfg.Advisor.DefaultProfile
	}

	store, err := openJournal(cfg)
	if err != nil {
		return err
	}
	svc := advisor.NewService(advisor.Options{Journal: store}, logger)
	defer svc.Close()

	hedges := position.BuildHedges(positions)
	reports := make([]hedgeReport, 0, len(hedges))
	for _, h := range hedges {
		metrics := make([]position.Metrics, 0, len(h.Positions))
		for _, p := range h.Positions {
			metrics = append(metrics, position.Enrich(p))
		}
		report := hedgeReport{Hedge: h, Summary: position.Totals(metrics)}

		long, short, err := h.Pair()
		if errors.Is(err, apperrors.ErrIncompleteHedge) {
			report.Skipped = err.Error()
			reports = append(reports, report)
			continue
		}
		if err != nil {
			return err
		}

		price := *simPrice
		if !flagWasSet(fs, "sim-price") {
			price = currentPrice(h.Positions)
		}
		res, err := svc.Recommend(ctx, advisor.Request{
			Input: hedge.Input{
				SimPrice:     price,
				Long:         long,
				Short:        short,
				TargetMargin: *targetMargin,
			},
			Profile: *profile,
		})
		if err != nil {
			return fmt.Errorf("hedge %s: %w", h.BuddyID, err)
		}
		report.Recommendation = &res
		reports = append(reports, report)
	}

	logger.Info("Hedges evaluated", "positions", len(positions), "hedges", len(reports))
	return writeIndented(stdout, reports)
}

func readPositions(path string) ([]position.Position, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}
	var positions []position.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("failed to parse positions: %w", err)
	}
	return positions, nil
}

// currentPrice is the size-weighted current price of the group
func currentPrice(positions []position.Position) float64 {
	var weighted, total float64
	for _, p := range positions {
		weighted += p.CurrentPrice * p.Size
		total += p.Size
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}
