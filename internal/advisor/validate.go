package advisor

import (
	"fmt"
	"math"

	"hedge_advisor/pkg/cli"
	apperrors "hedge_advisor/pkg/errors"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validateRequest(req Request) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"simPrice", req.SimPrice},
		{"long.entry", req.Long.Entry},
		{"long.size", req.Long.Size},
		{"long.liquidation", req.Long.Liquidation},
		{"short.entry", req.Short.Entry},
		{"short.size", req.Short.Size},
		{"short.liquidation", req.Short.Liquidation},
		{"targetMargin", req.TargetMargin},
	}
	for _, f := range fields {
		if !finite(f.value) {
			return fmt.Errorf("%s must be a finite number: %w", f.name, apperrors.ErrInvalidInput)
		}
	}

	if req.Long.Size < 0 || req.Short.Size < 0 {
		return fmt.Errorf("position sizes must not be negative: %w", apperrors.ErrInvalidInput)
	}

	if err := cli.ValidateProfileName(req.Profile); err != nil {
		return err
	}
	if req.Symbol != "" {
		if _, err := cli.NormalizeSymbol(req.Symbol); err != nil {
			return err
		}
	}
	return nil
}

func validateSweep(from, to float64, steps, maxSteps int) error {
	if !finite(from) || !finite(to) || from <= 0 || to <= 0 {
		return fmt.Errorf("sweep bounds must be positive finite prices: %w", apperrors.ErrInvalidInput)
	}
	if steps < 1 {
		return fmt.Errorf("sweep needs at least one step: %w", apperrors.ErrInvalidInput)
	}
	if steps > maxSteps {
		return fmt.Errorf("%d steps exceeds limit %d: %w", steps, maxSteps, apperrors.ErrTooManySteps)
	}
	return nil
}
