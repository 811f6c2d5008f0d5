package cli

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "hedge_advisor/pkg/errors"
)

var (
	sqlPattern     = regexp.MustCompile(`['"]\s*;\s*|\b(DROP|DELETE|UPDATE|INSERT)\b`)
	profilePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)
	symbolPattern  = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)
)

// ValidateInput checks for potentially malicious input patterns
func ValidateInput(input string) error {
	// Command injection
	if strings.Contains(input, ";") || strings.Contains(input, "&&") || strings.Contains(input, "||") {
		return fmt.Errorf("potentially malicious input detected: %w", apperrors.ErrInvalidInput)
	}

	// Path traversal
	if strings.Contains(input, "../") || strings.Contains(input, "..\\") {
		return fmt.Errorf("potentially malicious input detected: %w", apperrors.ErrInvalidInput)
	}

	if sqlPattern.MatchString(strings.ToUpper(input)) {
		return fmt.Errorf("potentially malicious input detected: %w", apperrors.ErrInvalidInput)
	}

	return nil
}

// ValidateProfileName accepts an empty name (the default profile) or a short
// identifier made of letters, digits, dot, dash and underscore.
func ValidateProfileName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if err := ValidateInput(name); err != nil {
		return err
	}
	if !profilePattern.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: %w", name, apperrors.ErrInvalidInput)
	}
	return nil
}

// NormalizeSymbol upper-cases and validates a trading pair such as BTCUSDT
func NormalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := ValidateInput(symbol); err != nil {
		return "", err
	}
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("invalid symbol %q: %w", symbol, apperrors.ErrInvalidInput)
	}
	return symbol, nil
}
