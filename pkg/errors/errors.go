package apperrors

import "errors"

// Standardized advisor errors
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrProfileNameRequired = errors.New("profile name required")
	ErrNilStrategy         = errors.New("strategy must not be nil")
	ErrReservedProfile     = errors.New("profile is reserved")
	ErrIncompleteHedge     = errors.New("hedge is missing a long or short side")
	ErrStoreClosed         = errors.New("store closed")
	ErrChecksumMismatch    = errors.New("checksum verification failed")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrTooManySteps        = errors.New("too many steps")
)
