// Package journal records served recommendations
package journal

import (
	"context"
	"time"

	"hedge_advisor/internal/hedge"
)

// Entry is one served recommendation
type Entry struct {
	ID             string               `json:"id"`
	Profile        string               `json:"profile"`
	Symbol         string               `json:"symbol,omitempty"`
	Input          hedge.Input          `json:"input"`
	Recommendation hedge.Recommendation `json:"recommendation"`
	CreatedAt      time.Time            `json:"createdAt"`
}

// Store persists entries and returns the most recent first
type Store interface {
	Save(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}
