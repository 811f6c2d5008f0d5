// Package advisor serves hedge recommendations: it validates requests,
// dispatches them through the profile registry and journals the results.
package advisor

import (
	"time"

	"hedge_advisor/internal/hedge"
)

// Request is one recommendation query
type Request struct {
	hedge.Input
	Profile string `json:"profile,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
}

// Result is a served recommendation together with the margins it was computed from
type Result struct {
	ID      string `json:"id"`
	Profile string `json:"profile"`
	Symbol  string `json:"symbol,omitempty"`
	hedge.Recommendation
	LongActionable  bool      `json:"longActionable"`
	ShortActionable bool      `json:"shortActionable"`
	LongMarginNow   float64   `json:"longMarginNow"`
	ShortMarginNow  float64   `json:"shortMarginNow"`
	CreatedAt       time.Time `json:"createdAt"`
}

// SweepPoint is the recommendation at one simulated price
type SweepPoint struct {
	SimPrice float64 `json:"simPrice"`
	hedge.Recommendation
	LongActionable  bool `json:"longActionable"`
	ShortActionable bool `json:"shortActionable"`
}

// Publisher receives every served recommendation
type Publisher interface {
	PublishRecommendation(r Result)
}
