package position

import (
	"fmt"
	"sort"
	"time"

	"hedge_advisor/internal/hedge"
	apperrors "hedge_advisor/pkg/errors"

	"github.com/google/uuid"
)

// Hedge groups positions that share a hedge buddy id
type Hedge struct {
	ID             string     `json:"id"`
	BuddyID        string     `json:"buddy_id"`
	Positions      []Position `json:"positions"`
	TotalLongSize  float64    `json:"total_long_size"`
	TotalShortSize float64    `json:"total_short_size"`
	LongHeatIndex  float64    `json:"long_heat_index"`
	ShortHeatIndex float64    `json:"short_heat_index"`
	TotalHeatIndex float64    `json:"total_heat_index"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Notes          string     `json:"notes"`
}

// BuildHedges groups positions by HedgeBuddyID. Only groups with two or more
// positions become hedges. Hedges are ordered by buddy id.
func BuildHedges(positions []Position) []Hedge {
	groups := make(map[string][]Position)
	for _, p := range positions {
		if p.HedgeBuddyID == "" {
			continue
		}
		groups[p.HedgeBuddyID] = append(groups[p.HedgeBuddyID], p)
	}

	keys := make([]string, 0, len(groups))
	for k, g := range groups {
		if len(g) >= 2 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	now := time.Now()
	hedges := make([]Hedge, 0, len(keys))
	for _, key := range keys {
		h := Hedge{
			ID:        uuid.New().String(),
			BuddyID:   key,
			Positions: groups[key],
			CreatedAt: now,
			UpdatedAt: now,
			Notes:     fmt.Sprintf("Hedge created from positions with hedge_buddy_id: %s", key),
		}
		for _, p := range h.Positions {
			heat, _ := HeatIndex(p.Size, Leverage(p.Size, p.Collateral), p.Collateral)
			switch p.Side {
			case SideLong:
				h.TotalLongSize += p.Size
				h.LongHeatIndex += heat
			case SideShort:
				h.TotalShortSize += p.Size
				h.ShortHeatIndex += heat
			}
		}
		h.TotalHeatIndex = h.LongHeatIndex + h.ShortHeatIndex
		hedges = append(hedges, h)
	}
	return hedges
}

// Pair collapses each side of the hedge into a single hedge.Side using
// size-weighted entry and liquidation prices
func (h Hedge) Pair() (long, short hedge.Side, err error) {
	long, longOK := collapse(h.Positions, SideLong)
	short, shortOK := collapse(h.Positions, SideShort)
	if !longOK || !shortOK {
		return hedge.Side{}, hedge.Side{}, fmt.Errorf("hedge %s: %w", h.BuddyID, apperrors.ErrIncompleteHedge)
	}
	return long, short, nil
}

func collapse(positions []Position, side Side) (hedge.Side, bool) {
	var size, entryW, liqW float64
	found := false
	for _, p := range positions {
		if p.Side != side {
			continue
		}
		found = true
		size += p.Size
		entryW += p.EntryPrice * p.Size
		liqW += p.LiquidationPrice * p.Size
	}
	if !found {
		return hedge.Side{}, false
	}
	if size == 0 {
		return hedge.Side{}, true
	}
	return hedge.Side{Entry: entryW / size, Size: size, Liquidation: liqW / size}, true
}
