package position

import (
	"testing"

	apperrors "hedge_advisor/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixturePositions() []Position {
	return []Position{
		{ID: "1", Asset: "BTC", Side: SideLong, EntryPrice: 100, LiquidationPrice: 80, Size: 1000, Collateral: 500, HedgeBuddyID: "group1"},
		{ID: "2", Asset: "BTC", Side: SideShort, EntryPrice: 110, LiquidationPrice: 130, Size: 500, Collateral: 250, HedgeBuddyID: "group1"},
		{ID: "3", Asset: "ETH", Side: SideLong, EntryPrice: 10, LiquidationPrice: 8, Size: 200, Collateral: 100, HedgeBuddyID: "group2"},
		{ID: "4", Asset: "ETH", Side: SideLong, EntryPrice: 12, LiquidationPrice: 9, Size: 100, Collateral: 100, HedgeBuddyID: "group2"},
		{ID: "5", Asset: "SOL", Side: SideLong, EntryPrice: 50, LiquidationPrice: 40, Size: 300, Collateral: 100},
		{ID: "6", Asset: "SOL", Side: SideShort, EntryPrice: 50, LiquidationPrice: 60, Size: 300, Collateral: 100, HedgeBuddyID: "lonely"},
	}
}

func TestBuildHedges(t *testing.T) {
	hedges := BuildHedges(fixturePositions())
	require.Len(t, hedges, 2)

	g1 := hedges[0]
	assert.Equal(t, "group1", g1.BuddyID)
	assert.NotEmpty(t, g1.ID)
	assert.Len(t, g1.Positions, 2)
	assert.Equal(t, 1000.0, g1.TotalLongSize)
	assert.Equal(t, 500.0, g1.TotalShortSize)
	// heat: 1000*2/500 = 4, 500*2/250 = 4
	assert.Equal(t, 4.0, g1.LongHeatIndex)
	assert.Equal(t, 4.0, g1.ShortHeatIndex)
	assert.Equal(t, 8.0, g1.TotalHeatIndex)
	assert.Contains(t, g1.Notes, "group1")

	g2 := hedges[1]
	assert.Equal(t, "group2", g2.BuddyID)
	assert.Equal(t, 300.0, g2.TotalLongSize)
	assert.Equal(t, 0.0, g2.TotalShortSize)
	assert.NotEqual(t, g1.ID, g2.ID)

	assert.Empty(t, BuildHedges(nil))
}

func TestHedge_Pair(t *testing.T) {
	hedges := BuildHedges(fixturePositions())

	long, short, err := hedges[0].Pair()
	require.NoError(t, err)
	assert.Equal(t, 100.0, long.Entry)
	assert.Equal(t, 1000.0, long.Size)
	assert.Equal(t, 80.0, long.Liquidation)
	assert.Equal(t, 110.0, short.Entry)
	assert.Equal(t, 130.0, short.Liquidation)

	_, _, err = hedges[1].Pair()
	assert.ErrorIs(t, err, apperrors.ErrIncompleteHedge)
}

func TestHedge_PairWeightsBySize(t *testing.T) {
	h := Hedge{Positions: []Position{
		{Side: SideLong, EntryPrice: 10, LiquidationPrice: 8, Size: 200},
		{Side: SideLong, EntryPrice: 13, LiquidationPrice: 11, Size: 100},
		{Side: SideShort, EntryPrice: 12, LiquidationPrice: 14, Size: 50},
	}}
	long, _, err := h.Pair()
	require.NoError(t, err)
	assert.InDelta(t, 11.0, long.Entry, 1e-9)
	assert.InDelta(t, 9.0, long.Liquidation, 1e-9)
	assert.Equal(t, 300.0, long.Size)
}
