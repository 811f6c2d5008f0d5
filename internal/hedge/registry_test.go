package hedge

import (
	"sync"
	"testing"

	apperrors "hedge_advisor/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput() Input {
	return Input{
		SimPrice:     100,
		Long:         Side{Entry: 90, Size: 1000, Liquidation: 80},
		Short:        Side{Entry: 110, Size: 800, Liquidation: 125},
		TargetMargin: 0.5,
	}
}

func TestGetHedgeRecommendations_PassThrough(t *testing.T) {
	in := sampleInput()
	wantLong := SolveLongDelta(in.SimPrice, in.Long.Entry, in.Long.Size, in.Long.Liquidation, in.TargetMargin)
	wantShort := SolveShortDelta(in.SimPrice, in.Short.Entry, in.Short.Size, in.Short.Liquidation, in.TargetMargin)

	for _, profile := range []string{"default", "", "aggressive-unknown", "  default  "} {
		t.Run(profile, func(t *testing.T) {
			got := GetHedgeRecommendations(100, 90, 1000, 80, 110, 800, 125, 0.5, profile)
			assert.Equal(t, wantLong, got.LongDelta)
			assert.Equal(t, wantShort, got.ShortDelta)
		})
	}
}

func TestGetHedgeRecommendations_Example(t *testing.T) {
	got := GetHedgeRecommendations(100, 90, 1000, 80, 110, 1000, 120, 0.5, DefaultProfile)
	assert.Equal(t, -1500.0, got.LongDelta)
	assert.Equal(t, -1500.0, got.ShortDelta)

	// Price under the long liquidation only zeroes the long side.
	got = GetHedgeRecommendations(75, 90, 1000, 80, 110, 1000, 120, 0.5, DefaultProfile)
	assert.Equal(t, 0.0, got.LongDelta)
	assert.NotZero(t, got.ShortDelta)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	err := r.Register("", func(Input) Recommendation { return Recommendation{} })
	assert.ErrorIs(t, err, apperrors.ErrProfileNameRequired)

	err = r.Register("flat", nil)
	assert.ErrorIs(t, err, apperrors.ErrNilStrategy)

	err = r.Register(DefaultProfile, func(Input) Recommendation { return Recommendation{} })
	assert.ErrorIs(t, err, apperrors.ErrReservedProfile)

	require.NoError(t, r.Register("flat", func(Input) Recommendation {
		return Recommendation{LongDelta: 1, ShortDelta: 2}
	}))
	assert.Equal(t, []string{"default", "flat"}, r.Profiles())

	got := r.Recommend(sampleInput(), "flat")
	assert.Equal(t, Recommendation{LongDelta: 1, ShortDelta: 2}, got)

	// Default behaviour is untouched by the new profile.
	assert.Equal(t, defaultStrategy(sampleInput()), r.Recommend(sampleInput(), DefaultProfile))
	assert.Equal(t, defaultStrategy(sampleInput()), r.Recommend(sampleInput(), "missing"))
}

func TestRegistry_ResolveAndUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("halved", func(in Input) Recommendation {
		rec := defaultStrategy(in)
		return Recommendation{LongDelta: rec.LongDelta / 2, ShortDelta: rec.ShortDelta / 2}
	}))

	name, _ := r.Resolve("halved")
	assert.Equal(t, "halved", name)

	name, _ = r.Resolve("nope")
	assert.Equal(t, DefaultProfile, name)

	r.Unregister("halved")
	name, _ = r.Resolve("halved")
	assert.Equal(t, DefaultProfile, name)

	r.Unregister(DefaultProfile)
	assert.Equal(t, []string{DefaultProfile}, r.Profiles())
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewRegistry()
	in := sampleInput()
	want := defaultStrategy(in)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.Register("extra", defaultStrategy)
		}()
		go func() {
			defer wg.Done()
			assert.Equal(t, want, r.Recommend(in, DefaultProfile))
		}()
	}
	wg.Wait()
}
