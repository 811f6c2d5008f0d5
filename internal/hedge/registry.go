package hedge

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "hedge_advisor/pkg/errors"
)

// Registry maps profile names to strategies. Unknown names resolve to the
// default strategy.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates a registry holding only the default profile
func NewRegistry() *Registry {
	return &Registry{
		strategies: map[string]Strategy{
			DefaultProfile: defaultStrategy,
		},
	}
}

// Register adds or replaces a named strategy. The default profile cannot be replaced.
func (r *Registry) Register(name string, strategy Strategy) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.ErrProfileNameRequired
	}
	if strategy == nil {
		return fmt.Errorf("register %q: %w", name, apperrors.ErrNilStrategy)
	}
	if name == DefaultProfile {
		return fmt.Errorf("register %q: %w", name, apperrors.ErrReservedProfile)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = strategy
	return nil
}

// Unregister removes a named strategy. Removing the default profile is a no-op.
func (r *Registry) Unregister(name string) {
	name = normalizeProfile(name)
	if name == DefaultProfile {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.strategies, name)
}

// Resolve returns the profile that serves name and its strategy
func (r *Registry) Resolve(name string) (string, Strategy) {
	name = normalizeProfile(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.strategies[name]; ok {
		return name, s
	}
	return DefaultProfile, r.strategies[DefaultProfile]
}

// Profiles returns the registered profile names in sorted order
func (r *Registry) Profiles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Recommend dispatches in to the strategy registered for profile
func (r *Registry) Recommend(in Input, profile string) Recommendation {
	_, strategy := r.Resolve(profile)
	return strategy(in)
}

func normalizeProfile(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultProfile
	}
	return name
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by GetHedgeRecommendations
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// GetHedgeRecommendations computes the long and short deltas for the given
// profile. An empty or unknown profile uses the default strategy.
func GetHedgeRecommendations(simPrice, longEntry, longSize, longLiq, shortEntry, shortSize, shortLiq, targetMargin float64, profile string) Recommendation {
	in := Input{
		SimPrice:     simPrice,
		Long:         Side{Entry: longEntry, Size: longSize, Liquidation: longLiq},
		Short:        Side{Entry: shortEntry, Size: shortSize, Liquidation: shortLiq},
		TargetMargin: targetMargin,
	}
	return defaultRegistry.Recommend(in, profile)
}
