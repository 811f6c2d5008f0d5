package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"hedge_advisor/internal/core"
)

// CheckFunc reports whether a component is healthy
type CheckFunc func(ctx context.Context) error

// HealthManager aggregates health status from different components
type HealthManager struct {
	logger  core.ILogger
	timeout time.Duration
	mu      sync.RWMutex
	checks  map[string]CheckFunc
}

// NewHealthManager creates a new health manager. Each check gets timeout to answer.
func NewHealthManager(logger core.ILogger, timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	hm := &HealthManager{
		timeout: timeout,
		checks:  make(map[string]CheckFunc),
	}
	if logger != nil {
		hm.logger = logger.WithField("component", "health_manager")
	}
	return hm
}

// Register adds a new health check for a component
func (hm *HealthManager) Register(component string, check CheckFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[component] = check
}

// Components lists registered component names
func (hm *HealthManager) Components() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (hm *HealthManager) run(ctx context.Context, check CheckFunc) error {
	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()
	return check(ctx)
}

// GetStatus returns the current status of all registered components
func (hm *HealthManager) GetStatus(ctx context.Context) map[string]string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := make(map[string]string, len(hm.checks))
	for component, check := range hm.checks {
		if err := hm.run(ctx, check); err != nil {
			status[component] = "Unhealthy: " + err.Error()
			if hm.logger != nil {
				hm.logger.Warn("Health check failed", "check", component, "error", err)
			}
		} else {
			status[component] = "Healthy"
		}
	}
	return status
}

// IsHealthy returns true if all components are healthy
func (hm *HealthManager) IsHealthy(ctx context.Context) bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	for _, check := range hm.checks {
		if err := hm.run(ctx, check); err != nil {
			return false
		}
	}
	return true
}
