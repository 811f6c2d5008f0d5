package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricRecommendationsTotal = "hedge_advisor_recommendations_total"
	MetricDegenerateTotal      = "hedge_advisor_degenerate_total"
	MetricRecommendLatency     = "hedge_advisor_recommend_latency_ms"
	MetricLastDelta            = "hedge_advisor_last_delta"
	MetricSweepPointsTotal     = "hedge_advisor_sweep_points_total"
	MetricJournalFailuresTotal = "hedge_advisor_journal_failures_total"
)

// MetricsHolder holds initialized instruments. Record methods are safe to call
// before InitMetrics; they do nothing until instruments exist.
type MetricsHolder struct {
	RecommendationsTotal metric.Int64Counter
	DegenerateTotal      metric.Int64Counter
	RecommendLatency     metric.Float64Histogram
	LastDelta            metric.Float64ObservableGauge
	SweepPointsTotal     metric.Int64Counter
	JournalFailuresTotal metric.Int64Counter

	mu           sync.RWMutex
	lastDeltaMap map[string]float64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			lastDeltaMap: make(map[string]float64),
		}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	recs, err := meter.Int64Counter(MetricRecommendationsTotal, metric.WithDescription("Recommendations computed, by resolved profile"))
	if err != nil {
		return err
	}

	degenerate, err := meter.Int64Counter(MetricDegenerateTotal, metric.WithDescription("Sides that produced no actionable delta"))
	if err != nil {
		return err
	}

	latency, err := meter.Float64Histogram(MetricRecommendLatency, metric.WithDescription("Time spent serving a recommendation"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	sweep, err := meter.Int64Counter(MetricSweepPointsTotal, metric.WithDescription("Price points evaluated by sweeps"))
	if err != nil {
		return err
	}

	journal, err := meter.Int64Counter(MetricJournalFailuresTotal, metric.WithDescription("Recommendations that could not be journaled"))
	if err != nil {
		return err
	}

	lastDelta, err := meter.Float64ObservableGauge(MetricLastDelta, metric.WithDescription("Most recent recommended delta per side"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for side, val := range m.lastDeltaMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("side", side)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecommendationsTotal = recs
	m.DegenerateTotal = degenerate
	m.RecommendLatency = latency
	m.SweepPointsTotal = sweep
	m.JournalFailuresTotal = journal
	m.LastDelta = lastDelta
	return nil
}

// RecordRecommendation counts one served recommendation
func (m *MetricsHolder) RecordRecommendation(ctx context.Context, profile string, latencyMs float64) {
	m.mu.RLock()
	recs, latency := m.RecommendationsTotal, m.RecommendLatency
	m.mu.RUnlock()

	attrs := metric.WithAttributes(attribute.String("profile", profile))
	if recs != nil {
		recs.Add(ctx, 1, attrs)
	}
	if latency != nil {
		latency.Record(ctx, latencyMs, attrs)
	}
}

// RecordDegenerate counts a side whose delta was not actionable
func (m *MetricsHolder) RecordDegenerate(ctx context.Context, side string) {
	m.mu.RLock()
	c := m.DegenerateTotal
	m.mu.RUnlock()
	if c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("side", side)))
	}
}

// RecordSweep counts evaluated sweep points
func (m *MetricsHolder) RecordSweep(ctx context.Context, points int) {
	m.mu.RLock()
	c := m.SweepPointsTotal
	m.mu.RUnlock()
	if c != nil {
		c.Add(ctx, int64(points))
	}
}

// RecordJournalFailure counts a recommendation that was not persisted
func (m *MetricsHolder) RecordJournalFailure(ctx context.Context) {
	m.mu.RLock()
	c := m.JournalFailuresTotal
	m.mu.RUnlock()
	if c != nil {
		c.Add(ctx, 1)
	}
}

// SetLastDelta updates the observable gauge for a side
func (m *MetricsHolder) SetLastDelta(side string, delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastDeltaMap == nil {
		m.lastDeltaMap = make(map[string]float64)
	}
	m.lastDeltaMap[side] = delta
}

// GetLastDeltas returns a copy of the last observed deltas
func (m *MetricsHolder) GetLastDeltas() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]float64, len(m.lastDeltaMap))
	for k, v := range m.lastDeltaMap {
		res[k] = v
	}
	return res
}
