package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetricsHolder_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m := &MetricsHolder{lastDeltaMap: make(map[string]float64)}
	require.NoError(t, m.InitMetrics(mp.Meter("test")))

	ctx := context.Background()
	m.RecordRecommendation(ctx, "default", 0.5)
	m.RecordRecommendation(ctx, "default", 0.7)
	m.RecordDegenerate(ctx, "long")
	m.RecordSweep(ctx, 11)
	m.SetLastDelta("long", -1500)

	got := collect(t, reader)

	recs, ok := got[MetricRecommendationsTotal].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, recs.DataPoints, 1)
	assert.Equal(t, int64(2), recs.DataPoints[0].Value)

	sweep, ok := got[MetricSweepPointsTotal].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(11), sweep.DataPoints[0].Value)

	gauge, ok := got[MetricLastDelta].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, -1500.0, gauge.DataPoints[0].Value)

	assert.Equal(t, map[string]float64{"long": -1500}, m.GetLastDeltas())
}

func TestMetricsHolder_RecordBeforeInit(t *testing.T) {
	m := &MetricsHolder{lastDeltaMap: make(map[string]float64)}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordRecommendation(ctx, "default", 1)
		m.RecordDegenerate(ctx, "short")
		m.RecordSweep(ctx, 3)
		m.RecordJournalFailure(ctx)
	})
}
