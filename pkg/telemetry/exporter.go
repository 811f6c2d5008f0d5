package telemetry

import (
	"context"
	"fmt"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// newMeterProvider registers a Prometheus exporter on reg (the default
// registry when nil), installs its meter provider globally and binds the
// advisor instruments to a meter named scope.
func newMeterProvider(res *resource.Resource, scope string, reg promclient.Registerer) (*sdkmetric.MeterProvider, error) {
	var exporterOpts []prometheus.Option
	if reg != nil {
		exporterOpts = append(exporterOpts, prometheus.WithRegisterer(reg))
	}
	exporter, err := prometheus.New(exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	if err := GetGlobalMetrics().InitMetrics(mp.Meter(scope)); err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to init advisor instruments: %w", err)
	}
	return mp, nil
}
