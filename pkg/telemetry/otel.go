package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	tracetype "go.opentelemetry.io/otel/trace"
)

// Options selects which OTel signals Setup installs
type Options struct {
	ServiceName string
	Version     string
	Environment string

	// EnableMetrics installs the Prometheus-backed meter provider and binds
	// the advisor instruments to it.
	EnableMetrics bool
	// EnableTracing exports spans and bridged log records to Output.
	EnableTracing bool

	// Output receives traces and log records. Defaults to os.Stderr so
	// command results on stdout stay clean.
	Output io.Writer
	// Registerer receives the Prometheus collector. Defaults to the
	// process-wide registry served on /metrics.
	Registerer promclient.Registerer
}

// Telemetry owns the providers Setup installed. Unused signals stay nil.
type Telemetry struct {
	tp  *trace.TracerProvider
	mp  *sdkmetric.MeterProvider
	lp  *sdklog.LoggerProvider
	res *resource.Resource
}

// Setup builds the service resource and installs the enabled providers globally
func Setup(opts Options) (*Telemetry, error) {
	if opts.ServiceName == "" {
		return nil, errors.New("telemetry: service name is required")
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	res, err := newResource(opts)
	if err != nil {
		return nil, err
	}
	t := &Telemetry{res: res}

	if opts.EnableMetrics {
		t.mp, err = newMeterProvider(res, opts.ServiceName, opts.Registerer)
		if err != nil {
			return nil, err
		}
	}

	if opts.EnableTracing {
		traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(opts.Output))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		t.tp = trace.NewTracerProvider(
			trace.WithBatcher(traceExporter),
			trace.WithResource(res),
		)
		otel.SetTracerProvider(t.tp)

		logExporter, err := stdoutlog.New(stdoutlog.WithWriter(opts.Output))
		if err != nil {
			return nil, fmt.Errorf("failed to create log exporter: %w", err)
		}
		t.lp = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		global.SetLoggerProvider(t.lp)
	}

	return t, nil
}

func newResource(opts Options) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceNameKey.String(opts.ServiceName)),
	}
	if opts.Version != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersionKey.String(opts.Version)))
	}
	if opts.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironmentKey.String(opts.Environment)))
	}
	res, err := resource.New(context.Background(), attrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// Resource returns the service resource shared by every installed provider
func (t *Telemetry) Resource() *resource.Resource {
	return t.res
}

// MetricsEnabled reports whether Setup installed the meter provider
func (t *Telemetry) MetricsEnabled() bool {
	return t.mp != nil
}

// TracingEnabled reports whether Setup installed the trace and log exporters
func (t *Telemetry) TracingEnabled() bool {
	return t.tp != nil
}

// Shutdown flushes and stops the installed providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tp != nil {
		if err := t.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown failed: %w", err))
		}
	}
	if t.mp != nil {
		if err := t.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown failed: %w", err))
		}
	}
	if t.lp != nil {
		if err := t.lp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log provider shutdown failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// GetMeter returns a meter for the given name
func GetMeter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// GetTracer returns a tracer for the given name
func GetTracer(name string) tracetype.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}
