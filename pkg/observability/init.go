// Package observability provides OpenTelemetry tracing for routed connector callbacks
package observability

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/hvol"

var (
	mu       sync.RWMutex
	tracer   trace.Tracer = otel.Tracer(instrumentationName)
	provider *sdktrace.TracerProvider
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
	// Writer receives exported spans; stdout when nil
	Writer io.Writer
	// Sync exports each span as it ends instead of batching
	Sync bool
}

// DefaultTracingConfig returns a config that samples everything and batches exports
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:    "hvol",
		ServiceVersion: "dev",
		Environment:    "development",
		SamplingRate:   1.0,
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
	}
}

// Initialize installs a tracer provider exporting to stdout. Until it is
// called every span is a no-op.
func Initialize(ctx context.Context, config TracingConfig) error {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if config.Writer != nil {
		opts = append(opts, stdouttrace.WithWriter(config.Writer))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	if config.SamplingRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else if config.SamplingRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	var export sdktrace.TracerProviderOption
	if config.Sync {
		export = sdktrace.WithSyncer(exporter)
	} else {
		export = sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(config.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(config.MaxExportBatch),
			sdktrace.WithMaxQueueSize(config.MaxQueueSize),
		)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		export,
	)
	otel.SetTracerProvider(tp)

	mu.Lock()
	prev := provider
	provider = tp
	tracer = tp.Tracer(instrumentationName)
	mu.Unlock()

	if prev != nil {
		return prev.Shutdown(ctx)
	}
	return nil
}

// Shutdown flushes and stops the installed provider, reverting to no-op spans
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	tracer = otel.Tracer(instrumentationName)
	mu.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// GetTracer returns the current tracer
func GetTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return tracer
}
