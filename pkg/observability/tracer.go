// Package observability wires OpenTelemetry tracing and metrics for agent,
// tool and LLM activity.
package observability

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerConfig configures the global tracer provider.
type TracerConfig struct {
	Enabled      bool
	Exporter     string // "otlp" or "stdout"
	Endpoint     string // OTLP gRPC endpoint
	SamplingRate float64
	ServiceName  string
	Insecure     bool

	// CaptureContent records message and prompt text on spans. Equivalent
	// to the sensitive-data switch in agent tracing setups: traces will
	// contain user content.
	CaptureContent bool
}

var captureContent atomic.Bool

// CaptureContent reports whether message content should be recorded on spans.
func CaptureContent() bool {
	return captureContent.Load()
}

// InitGlobalTracer installs the global tracer provider. Returns a provider
// whose Shutdown must be called on exit; a noop provider when disabled.
func InitGlobalTracer(ctx context.Context, cfg TracerConfig) (trace.TracerProvider, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), nil
	}

	captureContent.Store(cfg.CaptureContent)

	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.SamplingRate == 0 {
		cfg.SamplingRate = DefaultSamplingRate
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	default:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = DefaultOTLPEndpoint
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// GetTracer returns a named tracer from the global provider.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// ApplicationInsightsConfigured reports whether an Application Insights
// connection string is present in the environment. There is no native Go
// Azure Monitor trace exporter; spans are exported over OTLP to a collector
// that forwards to Application Insights.
func ApplicationInsightsConfigured() bool {
	return os.Getenv("APPLICATIONINSIGHTS_CONNECTION_STRING") != ""
}
