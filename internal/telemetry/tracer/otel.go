package tracer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// DefaultServiceName is used when Config.ServiceName is empty.
const DefaultServiceName = "stashkv"

// Exporter names.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Config configures the tracer provider.
type Config struct {
	ServiceName string
	// Exporter is "none" or "stdout".
	Exporter string
	// Output receives stdout spans; defaults to os.Stdout.
	Output io.Writer
}

// Provider manages the OpenTelemetry tracer provider.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a tracer provider for cfg.
func New(cfg Config) (*Provider, error) {
	switch cfg.Exporter {
	case ExporterNone, "":
		return newProvider(cfg.ServiceName), nil
	case ExporterStdout:
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("tracer: stdout exporter: %w", err)
		}
		return newProvider(cfg.ServiceName, sdktrace.WithBatcher(exp)), nil
	default:
		return nil, fmt.Errorf("tracer: unknown exporter %q", cfg.Exporter)
	}
}

// NewWithProcessor creates a provider that hands spans to sp.
func NewWithProcessor(serviceName string, sp sdktrace.SpanProcessor) *Provider {
	return newProvider(serviceName, sdktrace.WithSpanProcessor(sp))
}

func newProvider(serviceName string, opts ...sdktrace.TracerProviderOption) *Provider {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	opts = append(opts, sdktrace.WithResource(res))
	tp := sdktrace.NewTracerProvider(opts...)
	return &Provider{tp: tp, tracer: tp.Tracer("github.com/yndnr/stashkv")}
}

// Tracer returns the provider's tracer. A nil Provider yields a no-op
// tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return tracenoop.NewTracerProvider().Tracer("noop")
	}
	return p.tracer
}

// StartSpan starts a new span.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// Shutdown flushes pending spans and stops the provider. It is safe to
// call more than once.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.shutdownOnce.Do(func() {
		p.shutdownErr = p.tp.Shutdown(ctx)
	})
	return p.shutdownErr
}
