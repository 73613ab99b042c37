// Package telemetry configures OpenTelemetry tracing for cablecat.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName is the instrumentation scope of cablecat spans.
const ScopeName = "github.com/macropower/cablecat"

// Exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// ErrUnknownExporter is returned for an unsupported exporter name.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// Options configures [Init].
type Options struct {
	// Writer receives spans from the stdout exporter. Defaults to stderr.
	Writer io.Writer
	// Exporter is one of none, stdout, or otlp.
	// OTEL_TRACES_EXPORTER overrides it.
	Exporter string
	// Endpoint is the OTLP gRPC endpoint.
	// OTEL_EXPORTER_OTLP_ENDPOINT overrides it.
	Endpoint string
	// ServiceVersion is recorded on the resource.
	ServiceVersion string
	// Insecure disables TLS for the OTLP connection.
	Insecure bool
}

// FromEnv returns a copy of o with OTEL_* environment overrides applied.
func (o Options) FromEnv() Options {
	if v := os.Getenv("OTEL_TRACES_EXPORTER"); v != "" {
		o.Exporter = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		o.Endpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"); v != "" {
		o.Insecure = strings.EqualFold(v, "true")
	}

	return o
}

// Init installs a global tracer provider and returns its shutdown
// function. With the none exporter, Init leaves the no-op provider in
// place and shutdown does nothing.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var (
		exporter sdktrace.SpanExporter
		err      error
	)

	switch strings.ToLower(opts.Exporter) {
	case "", ExporterNone:
		return noop, nil

	case ExporterStdout:
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}

		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))

	case ExporterOTLP:
		grpcOpts := []otlptracegrpc.Option{}
		if opts.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}

		exporter, err = otlptracegrpc.New(ctx, grpcOpts...)

	default:
		return noop, fmt.Errorf("%w: %q", ErrUnknownExporter, opts.Exporter)
	}
	if err != nil {
		return noop, fmt.Errorf("create %s exporter: %w", opts.Exporter, err)
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", "cablecat"),
		attribute.String("service.version", opts.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns the cablecat tracer from the global provider.
//
//nolint:ireturn // The otel API returns an interface.
func Tracer() trace.Tracer {
	return otel.Tracer(ScopeName)
}
