// pkg/telemetry/telemetry.go
package telemetry

import (
	"context"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/xdg"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "regen"

var (
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	sink     *os.File
)

// Init configures OpenTelemetry; call this early in main(). Spans are only
// exported when REGEN_TELEMETRY is set, to a JSONL file in the state dir.
func Init(service string) error {
	if service == "" {
		service = serviceName
	}
	if !IsEnabled() {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		tracer = tp.Tracer(service)
		return nil
	}

	path := xdg.XDGStatePath(xdg.AppID, "telemetry.jsonl")
	if err := xdg.EnsureDir(path); err != nil {
		return cerr.Wrap(err, "failed to create telemetry directory")
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, xdg.FilePermOwnerReadWrite)
	if err != nil {
		return cerr.Wrap(err, "failed to open telemetry file")
	}

	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(file),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		_ = file.Close()
		return cerr.Wrap(err, "failed to create file exporter")
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(sdkresource.NewSchemaless(
			attribute.String("service.name", service),
			attribute.String("host.name", hostname()),
		)),
	)
	sink = file
	otel.SetTracerProvider(provider)
	tracer = provider.Tracer(service)
	return nil
}

// Shutdown flushes pending spans. It is a no-op when telemetry is disabled.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	err := provider.Shutdown(ctx)
	if sink != nil {
		_ = sink.Close()
	}
	provider, sink = nil, nil
	return err
}

// Start a telemetry span with optional attributes.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	t := tracer
	if t == nil {
		t = otel.Tracer(serviceName)
	}
	return t.Start(ctx, name, trace.WithAttributes(attrs...))
}

func IsEnabled() bool {
	switch strings.ToLower(os.Getenv("REGEN_TELEMETRY")) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
