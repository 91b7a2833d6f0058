package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/bazarko/go-supplier-bot/internal/config"
)

func preserveOTelGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func tracingConfig(insecure bool) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    insecure,
		Endpoint:    "localhost:4317",
		ServiceName: "supplier-bot",
		SampleRatio: 1.0,
	}
}

func TestSetupOTel_DisabledIsNoOp(t *testing.T) {
	preserveOTelGlobals(t)

	prevTP := otel.GetTracerProvider()
	cfg := tracingConfig(true)
	cfg.Enabled = false

	shutdown, err := SetupOTel(context.Background(), cfg, "v0.0.0")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	if otel.GetTracerProvider() != prevTP {
		t.Error("disabled tracing replaced the tracer provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown: %v", err)
	}
}

func TestSetupOTel_InstallsProviderAndPropagator(t *testing.T) {
	// Both transport branches: the exporter connects lazily, so neither
	// needs a listening collector.
	for name, insecure := range map[string]bool{"insecure": true, "tls": false} {
		t.Run(name, func(t *testing.T) {
			preserveOTelGlobals(t)

			shutdown, err := SetupOTel(context.Background(), tracingConfig(insecure), "v1.2.3")
			if err != nil {
				t.Fatalf("SetupOTel: %v", err)
			}
			defer func() { _ = shutdown(context.Background()) }()

			if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
				t.Fatalf("tracer provider = %T, want *sdktrace.TracerProvider", otel.GetTracerProvider())
			}

			// Propagation round-trips through a plain map carrier.
			carrier := propagation.MapCarrier{}
			ctx, span := otel.Tracer("setup-test").Start(context.Background(), "registration")
			span.End()
			otel.GetTextMapPropagator().Inject(ctx, carrier)
			if carrier.Get("traceparent") == "" {
				t.Error("traceparent not injected")
			}
			_ = otel.GetTextMapPropagator().Extract(context.Background(), carrier)
		})
	}
}

func TestSetupOTel_SetupErrorsLeaveGlobalsIntact(t *testing.T) {
	for name, breakSeam := range map[string]func(t *testing.T) func(){
		"exporter failure": func(t *testing.T) func() {
			orig := newOTLPExporterFn
			newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("collector unreachable")
			}
			return func() { newOTLPExporterFn = orig }
		},
		"resource failure": func(t *testing.T) func() {
			orig := newServiceResourceFn
			newServiceResourceFn = func(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
				return nil, errors.New("bad service attributes")
			}
			return func() { newServiceResourceFn = orig }
		},
	} {
		t.Run(name, func(t *testing.T) {
			preserveOTelGlobals(t)
			restore := breakSeam(t)
			defer restore()

			prevTP := otel.GetTracerProvider()
			prevProp := otel.GetTextMapPropagator()

			if _, err := SetupOTel(context.Background(), tracingConfig(true), "v0"); err == nil {
				t.Fatal("setup succeeded with a broken seam")
			}
			if otel.GetTracerProvider() != prevTP {
				t.Error("tracer provider replaced despite setup failure")
			}
			if otel.GetTextMapPropagator() != prevProp {
				t.Error("propagator replaced despite setup failure")
			}
		})
	}
}

func TestSetupOTel_ShutdownWithinTimeout(t *testing.T) {
	preserveOTelGlobals(t)

	shutdown, err := SetupOTel(context.Background(), tracingConfig(true), "v1")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
