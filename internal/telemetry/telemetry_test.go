package telemetry

import (
	"context"
	"testing"

	"ilnpnode/internal/config"
	"ilnpnode/internal/domain"
)

func TestNodeAttributesTagsLocatorAndID(t *testing.T) {
	attrs := NodeAttributes("ilnp.node", domain.Address{Loc: 7, ID: 3})
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "ilnp.node.locator" || attrs[1].Key != "ilnp.node.id" {
		t.Fatalf("unexpected attribute keys: %v", attrs)
	}
}

func TestInitTracerDisabledIsNoop(t *testing.T) {
	cfg := config.TelemetryConfig{Tracing: config.TracingConfig{Enabled: false}}
	shutdown := InitTracer(cfg, "ilnpnode-test", domain.Address{Loc: 1, ID: 1})
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("expected no-op shutdown to succeed, got %v", err)
	}
}

func TestInitTracerStdoutExporterReturnsWorkingShutdown(t *testing.T) {
	cfg := config.TelemetryConfig{Tracing: config.TracingConfig{Enabled: true, Exporter: "stdout"}}
	shutdown := InitTracer(cfg, "ilnpnode-test", domain.Address{Loc: 1, ID: 1})
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("expected stdout exporter shutdown to succeed, got %v", err)
	}
}
