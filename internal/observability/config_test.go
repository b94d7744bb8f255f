package observability

import (
	"testing"

	"github.com/smallbiznis/kasir/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewConfigNormalisesTelemetry(t *testing.T) {
	cfg := NewConfig(config.Config{
		Environment: "Production",
		AppVersion:  " 1.2.0 ",
		Telemetry: config.TelemetryConfig{
			LogLevel:      "WARNING",
			LogFormat:     "text",
			OtelEnabled:   true,
			OtlpEndpoint:  "otel-collector:4318",
			OtlpProtocol:  "http/protobuf",
			SamplingRatio: 3,
		},
	})

	assert.Equal(t, "kasir", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())

	assert.Equal(t, cfg.OtelExporterProtocol, cfg.tracing().ExporterProtocol)
	assert.Equal(t, cfg.ServiceName, cfg.metrics().ServiceName)
	assert.False(t, cfg.logger().IncludeStackOnError)
}

func TestNewConfigDisablesExportWithoutEndpoint(t *testing.T) {
	cfg := NewConfig(config.Config{
		AppName:     "kasir-outlet",
		Environment: "development",
		Telemetry:   config.TelemetryConfig{OtelEnabled: true, SamplingRatio: -1},
	})

	assert.Equal(t, "kasir-outlet", cfg.ServiceName)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Zero(t, cfg.OtelSamplingRatio)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Debug())
}
