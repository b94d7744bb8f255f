package observability

import (
	"strings"

	"github.com/smallbiznis/kasir/internal/config"
	"github.com/smallbiznis/kasir/internal/observability/logger"
	"github.com/smallbiznis/kasir/internal/observability/metrics"
	"github.com/smallbiznis/kasir/internal/observability/tracing"
)

const defaultServiceName = "kasir"

// Config is the resolved telemetry setup for one kasir process.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// NewConfig normalises the telemetry section of the application config.
// Exporters stay off until an endpoint is configured.
func NewConfig(cfg config.Config) Config {
	t := cfg.Telemetry

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	endpoint := strings.TrimSpace(t.OtlpEndpoint)

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.ToLower(strings.TrimSpace(cfg.Environment)),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             normalizeLevel(t.LogLevel),
		LogFormat:            normalizeFormat(t.LogFormat),
		OtelEnabled:          t.OtelEnabled && endpoint != "",
		OtelExporterEndpoint: endpoint,
		OtelExporterProtocol: normalizeProtocol(t.OtlpProtocol),
		OtelSamplingRatio:    clampRatio(t.SamplingRatio),
	}
}

func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch c.Environment {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func (c Config) logger() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               c.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

func (c Config) metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug", "info", "warn", "error":
		return level
	case "warning":
		return "warn"
	default:
		return "info"
	}
}

func normalizeFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return "console"
	}
	return "json"
}

func normalizeProtocol(protocol string) string {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		return "http"
	default:
		return "grpc"
	}
}

func clampRatio(ratio float64) float64 {
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	default:
		return ratio
	}
}
