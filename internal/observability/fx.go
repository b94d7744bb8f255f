package observability

import (
	"github.com/smallbiznis/kasir/internal/observability/logger"
	"github.com/smallbiznis/kasir/internal/observability/metrics"
	"github.com/smallbiznis/kasir/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		NewConfig,
		Config.logger,
		logger.New,
		Config.tracing,
		tracing.NewProvider,
		Config.metrics,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
