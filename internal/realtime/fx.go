package realtime

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/kasir/internal/config"
	"github.com/smallbiznis/kasir/internal/events"
	obsmetrics "github.com/smallbiznis/kasir/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("realtime",
	fx.Provide(provideHub),
	fx.Invoke(registerHubSink),
	fx.Invoke(runHub),
)

type hubParams struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func provideHub(p hubParams) *Hub {
	return NewHub(p.Log, Config{
		ClientBuffer:  p.Config.Hub.ClientBuffer,
		IngressBuffer: p.Config.Hub.IngressBuffer,
	}, p.ObsMetrics)
}

func registerHubSink(d *events.Dispatcher, hub *Hub) {
	d.AddLocalSink(NewHubSink(hub))
	obsmetrics.RegisterHubGauges(prometheus.DefaultRegisterer, hub)
}

func runHub(lc fx.Lifecycle, hub *Hub) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hub.Run(ctx)
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			wg.Wait()
			return nil
		},
	})
}
