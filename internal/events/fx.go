package events

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/kasir/internal/config"
	obsmetrics "github.com/smallbiznis/kasir/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(func(cfg config.Config) *Feed { return NewFeed(cfg.Events.FeedSize) }),
	fx.Provide(provideDispatcher),
	fx.Provide(func(d *Dispatcher) Publisher { return d }),
	fx.Invoke(registerKafkaSink),
	fx.Invoke(registerRedisRelay),
	fx.Invoke(runDispatcher),
)

type dispatcherParams struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Feed       *Feed
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func provideDispatcher(p dispatcherParams) *Dispatcher {
	return NewDispatcher(p.Log, p.Feed, p.Config.Events.QueueSize, p.ObsMetrics)
}

func runDispatcher(lc fx.Lifecycle, d *Dispatcher) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.Run(ctx)
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

func registerKafkaSink(lc fx.Lifecycle, cfg config.Config, d *Dispatcher, log *zap.Logger) {
	if len(cfg.Events.KafkaBrokers) == 0 || cfg.Events.KafkaTopic == "" {
		return
	}
	sink := NewKafkaSink(NewKafkaWriter(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, log), log)
	d.AddRemoteSink(sink)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return sink.Close()
		},
	})
	log.Info("kafka event sink enabled",
		zap.Strings("brokers", cfg.Events.KafkaBrokers),
		zap.String("topic", cfg.Events.KafkaTopic),
	)
}

type relayParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Config     config.Config
	Dispatcher *Dispatcher
	Log        *zap.Logger
	Client     *redis.Client `optional:"true"`
}

func registerRedisRelay(p relayParams) error {
	if p.Client == nil || p.Config.Events.RedisChannel == "" {
		return nil
	}
	relay, err := NewRedisRelay(p.Client, p.Config.Events.RedisChannel, p.Log)
	if err != nil {
		return err
	}
	p.Dispatcher.AddRemoteSink(relay)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := relay.Subscribe(ctx, p.Dispatcher, nil); err != nil {
					p.Log.Error("redis relay stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
	return nil
}
