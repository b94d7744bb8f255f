package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type relayMessage struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisRelay shares events between API instances so every instance's hub
// can reach the clients connected to it.
type RedisRelay struct {
	client   *redis.Client
	channel  string
	instance string
	log      *zap.Logger
}

func NewRedisRelay(client *redis.Client, channel string, log *zap.Logger) (*RedisRelay, error) {
	if client == nil {
		return nil, errors.New("redis client not configured")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return nil, errors.New("redis channel is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisRelay{
		client:   client,
		channel:  channel,
		instance: uuid.NewString(),
		log:      log.Named("events.redis"),
	}, nil
}

func (r *RedisRelay) Name() string { return "redis" }

func (r *RedisRelay) Deliver(ctx context.Context, ev Event) error {
	// the receiving instance stamps its own Seq
	ev.Seq = 0
	data, err := json.Marshal(relayMessage{Origin: r.instance, Event: ev})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Subscribe forwards events published by other instances to d until ctx is
// done. ready is closed once the subscription is confirmed.
func (r *RedisRelay) Subscribe(ctx context.Context, d *Dispatcher, ready chan<- struct{}) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var in relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &in); err != nil {
				r.log.Warn("invalid relay message", zap.Error(err))
				continue
			}
			if in.Origin == r.instance {
				continue
			}
			d.PublishLocal(ctx, in.Event)
		}
	}
}
