package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink exports events to a topic keyed by outlet so one outlet's
// events stay ordered within a partition.
type KafkaSink struct {
	w   MessageWriter
	log *zap.Logger
}

func NewKafkaWriter(brokers []string, topic string, log *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn("kafka write failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
}

func NewKafkaSink(w MessageWriter, log *zap.Logger) *KafkaSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaSink{w: w, log: log.Named("events.kafka")}
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Deliver(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.OutletID.String()),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	})
}

func (k *KafkaSink) Close() error {
	return k.w.Close()
}
