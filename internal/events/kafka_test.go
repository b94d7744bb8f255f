package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSinkKeysByOutlet(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w, nil)

	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	err := sink.Deliver(context.Background(), Event{
		Seq:        9,
		Type:       PaymentRecorded,
		OutletID:   77,
		Payload:    map[string]any{"amount": 50000},
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "77", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "payment.recorded", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "payment.recorded", decoded["type"])
	assert.Equal(t, "77", decoded["outlet_id"])

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}
