package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, ev Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return s.err
}

func (s *recordingSink) received() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestDispatcherFansOutToSinks(t *testing.T) {
	feed := NewFeed(10)
	d := NewDispatcher(zap.NewNop(), feed, 8, nil)
	local := &recordingSink{name: "hub"}
	remote := &recordingSink{name: "kafka"}
	failing := &recordingSink{name: "broken", err: errors.New("down")}
	d.AddLocalSink(local)
	d.AddLocalSink(failing)
	d.AddRemoteSink(remote)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Publish(context.Background(), Event{Type: OrderCreated, OutletID: 1})
	d.PublishLocal(context.Background(), Event{Type: OrderStatusChanged, OutletID: 1})

	require.Eventually(t, func() bool { return len(local.received()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	got := local.received()
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, uint64(2), got[1].Seq)
	assert.False(t, got[0].OccurredAt.IsZero())

	// relayed events are not exported again
	require.Len(t, remote.received(), 1)
	assert.Equal(t, OrderCreated, remote.received()[0].Type)

	// a failing sink does not stop the others
	assert.Len(t, failing.received(), 2)

	items, _ := feed.Since(1, 0, 0)
	assert.Len(t, items, 2)
}

func TestDispatcherPublishNeverBlocks(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), NewFeed(10), 1, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Publish(context.Background(), Event{Type: OrderCreated, OutletID: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no consumer running")
	}
	assert.Len(t, d.queue, 1)
}

func TestDispatcherFlushesOnShutdown(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), NewFeed(10), 8, nil)
	sink := &recordingSink{name: "hub"}
	d.AddLocalSink(sink)

	for i := 0; i < 3; i++ {
		d.Publish(context.Background(), Event{Type: OrderCreated, OutletID: 1})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	assert.Len(t, sink.received(), 3)
}
