package events

import (
	"context"
	"sync"
	"time"

	obsmetrics "github.com/smallbiznis/kasir/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	DefaultQueueSize = 1024
	deliverTimeout   = 2 * time.Second
)

type envelope struct {
	ev Event
	// local events came from another instance and are not re-exported
	local bool
}

// Dispatcher decouples request handlers from fan-out. Publish never blocks;
// one goroutine drains the queue into the feed and the sinks.
type Dispatcher struct {
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
	feed       *Feed
	queue      chan envelope

	mu     sync.RWMutex
	local  []Sink
	remote []Sink
}

func NewDispatcher(log *zap.Logger, feed *Feed, queueSize int, m *obsmetrics.Metrics) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		log:        log.Named("events.dispatcher"),
		obsMetrics: m,
		feed:       feed,
		queue:      make(chan envelope, queueSize),
	}
}

// AddLocalSink registers a sink fed by both local and relayed events.
func (d *Dispatcher) AddLocalSink(s Sink) {
	d.mu.Lock()
	d.local = append(d.local, s)
	d.mu.Unlock()
}

// AddRemoteSink registers a sink that only sees events raised on this instance.
func (d *Dispatcher) AddRemoteSink(s Sink) {
	d.mu.Lock()
	d.remote = append(d.remote, s)
	d.mu.Unlock()
}

func (d *Dispatcher) Publish(ctx context.Context, ev Event) {
	d.enqueue(ctx, envelope{ev: ev})
}

// PublishLocal is used by the relay for events raised on another instance.
func (d *Dispatcher) PublishLocal(ctx context.Context, ev Event) {
	d.enqueue(ctx, envelope{ev: ev, local: true})
}

func (d *Dispatcher) enqueue(ctx context.Context, env envelope) {
	if d == nil {
		return
	}
	if env.ev.OccurredAt.IsZero() {
		env.ev.OccurredAt = time.Now().UTC()
	}
	select {
	case d.queue <- env:
	default:
		d.log.Warn("event queue full, dropping event",
			zap.String("event_type", string(env.ev.Type)),
			zap.String("outlet_id", env.ev.OutletID.String()),
		)
		d.obsMetrics.RecordEventDropped(ctx, "queue", "queue_full")
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case env := <-d.queue:
					d.dispatch(env)
				default:
					return
				}
			}
		case env := <-d.queue:
			d.dispatch(env)
		}
	}
}

func (d *Dispatcher) dispatch(env envelope) {
	ev := d.feed.Append(env.ev)

	d.mu.RLock()
	sinks := make([]Sink, 0, len(d.local)+len(d.remote))
	sinks = append(sinks, d.local...)
	if !env.local {
		sinks = append(sinks, d.remote...)
	}
	d.mu.RUnlock()

	for _, sink := range sinks {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		err := sink.Deliver(ctx, ev)
		cancel()
		if err != nil {
			d.log.Warn("event delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("event_type", string(ev.Type)),
				zap.String("outlet_id", ev.OutletID.String()),
				zap.Uint64("seq", ev.Seq),
				zap.Error(err),
			)
			d.obsMetrics.RecordEventDropped(context.Background(), sink.Name(), "deliver_failed")
		}
	}
}
