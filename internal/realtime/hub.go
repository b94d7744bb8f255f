package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/smallbiznis/kasir/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	DefaultClientBuffer  = 16
	DefaultIngressBuffer = 256

	evictSlowConsumer = "slow_consumer"
)

var (
	ErrHubBusy    = errors.New("hub_busy")
	ErrHubStopped = errors.New("hub_stopped")
)

type Config struct {
	ClientBuffer  int
	IngressBuffer int
}

type message struct {
	outletID snowflake.ID
	payload  []byte
}

// Hub fans out outlet events to the connections joined to that outlet's
// room. Room membership is owned by the Run goroutine; the mutex only lets
// inspection helpers read a consistent view.
type Hub struct {
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics

	clientBuffer int

	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	stopOnce   sync.Once

	mu    sync.RWMutex
	rooms map[snowflake.ID]map[*Client]struct{}
}

func NewHub(log *zap.Logger, cfg Config, m *obsmetrics.Metrics) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = DefaultClientBuffer
	}
	if cfg.IngressBuffer <= 0 {
		cfg.IngressBuffer = DefaultIngressBuffer
	}
	return &Hub{
		log:          log.Named("realtime.hub"),
		obsMetrics:   m,
		clientBuffer: cfg.ClientBuffer,
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan message, cfg.IngressBuffer),
		done:         make(chan struct{}),
		rooms:        make(map[snowflake.ID]map[*Client]struct{}),
	}
}

// Run owns the rooms until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			h.fanOut(ctx, msg)
		}
	}
}

// Register joins c to its outlet room. It blocks until the hub accepted the
// client or stopped.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues payload for every connection in the outlet room without
// blocking the caller.
func (h *Hub) Broadcast(outletID snowflake.ID, payload []byte) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- message{outletID: outletID, payload: payload}:
		return nil
	default:
		return ErrHubBusy
	}
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, room := range h.rooms {
		total += len(room)
	}
	return total
}

func (h *Hub) HasRoom(outletID snowflake.ID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[outletID]
	return ok
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	room := h.rooms[c.outletID]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[c.outletID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug("client joined",
		zap.String("outlet_id", c.outletID.String()),
		zap.String("client_id", c.id),
	)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	removed := h.detachLocked(c)
	h.mu.Unlock()

	if removed {
		h.log.Debug("client left",
			zap.String("outlet_id", c.outletID.String()),
			zap.String("client_id", c.id),
		)
	}
}

// detachLocked removes c from its room and closes its send queue exactly once.
func (h *Hub) detachLocked(c *Client) bool {
	room := h.rooms[c.outletID]
	if room == nil {
		return false
	}
	if _, ok := room[c]; !ok {
		return false
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.outletID)
	}
	return true
}

func (h *Hub) fanOut(ctx context.Context, msg message) {
	h.mu.Lock()
	var evicted []*Client
	for c := range h.rooms[msg.outletID] {
		select {
		case c.send <- msg.payload:
		default:
			h.detachLocked(c)
			evicted = append(evicted, c)
		}
	}
	h.mu.Unlock()

	for _, c := range evicted {
		h.obsMetrics.RecordHubEviction(ctx, evictSlowConsumer)
		h.log.Warn("transport unresponsive, client evicted",
			zap.String("outlet_id", c.outletID.String()),
			zap.String("client_id", c.id),
			zap.Int("buffer", cap(c.send)),
		)
	}
}

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
	h.mu.Lock()
	for outletID, room := range h.rooms {
		for c := range room {
			close(c.send)
		}
		delete(h.rooms, outletID)
	}
	h.mu.Unlock()
}
