package events

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Type string

const (
	OrderCreated           Type = "order.created"
	OrderStatusChanged     Type = "order.status_changed"
	OrderItemStatusChanged Type = "order.item_status_changed"
	PaymentRecorded        Type = "payment.recorded"
	PaymentRefunded        Type = "payment.refunded"
)

// Event is an immutable fact about one outlet. Seq is stamped by the Feed.
type Event struct {
	Seq        uint64       `json:"seq"`
	Type       Type         `json:"type"`
	OutletID   snowflake.ID `json:"outlet_id"`
	Payload    any          `json:"payload"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Publisher accepts events after the originating transaction committed.
// Implementations must not block the caller.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Sink receives every dispatched event.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
