package realtime

import (
	"context"
	"encoding/json"

	"github.com/smallbiznis/kasir/internal/events"
)

// HubSink feeds dispatched events into the hub.
type HubSink struct {
	hub *Hub
}

func NewHubSink(hub *Hub) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "hub" }

func (s *HubSink) Deliver(_ context.Context, ev events.Event) error {
	if !s.hub.HasRoom(ev.OutletID) {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.hub.Broadcast(ev.OutletID, payload)
}
