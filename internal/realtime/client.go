package realtime

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one live connection bound to a single outlet room.
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	outletID snowflake.ID
	send     chan []byte
	log      *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, outletID snowflake.ID) *Client {
	id := uuid.NewString()
	return &Client{
		id:       id,
		hub:      hub,
		conn:     conn,
		outletID: outletID,
		send:     make(chan []byte, hub.clientBuffer),
		log:      hub.log.With(zap.String("client_id", id), zap.String("outlet_id", outletID.String())),
	}
}

// Attach registers an upgraded connection with the hub and starts its pumps.
// The pumps own conn from here on.
func (h *Hub) Attach(conn *websocket.Conn, outletID snowflake.ID) (*Client, error) {
	c := newClient(h, conn, outletID)
	if err := h.Register(c); err != nil {
		_ = conn.Close()
		return nil, err
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

// readPump keeps the read deadline alive via pongs and discards anything
// the peer sends.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read failed", zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
