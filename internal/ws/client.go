package ws

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/suda/leno/internal/broadcast"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds frames read from the client, which is never
	// expected to send application data.
	maxMessageSize = 512
)

// client binds one subscriber to its WebSocket connection.
type client struct {
	hub  *Hub
	sub  *broadcast.Subscriber
	conn *websocket.Conn
}

func newClient(h *Hub, sub *broadcast.Subscriber, conn *websocket.Conn) *client {
	return &client{hub: h, sub: sub, conn: conn}
}

func (c *client) deadline() time.Time {
	return c.hub.opts.Clock.Now().Add(writeTimeout)
}

// writePump forwards queued lines as text frames and sends periodic pings.
// It returns when the subscriber is closed or a write fails, and always
// closes the connection on the way out.
func (c *client) writePump() {
	ticker := c.hub.opts.Clock.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.onClose(c.sub)
		c.conn.Close()
	}()

	for {
		select {
		case <-c.sub.Done():
			if err := c.flush(); err != nil {
				return
			}
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, c.deadline())
			return

		case line := <-c.sub.Queue():
			_ = c.conn.SetWriteDeadline(c.deadline())
			if err := c.conn.WriteMessage(websocket.TextMessage, line.Bytes()); err != nil {
				return
			}

		case <-ticker.Chan():
			if err := c.conn.WriteControl(websocket.PingMessage, nil, c.deadline()); err != nil {
				return
			}
		}
	}
}

// flush writes the lines still queued for a closed subscriber. Deliver has
// already accepted them, so they go out before the close frame.
func (c *client) flush() error {
	for {
		select {
		case line := <-c.sub.Queue():
			_ = c.conn.SetWriteDeadline(c.deadline())
			if err := c.conn.WriteMessage(websocket.TextMessage, line.Bytes()); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// readPump reads frames from the connection to process control messages
// (pong, close) and detect disconnects. It removes the subscriber as soon as
// the connection is gone.
func (c *client) readPump() {
	defer c.hub.onClose(c.sub)

	clock := c.hub.opts.Clock
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(clock.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(clock.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
