package hub

import (
	"log/slog"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait bounds a single write to the connection.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may go without a pong before
	// it is considered dead. pingPeriod must be shorter.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound messages. Subscribers send nothing
	// but pongs, so this only guards against misbehaving clients.
	maxMessageSize = 64 * 1024
)

// Client is one WebSocket subscriber to a hub feed.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	logger *slog.Logger
	send   chan []byte
}

// NewClient registers a connection with the hub. Call Run to start the
// pumps; the client unregisters itself when the connection ends.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		hub:    hub,
		conn:   conn,
		logger: hub.logger.With("remote", conn.RemoteAddr().String()),
		send:   make(chan []byte, 256),
	}
	hub.register <- c
	return c
}

// Run pumps the connection in both directions and blocks until it
// closes. Call from the WebSocket handler goroutine.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump drains inbound traffic. Subscribers never send data; the
// read loop exists to process pongs and notice disconnection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logger.Debug("subscriber read ended", "error", err)
			return
		}
	}
}

// writePump is the only goroutine that writes to the connection. It
// interleaves broadcast payloads with keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped us; close the WebSocket properly.
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("subscriber write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
