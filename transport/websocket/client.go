package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a WebSocket client
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// done is closed when the connection must shut down.
	done      chan struct{}
	closeOnce sync.Once

	// guarded by hub.mu
	subscriptions map[string]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		id:            id,
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, hub.opts.SendBuffer),
		done:          make(chan struct{}),
		subscriptions: make(map[string]struct{}),
	}
}

// ID returns the connection id
func (c *Client) ID() string {
	return c.id
}

// enqueue queues data for the write pump without blocking. A client whose
// buffer is full is closed.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		c.hub.logger.Warn().Str("connectionId", c.id).Msg("Send buffer full, closing client")
		c.close()
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) sendError(message string) {
	c.enqueue(mustMarshal(ServerFrame{Type: FrameError, Message: message}))
}

// readPump pumps frames from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.close()
		c.conn.Close()
		c.hub.logger.Info().Str("connectionId", c.id).Msg("Client disconnected")
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Err(err).Str("connectionId", c.id).Msg("WebSocket error")
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.hub.logger.Debug().Err(err).Str("connectionId", c.id).Msg("Malformed frame")
			c.sendError("malformed frame")
			continue
		}
		frame.Payload = frame.Body()
		c.hub.dispatch(c, frame)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
