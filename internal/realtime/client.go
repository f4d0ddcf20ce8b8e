package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Timings bounds how long a connection may stay silent or stall a write
type Timings struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

// DefaultTimings returns the timings used when none are configured
func DefaultTimings() Timings {
	return Timings{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   54 * time.Second,
		MaxMessageSize: 8 * 1024,
	}
}

// Client is one live connection of a user. A user may hold several.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

func newClient(userID string, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		id:     uuid.New().String(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) UserID() string {
	return c.userID
}

// Done is closed once the client is closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether the client has been closed
func (c *Client) Closed() bool {
	return c.closed.Load()
}

// Enqueue queues frame for the write pump without blocking. A client whose
// queue is full is treated as a dead sink: it is closed and false is returned.
func (c *Client) Enqueue(frame []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.Close()
		return false
	}
}

// Close stops the client. The write pump sends a close frame and tears down
// the connection, which in turn ends the read pump.
func (c *Client) Close() {
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
}

func (c *Client) writePump(t Timings) {
	ticker := time.NewTicker(t.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(t.WriteWait),
			)
			return
		}
	}
}

// readPump blocks until the connection fails, goes silent past PongWait, or
// the client is closed.
func (c *Client) readPump(t Timings, handle func(data []byte)) error {
	defer c.Close()

	c.conn.SetReadLimit(t.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(t.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(t.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(t.PongWait))
		handle(data)
	}
}
