package push

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxInboundFrame = 512

// ConnOptions tunes buffering and keepalive.
type ConnOptions struct {
	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration
}

func (o ConnOptions) withDefaults() ConnOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
}

// Conn is a websocket Client. Only the write pump writes to the socket.
type Conn struct {
	id     string
	userID int64
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	opts   ConnOptions
	logger *slog.Logger
}

// NewConn wraps an upgraded websocket. Serve starts its pumps.
func NewConn(ws *websocket.Conn, userID int64, opts ConnOptions, logger *slog.Logger) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, opts.SendBuffer),
		done:   make(chan struct{}),
		opts:   opts,
		logger: logger,
	}
}

func (c *Conn) ID() string    { return c.id }
func (c *Conn) UserID() int64 { return c.userID }

// Enqueue queues payload without blocking and reports false when the buffer is full.
func (c *Conn) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close asks the write pump to send a close frame and tear the socket down.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.done) })
}

// Serve registers the connection, runs both pumps and blocks until the peer goes away.
func (c *Conn) Serve(registry *Registry) {
	registry.Register(c)
	defer func() {
		registry.Unregister(c)
		c.Close()
	}()

	go c.writePump()
	c.readPump()
}

// readPump discards inbound frames; it exists to process control frames and notice disconnects.
func (c *Conn) readPump() {
	pongWait := c.opts.PingInterval * 2
	c.ws.SetReadLimit(maxInboundFrame)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("push connection read error", "conn_id", c.id, "error", err)
			}
			return
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteTimeout))
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
