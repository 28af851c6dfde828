package nats

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"libraryconnect.chat/internal/config"
)

// Client owns the broker connection.
type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewClient connects to NATS with reconnect logging.
func NewClient(cfg config.NATSConfig, name string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("disconnected from nats", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to nats", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("nats connection closed")
		}),
		nats.Timeout(10 * time.Second),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, logger: logger}, nil
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// Ping is used by the health checker.
func (c *Client) Ping() error {
	if !c.IsConnected() {
		return nats.ErrConnectionClosed
	}
	return c.conn.FlushTimeout(2 * time.Second)
}

func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close drains pending messages before closing.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}
