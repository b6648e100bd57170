package wsrelay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client pushes JSON frames to a downstream websocket relay.
// The connection is dialed lazily and re-dialed on the next Publish after a failure.
type Client struct {
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a relay client for url.
func NewClient(url string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// Publish writes v as one JSON text frame.
func (c *Client) Publish(ctx context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return err
		}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	_ = c.conn.SetWriteDeadline(deadline)

	if err := c.conn.WriteJSON(v); err != nil {
		// Drop the broken connection; the next Publish reconnects.
		_ = c.conn.Close()
		c.conn = nil
		c.logger.Warn("relay write failed, connection dropped", zap.String("url", c.url), zap.Error(err))
		return fmt.Errorf("relay write: %w", err)
	}
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.logger.Warn("failed to connect to relay", zap.String("url", c.url), zap.Error(err))
		return fmt.Errorf("relay dial: %w", err)
	}
	c.conn = conn
	c.logger.Info("relay connected", zap.String("url", c.url))

	// Drain control frames so pings and close frames are handled.
	go c.readLoop(conn)
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				c.logger.Debug("relay read loop stopped", zap.Error(err))
			}
			c.mu.Lock()
			if c.conn == conn {
				_ = conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			return
		}
	}
}

// Close closes the current connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
