// ABOUTME: WebSocket client for the monitor stats feed
// ABOUTME: Reads the session hello, then delivers stats snapshots on a channel
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vbanbridge/vbanbridge-go/internal/protocol"
)

const helloTimeout = 5 * time.Second

// Config holds client configuration
type Config struct {
	// ServerAddr is host:port of the monitor endpoint
	ServerAddr string
	Path       string
	Logger     *logrus.Entry
}

// Client follows one monitor feed
type Client struct {
	config Config
	log    *logrus.Entry
	conn   *websocket.Conn
	mu     sync.Mutex

	// Hello is populated by Connect
	Hello protocol.SessionHello
	Stats chan protocol.SessionStats

	done    chan struct{}
	errMu   sync.Mutex
	err     error
	closeMu sync.Once
}

// NewClient creates a feed client; Connect dials it
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = "/ws"
	}
	if config.Logger == nil {
		config.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		config: config,
		log:    config.Logger.WithField("component", "feed"),
		Stats:  make(chan protocol.SessionStats, 16),
		done:   make(chan struct{}),
	}
}

// Connect dials the monitor and waits for the session hello
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	c.log.WithField("url", u.String()).Debug("Connecting")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to read session/hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	msg, err := protocol.Decode(data)
	if err != nil {
		conn.Close()
		return err
	}
	hello, ok := msg.(protocol.SessionHello)
	if !ok {
		conn.Close()
		return fmt.Errorf("expected %s first", protocol.TypeSessionHello)
	}

	c.mu.Lock()
	c.conn = conn
	c.Hello = hello
	c.mu.Unlock()

	go c.readMessages()
	return nil
}

// readMessages forwards stats until the connection ends. A slow consumer
// loses intermediate snapshots rather than stalling the reader.
func (c *Client) readMessages() {
	defer c.finish()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.setErr(err)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.log.WithError(err).Debug("Ignoring message")
			continue
		}
		stats, ok := msg.(protocol.SessionStats)
		if !ok {
			continue
		}

		select {
		case c.Stats <- stats:
		default:
			select {
			case <-c.Stats:
			default:
			}
			c.Stats <- stats
		}
	}
}

func (c *Client) finish() {
	c.closeMu.Do(func() {
		close(c.done)
	})
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.err = err
}

// Err returns the error that ended the feed, nil for a clean close
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Done is closed when the feed ends
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close ends the feed
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}
