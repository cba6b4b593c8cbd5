// Package client provides a websocket client SDK for the skyrace server. It
// drives the human player with input commands and decodes the state the
// server streams back.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/skyrace/internal/core/observability/log"
	"github.com/zeusync/skyrace/internal/core/protocol"
)

// Client represents a skyrace client connection
type Client struct {
	conn   *websocket.Conn
	config Config
	logger log.Log
	json   protocol.JSONCodec

	// Event handlers
	messageHandlers map[string][]MessageHandler
	tileHandlers    []TileHandler
	handlerMutex    sync.RWMutex

	writeMu sync.Mutex
	hello   atomic.Pointer[protocol.Hello]

	// Lifecycle
	running atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
}

// Config holds configuration for the client
type Config struct {
	// URL of the server websocket endpoint, e.g. ws://127.0.0.1:8080/ws.
	URL   string
	Token string

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	LogLevel log.Level
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		URL:          "ws://127.0.0.1:8080/ws",
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		LogLevel:     log.LevelInfo,
	}
}

// MessageHandler handles one JSON message from the server.
type MessageHandler func(env protocol.Envelope) error

// TileHandler handles tile arrivals and evictions.
type TileHandler func(frame protocol.TileFrame) error

// Dial connects to the server. Handlers may be registered before Run.
func Dial(ctx context.Context, config Config) (*Client, error) {
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if config.Token != "" {
		q := u.Query()
		q.Set("token", config.Token)
		u.RawQuery = q.Encode()
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = config.DialTimeout

	logger := log.New(config.LogLevel).With(log.String("component", "client"))
	logger.Info("Connecting to server", log.String("url", config.URL))

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: status %d: %v", ErrDialFailed, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	return &Client{
		conn:            conn,
		config:          config,
		logger:          logger,
		messageHandlers: make(map[string][]MessageHandler),
		done:            make(chan struct{}),
	}, nil
}

// OnMessage registers a handler for a server message type.
func (c *Client) OnMessage(msgType string, handler MessageHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.messageHandlers[msgType] = append(c.messageHandlers[msgType], handler)
}

// OnTile registers a handler for binary tile frames.
func (c *Client) OnTile(handler TileHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.tileHandlers = append(c.tileHandlers, handler)
}

// Hello returns the join snapshot once it has arrived.
func (c *Client) Hello() (protocol.Hello, bool) {
	h := c.hello.Load()
	if h == nil {
		return protocol.Hello{}, false
	}
	return *h, true
}

// Run reads and dispatches messages until ctx is cancelled or the server
// closes the connection. Handlers run on the calling goroutine.
func (c *Client) Run(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.closed.Load() ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}

		switch kind {
		case websocket.TextMessage:
			c.handleMessage(data)
		case websocket.BinaryMessage:
			c.handleTile(data)
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var env protocol.Envelope
	if err := c.json.Decode(data, &env); err != nil {
		c.logger.Warn("Dropping malformed message", log.Error(err))
		return
	}
	if env.Type == protocol.MessageHello {
		var h protocol.Hello
		if err := env.Into(&h); err == nil {
			c.hello.Store(&h)
		}
	}

	c.handlerMutex.RLock()
	handlers := c.messageHandlers[env.Type]
	c.handlerMutex.RUnlock()
	for _, h := range handlers {
		if err := h(env); err != nil {
			c.logger.Warn("Message handler failed", log.String("type", env.Type), log.Error(err))
		}
	}
}

func (c *Client) handleTile(data []byte) {
	frame, err := protocol.DecodeTile(data)
	if err != nil {
		c.logger.Warn("Dropping malformed tile", log.Error(err))
		return
	}

	c.handlerMutex.RLock()
	handlers := c.tileHandlers
	c.handlerMutex.RUnlock()
	for _, h := range handlers {
		if err := h(frame); err != nil {
			c.logger.Warn("Tile handler failed", log.String("tile", frame.Coord.String()), log.Error(err))
		}
	}
}

// Send validates and writes one command.
func (c *Client) Send(cmd protocol.Command) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := cmd.Validate(); err != nil {
		return err
	}
	data, err := c.json.Encode(cmd)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return nil
}

func (c *Client) Press(control string) error {
	return c.Send(protocol.Command{Type: protocol.CommandPress, Control: control})
}

func (c *Client) Release(control string) error {
	return c.Send(protocol.Command{Type: protocol.CommandRelease, Control: control})
}

// Look turns the player; the server ignores it until Lock(true).
func (c *Client) Look(dx, dy float64) error {
	return c.Send(protocol.Command{Type: protocol.CommandLook, DX: dx, DY: dy})
}

func (c *Client) Lock(locked bool) error {
	return c.Send(protocol.Command{Type: protocol.CommandLock, Locked: locked})
}

// Reset starts the race, or restarts it from the start poses.
func (c *Client) Reset() error {
	return c.Send(protocol.Command{Type: protocol.CommandReset})
}

func (c *Client) SetView(mode string) error {
	return c.Send(protocol.Command{Type: protocol.CommandView, Mode: mode})
}

func (c *Client) Pause() error {
	return c.Send(protocol.Command{Type: protocol.CommandPause})
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.logger.Info("Closing client")

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// Done is closed when Run returns.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
