package server

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/skyrace/internal/core/observability/log"
	"github.com/zeusync/skyrace/internal/core/protocol"
)

type outbound struct {
	binary bool
	data   []byte
}

type input struct {
	client *client
	cmd    protocol.Command
	err    error
}

// client is one websocket connection. The loop goroutine owns send and is
// the only one that closes it.
type client struct {
	id          string
	conn        *websocket.Conn
	send        chan outbound
	connectedAt time.Time
	logger      log.Log
}

func newClient(id string, conn *websocket.Conn, buffer int, logger log.Log) *client {
	return &client{
		id:          id,
		conn:        conn,
		send:        make(chan outbound, buffer),
		connectedAt: time.Now(),
		logger:      logger,
	}
}

// trySend queues msg without blocking and reports whether it fit.
func (c *client) trySend(msg outbound) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// readPump decodes commands until the connection fails, then reports the
// client as gone.
func (c *client) readPump(ctx context.Context, cfg Config, inputs chan<- input, leaves chan<- *client) {
	defer func() {
		select {
		case leaves <- c:
		case <-ctx.Done():
		}
	}()

	pongWait := cfg.PingInterval * 2
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("Connection read failed", log.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind != websocket.TextMessage {
			continue
		}

		cmd, err := protocol.DecodeCommand(data)
		select {
		case inputs <- input{client: c, cmd: cmd, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

// writePump drains send onto the connection and keeps it alive with pings.
// It closes the connection once send is closed or a write fails.
func (c *client) writePump(cfg Config) {
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			kind := websocket.TextMessage
			if msg.binary {
				kind = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(kind, msg.data); err != nil {
				c.logger.Debug("Connection write failed", log.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
