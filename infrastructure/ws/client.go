// Package ws binds one WebSocket connection to the router: the connection is
// the identity's delivery channel while it lives, and its close is the
// disconnect signal.
package ws

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/router"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024
)

// frame is the outbound wire shape: the event name plus its payload.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inbound is what a connected client may send: a recipient (empty for group
// scope) and a body.
type inbound struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// Client owns one live connection. It implements contract.EventSink through
// a buffered channel; a full buffer means the slow connection drops the
// event, never that the publisher blocks.
var _ contract.EventSink = (*Client)(nil)

type Client struct {
	id       uuid.UUID
	username string
	conn     *websocket.Conn
	router   *router.Router
	log      *slog.Logger
	events   chan frame
}

func NewClient(log *slog.Logger, conn *websocket.Conn, r *router.Router,
	username string, bufferSize int) *Client {
	return &Client{
		id:       uuid.New(),
		username: username,
		conn:     conn,
		router:   r,
		log:      log,
		events:   make(chan frame, bufferSize),
	}
}

// Consume is called by the router's fanout. It never blocks: either the
// event fits the buffer or it is dropped for this connection only.
func (c *Client) Consume(ctx context.Context, e event.DomainEvent) error {
	f := frame{Event: e.Name(), Data: e}
	if _, ok := e.(event.GroupCleared); ok {
		f.Data = nil
	}
	select {
	case c.events <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("connection %s buffer full", c.id)
	}
}

// Serve registers the identity as online, pumps frames in both directions
// and guarantees the disconnect signal fires exactly once the connection
// dies, however it dies.
func (c *Client) Serve(ctx context.Context) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.router.Connect(connCtx, c.username, c)
	defer c.router.Disconnect(context.WithoutCancel(ctx), c.username)

	go c.writePump(connCtx)
	c.readPump(connCtx)
}

// readPump executes all reads for the connection. It returns when the peer
// goes away, which unwinds Serve and triggers the disconnect flow.
func (c *Client) readPump(ctx context.Context) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("connection closed abruptly", "user", c.username, "error", err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("ignoring malformed frame", "user", c.username, "error", err)
			continue
		}
		c.router.SubmitMessage(ctx, c.username, msg.Recipient, msg.Message)
	}
}

// writePump executes all writes for the connection: queued events and
// keepalive pings. A write error closes the connection, which ends readPump
// too.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-c.events:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.log.Debug("write failed", "user", c.username, "error", err)
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
