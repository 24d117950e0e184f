package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/bashclaw/bashclaw/pkg/protocol"
)

const (
	clientWriteTimeout = 10 * time.Second
	clientPingInterval = 30 * time.Second
)

// Client wraps one WebSocket connection: a reader goroutine decodes inbound
// RequestFrames and dispatches them through the server's MethodRouter, while
// SendEvent/Reply/ReplyError serialize writes onto a single goroutine so
// concurrent handlers never race on the underlying gorilla/websocket
// connection (it is not safe for concurrent writers).
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server

	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewClient wraps conn for server, assigning it a random connection ID.
func NewClient(conn *websocket.Conn, server *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: server,
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

// ID returns the connection's random ID, used as its event-subscription key.
func (c *Client) ID() string { return c.id }

// Run starts the write pump and reads RequestFrames until the connection
// closes or ctx is cancelled. Blocks until both directions finish.
func (c *Client) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()

	c.readLoop(ctx)
	c.Close()
	wg.Wait()
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req protocol.RequestFrame
		if err := json.Unmarshal(data, &req); err != nil {
			slog.Warn("gateway: malformed request frame", "client", c.id, "error", err)
			continue
		}
		if req.Method == "" {
			continue
		}

		go c.server.router.Dispatch(ctx, c, &req)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(clientPingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) enqueue(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("gateway: encode frame", "client", c.id, "error", err)
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		slog.Warn("gateway: client send buffer full, dropping frame", "client", c.id)
	}
}

// SendEvent pushes an EventFrame to this client.
func (c *Client) SendEvent(event protocol.EventFrame) {
	c.enqueue(event)
}

// Reply sends a successful ResponseFrame for the request with the given id.
func (c *Client) Reply(id string, result interface{}) {
	frame, err := protocol.NewResponseResult(id, result)
	if err != nil {
		c.ReplyError(id, "encode_error", err.Error())
		return
	}
	c.enqueue(frame)
}

// ReplyError sends a failed ResponseFrame for the request with the given id.
func (c *Client) ReplyError(id, code, message string) {
	c.enqueue(protocol.NewResponseError(id, code, message))
}

// Close shuts down the connection and stops the write pump. Safe to call
// more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
