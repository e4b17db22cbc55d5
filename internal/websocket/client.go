package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Conn is the subset of *websocket.Conn the pumps use
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Handler consumes the inbound events of one connection
type Handler interface {
	HandleMessage(ctx context.Context, msg IncomingMessage)
	Close()
}

// Client represents a WebSocket client connection bound to one group
type Client struct {
	ID       string
	GroupID  string
	UserName string
	Conn     Conn
	Hub      *Hub
	Send     chan []byte

	handler   Handler
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient creates a new WebSocket client
func NewClient(groupID, userName string, conn Conn, hub *Hub) *Client {
	return &Client{
		ID:       uuid.NewString(),
		GroupID:  groupID,
		UserName: userName,
		Conn:     conn,
		Hub:      hub,
		Send:     make(chan []byte, 256),
		done:     make(chan struct{}),
	}
}

// SetHandler attaches the inbound event handler; call before ReadPump
func (c *Client) SetHandler(h Handler) {
	c.handler = h
}

// ReadPump handles incoming messages from the client until the connection drops
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		if c.handler != nil {
			c.handler.Close()
		}
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "client_id", c.ID, "error", err)
			}
			return
		}

		var incoming IncomingMessage
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.SendMessage(NewMessage(EventError, ErrorPayload{Code: "bad_message", Message: "Malformed message"}))
			continue
		}
		if c.handler != nil {
			c.handler.HandleMessage(ctx, incoming)
		}
	}
}

// WritePump handles outgoing messages to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Warn("websocket write failed", "client_id", c.ID, "error", err)
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues a message for the client. A client that cannot keep up
// is disconnected rather than allowed to block the sender.
func (c *Client) SendMessage(msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
	case c.Send <- data:
	default:
		slog.Warn("websocket client too slow, disconnecting", "client_id", c.ID, "group_id", c.GroupID)
		c.close()
	}
	return nil
}

// close stops the write pump; safe to call more than once
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
