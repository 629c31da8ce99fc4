package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"socialbox/logging"
	"socialbox/models"
	"socialbox/presence"
	"socialbox/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client events.
const (
	ActionJoin        = "join"
	ActionSendMessage = "sendMessage"
	ActionPing        = "ping"
)

// ClientMessage is what a browser sends over the socket.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type sendMessagePayload struct {
	Sender    string `json:"sender" validate:"required"`
	Recipient string `json:"recipient" validate:"required"`
	Text      string `json:"text"`
}

// Client is one authenticated socket. It satisfies presence.Conn.
type Client struct {
	id      string
	userID  string
	handler *Handler
	conn    *websocket.Conn
	send    chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *Client) ID() string {
	return c.id
}

// Send queues payload for the write pump without blocking. It reports false
// when the buffer is full or the client is gone.
func (c *Client) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump runs until the socket fails or closes, then unregisters the client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		if err := c.handler.tracker.Disconnect(context.WithoutCancel(ctx), c.id); err != nil && !errors.Is(err, presence.ErrStopped) {
			logging.Warn().Err(err).Str("conn_id", c.id).Msg("Failed to unregister connection")
		}
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("conn_id", c.id).Msg("WebSocket read error")
			}
			return
		}

		c.handleMessage(ctx, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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

func (c *Client) handleMessage(ctx context.Context, message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("Malformed message")
		return
	}

	switch msg.Event {
	case ActionPing:
		c.sendEvent(presence.Event{Event: presence.EventPong})
	case ActionJoin:
		c.handleJoin(ctx, msg.Data)
	case ActionSendMessage:
		c.handleSendMessage(ctx, msg.Data)
	default:
		c.sendError("Unknown event")
	}
}

func (c *Client) handleJoin(ctx context.Context, data json.RawMessage) {
	var userID string
	if err := json.Unmarshal(data, &userID); err != nil || userID == "" {
		c.sendError("join requires a user id")
		return
	}
	if userID != c.userID {
		c.sendError("You can only join as yourself")
		return
	}
	if err := c.handler.tracker.Join(ctx, c.id, userID); err != nil {
		logging.Error().Err(err).Str("conn_id", c.id).Msg("Failed to join")
		c.sendError("Internal server error")
	}
}

func (c *Client) handleSendMessage(ctx context.Context, data json.RawMessage) {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("Malformed message")
		return
	}
	if err := utils.Validator().Struct(payload); err != nil {
		c.sendError("sender and recipient are required")
		return
	}
	if payload.Sender != c.userID {
		c.sendError("You can only send messages as yourself")
		return
	}

	if _, err := c.handler.messages.SendMessage(ctx, payload.Sender, payload.Recipient, payload.Text); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			c.sendError(appErr.Message)
			return
		}
		logging.Error().Err(err).Str("user_id", c.userID).Msg("Failed to send message")
		c.sendError("Internal server error")
	}
}

func (c *Client) sendError(message string) {
	c.sendEvent(presence.Event{Event: presence.EventError, Data: map[string]string{"message": message}})
}

func (c *Client) sendEvent(ev presence.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.Send(data)
}
