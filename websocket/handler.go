// Package websocket is the realtime transport: it upgrades authenticated
// requests and bridges socket events to the presence tracker and messaging.
package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"socialbox/logging"
	"socialbox/middleware"
	"socialbox/models"
	"socialbox/presence"
)

type MessageSender interface {
	SendMessage(ctx context.Context, senderID, recipientID, text string) (*models.Message, error)
}

type Handler struct {
	tracker    *presence.Tracker
	messages   MessageSender
	sendBuffer int
	upgrader   websocket.Upgrader
}

// NewHandler accepts upgrades from the given origins. "*" allows any origin;
// requests without an Origin header are always allowed.
func NewHandler(tracker *presence.Tracker, messages MessageSender, allowedOrigins []string, sendBuffer int) *Handler {
	originMap := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originMap[origin] = true
	}

	return &Handler{
		tracker:    tracker,
		messages:   messages,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originMap["*"] || originMap[origin]
			},
		},
	}
}

// ServeWS must run behind middleware.AuthMiddleware.
func (h *Handler) ServeWS(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		id:      uuid.New().String(),
		userID:  userID,
		handler: h,
		conn:    conn,
		send:    make(chan []byte, h.sendBuffer),
	}

	ctx := c.Request.Context()
	if err := h.tracker.Connect(ctx, client); err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("Failed to register connection")
		conn.Close()
		return
	}
	logging.Debug().Str("conn_id", client.id).Str("user_id", userID).Msg("WebSocket connected")

	go client.WritePump()
	client.ReadPump(ctx)
}
