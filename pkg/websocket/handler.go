package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"ridehail/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventHandler receives the lifecycle and inbound events of every client.
type EventHandler interface {
	OnConnect(ctx context.Context, client *Client) error
	OnEvent(ctx context.Context, client *Client, event string, data json.RawMessage)
	OnInvalidFrame(ctx context.Context, client *Client, err error)
	OnDisconnect(client *Client)
}

type Options struct {
	ReadBufferSize   int
	WriteBufferSize  int
	SendBufferSize   int
	MaxMessageSize   int64
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	AllowedOrigins   []string
}

func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

func (o Options) withDefaults() Options {
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 256
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	return o
}

type Handler struct {
	hub      *Hub
	events   EventHandler
	opts     Options
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

func NewHandler(hub *Hub, events EventHandler, opts Options, log *logger.Logger) *Handler {
	opts = opts.withDefaults()
	return &Handler{
		hub:    hub,
		events: events,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   opts.ReadBufferSize,
			WriteBufferSize:  opts.WriteBufferSize,
			HandshakeTimeout: opts.HandshakeTimeout,
			CheckOrigin:      originChecker(opts.AllowedOrigins),
		},
		logger: log.WithComponent("websocket"),
	}
}

// HandleWebSocket upgrades an authenticated request. The auth middleware
// must have set user_id and user_type on the context.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userType, exists := c.Get("user_type")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User type not found"})
		return
	}

	userObjectID, ok := userID.(primitive.ObjectID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	userTypeStr, ok := userType.(string)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user type"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := newClient(h.hub, conn, h.events, h.opts, uuid.NewString(), userObjectID, userTypeStr)
	h.hub.register(client)

	go client.writePump()

	if err := h.events.OnConnect(c.Request.Context(), client); err != nil {
		h.logger.WithSession(client.SessionID).WithError(err).Warn("Session rejected")
		h.hub.unregister(client)
		client.close()
		return
	}

	go client.readPump()
}

func (h *Handler) Hub() *Hub {
	return h.hub
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
