package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ridehail/pkg/logger"
)

var (
	ErrSessionNotFound = errors.New("websocket: session not connected")
	ErrSendBufferFull  = errors.New("websocket: send buffer full")
	ErrSessionClosed   = errors.New("websocket: session closed")
)

// Envelope is the wire format of every frame in both directions.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Hub indexes live clients by session id and delivers events to them.
// Registration is synchronous so a session is addressable as soon as the
// upgrade returns and never after its read loop has exited.
type Hub struct {
	clients map[string]*Client
	mutex   sync.RWMutex
	logger  *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  log.WithComponent("websocket"),
	}
}

func (h *Hub) register(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[client.SessionID] = client
}

func (h *Hub) unregister(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if current, ok := h.clients[client.SessionID]; ok && current == client {
		delete(h.clients, client.SessionID)
	}
}

func (h *Hub) client(sessionID string) (*Client, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	c, ok := h.clients[sessionID]
	return c, ok
}

// EmitToSession queues event for the session without blocking.
func (h *Hub) EmitToSession(ctx context.Context, sessionID, event string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, ok := h.client(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	return client.enqueue(frame)
}

// CloseSession closes the connection of a session. The client's read loop
// then runs its disconnect handling.
func (h *Hub) CloseSession(sessionID string) {
	if client, ok := h.client(sessionID); ok {
		client.close()
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func encodeEnvelope(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}
