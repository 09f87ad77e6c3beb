package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Client is one live websocket session.
type Client struct {
	SessionID string
	UserID    primitive.ObjectID
	UserType  string

	hub       *Hub
	conn      *websocket.Conn
	events    EventHandler
	opts      Options
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, events EventHandler, opts Options, sessionID string, userID primitive.ObjectID, userType string) *Client {
	return &Client{
		SessionID: sessionID,
		UserID:    userID,
		UserType:  userType,
		hub:       hub,
		conn:      conn,
		events:    events,
		opts:      opts,
		send:      make(chan []byte, opts.SendBufferSize),
		done:      make(chan struct{}),
	}
}

func (c *Client) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrSessionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrSessionClosed
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump handles inbound frames one at a time, so events of a session are
// processed in arrival order. Disconnect handling finishes before it returns.
func (c *Client) readPump() {
	log := c.hub.logger.WithSession(c.SessionID)
	defer func() {
		c.events.OnDisconnect(c)
		c.hub.unregister(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("WebSocket read error")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			c.events.OnInvalidFrame(context.Background(), c, err)
			continue
		}
		c.events.OnEvent(context.Background(), c, env.Event, env.Data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
