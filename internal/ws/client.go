package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 128
)

// Inbound event types.
const (
	TypeMessage           = "message"
	TypeStartConversation = "start_conversation"
	TypeTyping            = "typing"
	TypeStopTyping        = "stop_typing"
)

// Envelope is one inbound client event.
type Envelope struct {
	Type           string `json:"type"`
	ConversationID int    `json:"conversationId,omitempty"`
	Content        string `json:"content,omitempty"`
	RecipientID    int    `json:"recipientId,omitempty"`
}

// EventHandler consumes decoded inbound envelopes, one at a time per
// connection.
type EventHandler interface {
	HandleEvent(senderID int, env Envelope)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is a single websocket session. Outbound writes go through a buffered
// channel drained by the write pump so a slow peer never blocks a sender.
type Client struct {
	id       string
	userID   int
	conn     *websocket.Conn
	send     chan []byte
	registry *Registry
	handler  EventHandler
	once     sync.Once
	done     chan struct{}
}

func (c *Client) ID() string  { return c.id }
func (c *Client) UserID() int { return c.userID }

func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Push enqueues payload for delivery. A full buffer means the peer has
// stalled past the bounded backlog, so the session is closed instead of
// blocking the caller.
func (c *Client) Push(payload []byte) error {
	select {
	case <-c.done:
		return errors.New("session closed")
	case c.send <- payload:
		return nil
	default:
		c.Close()
		return errors.New("send buffer full")
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// ServeWS upgrades the request and runs the session for an already
// authenticated user. The credential presented in the Sec-WebSocket-Protocol
// header is echoed back as the accepted subprotocol.
func ServeWS(registry *Registry, handler EventHandler, w http.ResponseWriter, r *http.Request, userID int) {
	var respHeader http.Header
	if proto := r.Header.Get("Sec-WebSocket-Protocol"); proto != "" {
		respHeader = http.Header{"Sec-WebSocket-Protocol": {proto}}
	}

	conn, err := upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		id:       uuid.NewString(),
		userID:   userID,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		registry: registry,
		handler:  handler,
		done:     make(chan struct{}),
	}
	registry.Register(client)

	go client.writePump()
	go client.readPump()
}

// readPump decodes one envelope at a time and dispatches it. Unregister is
// deferred so every exit path removes the session before the transport is
// torn down.
func (c *Client) readPump() {
	defer func() {
		c.registry.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error (user %d): %v", c.userID, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("invalid envelope from user %d: %v", c.userID, err)
			continue
		}
		c.handler.HandleEvent(c.userID, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
