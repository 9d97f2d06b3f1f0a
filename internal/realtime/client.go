package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nexmo-se/twilio-ec-recording/internal/notifications"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS policy is enforced on the API routes; ws carries no credentials
	},
}

// Client is a single WebSocket subscriber in a room. Each client owns its own
// reconciler so notification transitions depend on what this subscriber has
// observed, not on global state.
type Client struct {
	ID       string
	Room     string
	Identity string
	hub      *Hub
	conn     *websocket.Conn
	send     chan WSMessage
	notifier *notifications.Reconciler
	logger   *zap.Logger
}

// clientCommand is the inbound message shape. Only "dismiss" is recognized.
type clientCommand struct {
	Action string `json:"action"`
}

// ServeWs handles GET /ws?room=name&identity=alice: upgrade, register, pump.
func ServeWs(hub *Hub, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		room := c.Query("room")
		if room == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "room required"})
			return
		}
		identity := c.Query("identity")
		if identity == "" {
			identity = "guest-" + uuid.NewString()[:8]
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:       uuid.NewString(),
			Room:     room,
			Identity: identity,
			hub:      hub,
			conn:     conn,
			send:     make(chan WSMessage, 64),
			notifier: notifications.NewReconciler(),
			logger:   logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// push queues a message for delivery, dropping it when the buffer is full.
func (c *Client) push(msg WSMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		if cmd.Action == "dismiss" {
			c.hub.Dismiss(c)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
