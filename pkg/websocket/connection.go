package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Connection is one client socket. Its lifecycle is connecting -> bound ->
// closed; a connection whose handshake carried no user identity never binds
// and simply stays unbound until it closes.
type Connection struct {
	ID       string
	UserID   string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
	LastPing time.Time
	IsAlive  bool
	mu       sync.RWMutex
	closed   sync.Once
}

func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			// Origin checks belong to the deployment front, not here.
			return true
		},
		EnableCompression: cfg.EnableCompression,
	}
}

// HandleWebSocket upgrades the request and registers the connection with the
// hub. userID may be empty (degraded, unbound mode).
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	upgrader := newUpgrader(hub.config)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("websocket upgrade failed: %v", err)
		return
	}

	connection := &Connection{
		ID:       generateConnectionID(),
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan []byte, hub.config.MessageBufferSize),
		Hub:      hub,
		LastPing: time.Now(),
		IsAlive:  true,
	}

	hub.register <- connection

	go connection.writePump()
	go connection.readPump()
}

func generateConnectionID() string {
	return "conn_" + uuid.NewString()
}

// readPump decodes inbound envelopes and hands them to the hub. Any read
// error ends the connection and triggers the presence unbind.
func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.closeSocket()
	}()

	c.Conn.SetReadLimit(int64(c.Hub.config.MaxMessageSize))
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("websocket read error: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump writes queued messages and keeps the ping schedule. One envelope
// per frame; receivers rely on frame boundaries.
func (c *Connection) writePump() {
	interval := c.Hub.config.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(time.Duration(float64(interval) * 0.9))
	defer func() {
		ticker.Stop()
		c.closeSocket()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) handleMessage(message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		logrus.Errorf("envelope decode failed: %v", err)
		return
	}
	if env.Event == "" {
		logrus.Warnf("connection %s sent envelope without event", c.ID)
		return
	}
	c.Hub.handleEvent(c, &env)
}

// alive reads the liveness flag under the connection mutex; the heartbeat
// checker flips it from the hub loop while deliveries read it elsewhere.
func (c *Connection) alive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.IsAlive
}

func (c *Connection) setAlive(v bool) {
	c.mu.Lock()
	c.IsAlive = v
	c.mu.Unlock()
}

// closeSocket closes the underlying socket once. Safe on connections that
// never had one (unit tests).
func (c *Connection) closeSocket() {
	c.closed.Do(func() {
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}
