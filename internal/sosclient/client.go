package sosclient

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Lifeline/pkg/logger"
	"Lifeline/pkg/websocket"
)

// Client is a websocket client for the emergency service. It implements
// Emitter for outgoing SOS events and dispatches inbound unicast and
// broadcast events to registered handlers.
type Client struct {
	conn *gorillaws.Conn

	writeMu sync.Mutex

	handlerMu sync.RWMutex
	handlers  map[string]func(data json.RawMessage)

	closeOnce sync.Once
	closedCh  chan struct{}
}

// Dial connects to the service at base (http(s) or ws(s) URL). An empty
// userID connects in unbound mode: the server accepts the connection but
// never lists the client as online.
func Dial(base, userID string) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = websocket.RouteWebSocket
	if userID != "" {
		q := u.Query()
		q.Set("userId", userID)
		u.RawQuery = q.Encode()
	}

	conn, _, err := gorillaws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	c := &Client{
		conn:     conn,
		handlers: make(map[string]func(json.RawMessage)),
		closedCh: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// On registers a handler for a named inbound event (newSOS, newSOSVoice,
// newLiveLocation, getOnlineUsers). Must be set up before events arrive.
func (c *Client) On(event string, fn func(data json.RawMessage)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers[event] = fn
}

// Emit sends one named event to the server.
func (c *Client) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(&websocket.Envelope{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(gorillaws.TextMessage, frame)
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env websocket.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logger.Warn("client envelope decode failed", zap.Error(err))
			continue
		}
		c.handlerMu.RLock()
		fn := c.handlers[env.Event]
		c.handlerMu.RUnlock()
		if fn != nil {
			fn(env.Data)
		}
	}
}

// Closed is closed when the connection ends.
func (c *Client) Closed() <-chan struct{} { return c.closedCh }

// Close tears the connection down. Scheduled session timers are not
// cancelled by a closing connection; they run out on their own.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closedCh)
		c.conn.Close()
	})
	return nil
}
