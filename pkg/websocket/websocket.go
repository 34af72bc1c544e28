package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"Lifeline/internal/models"
	"Lifeline/pkg/metrics"
)

// EmergencyStore is the narrow save contract the hub consumes. The store is
// the system of record; live delivery is best-effort on top of it.
type EmergencyStore interface {
	Save(ctx context.Context, rec *models.Emergency) error
}

// AudioArchiver optionally mirrors voice clips to object storage after a
// successful durable write. It never gates persistence or delivery.
type AudioArchiver interface {
	Archive(ctx context.Context, recordID uint, clip []byte)
}

// Hub owns every connection and the presence registry. Connect, disconnect
// and presence mutations are serialized on the run loop; SOS event handling
// (persist, resolve, deliver) runs off the loop so a slow write never blocks
// other connections.
type Hub struct {
	presence    *Presence
	connections map[string]*Connection
	register    chan *Connection
	unregister  chan *Connection

	store    EmergencyStore
	archiver AudioArchiver

	connectionCount int64
	config          *Config

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates and starts a hub persisting through store.
func NewHub(config *Config, store EmergencyStore) *Hub {
	if config == nil {
		config = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())

	hub := &Hub{
		presence:    NewPresence(),
		connections: make(map[string]*Connection),
		register:    make(chan *Connection, 256),
		unregister:  make(chan *Connection, 256),
		store:       store,
		config:      config,
		ctx:         ctx,
		cancel:      cancel,
	}

	go hub.run()
	return hub
}

// SetAudioArchiver installs the optional voice clip archiver.
func (h *Hub) SetAudioArchiver(a AudioArchiver) { h.archiver = a }

// Presence exposes the registry for read-only use (stats, tests).
func (h *Hub) Presence() *Presence { return h.presence }

func (h *Hub) run() {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case conn := <-h.register:
			h.registerConnection(conn)
		case conn := <-h.unregister:
			h.unregisterConnection(conn)
		case <-ticker.C:
			h.checkHeartbeats()
		}
	}
}

// registerConnection accepts a connection and, when the handshake carried a
// user identity, binds it in the presence registry. A connection without a
// user identity stays connected but unbound.
func (h *Hub) registerConnection(conn *Connection) {
	if atomic.LoadInt64(&h.connectionCount) >= h.config.MaxConnections {
		logrus.Warnf("connection limit reached: %d", h.config.MaxConnections)
		conn.closeSocket()
		return
	}

	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()
	atomic.AddInt64(&h.connectionCount, 1)
	metrics.ConnectionsSet(float64(atomic.LoadInt64(&h.connectionCount)))

	if conn.UserID != "" {
		h.presence.Bind(conn.UserID, conn.ID)
	}
	h.broadcastOnlineUsers()

	logrus.Infof("connection registered: %s, user: %s, connections: %d",
		conn.ID, conn.UserID, atomic.LoadInt64(&h.connectionCount))
}

// unregisterConnection tears a connection down and unbinds its presence
// entry. The unbind is keyed by the handshake user identity, matching Unbind
// semantics.
func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	_, exists := h.connections[conn.ID]
	if exists {
		delete(h.connections, conn.ID)
	}
	h.mu.Unlock()
	if !exists {
		return
	}

	atomic.AddInt64(&h.connectionCount, -1)
	metrics.ConnectionsSet(float64(atomic.LoadInt64(&h.connectionCount)))
	// Send is never closed: in-flight deliveries racing the teardown drop on
	// the buffer instead of hitting a closed channel. writePump exits through
	// the closed socket.
	conn.closeSocket()

	if conn.UserID != "" {
		h.presence.Unbind(conn.UserID)
	}
	h.broadcastOnlineUsers()

	logrus.Infof("connection unregistered: %s, connections: %d",
		conn.ID, atomic.LoadInt64(&h.connectionCount))
}

// broadcastOnlineUsers pushes the full set of bound user identities to every
// connection, bound or not.
func (h *Hub) broadcastOnlineUsers() {
	data, err := marshalEnvelope(EventGetOnlineUsers, h.presence.List())
	if err != nil {
		logrus.Errorf("online users marshal failed: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.connections {
		if conn.alive() {
			h.trySend(conn, data, func() {
				logrus.Warnf("connection %s send buffer full, presence update dropped", conn.ID)
			})
		}
	}
}

// deliver resolves the receiver's connection and unicasts the event to it.
// An unbound receiver is not an error: the event is dropped and only noted.
func (h *Hub) deliver(receiverID, event string, payload interface{}) {
	connID, ok := h.presence.Resolve(receiverID)
	if !ok {
		logrus.Infof("receiver %s not online, %s dropped", receiverID, event)
		metrics.DeliveryMiss(event)
		return
	}

	h.mu.RLock()
	conn, exists := h.connections[connID]
	h.mu.RUnlock()
	if !exists || !conn.alive() {
		logrus.Infof("receiver %s connection %s gone, %s dropped", receiverID, connID, event)
		metrics.DeliveryMiss(event)
		return
	}

	data, err := marshalEnvelope(event, payload)
	if err != nil {
		logrus.Errorf("%s marshal failed: %v", event, err)
		return
	}
	h.trySend(conn, data, func() {
		logrus.Warnf("receiver %s connection %s send buffer full", receiverID, connID)
	})
	metrics.DeliverySent(event)
}

// handleEvent dispatches one inbound event. SOS events leave the reactor
// here: each runs in its own goroutine because the durable write is a
// suspend point.
func (h *Hub) handleEvent(conn *Connection, env *Envelope) {
	metrics.EventReceived(env.Event)
	switch env.Event {
	case EventSOSStart:
		go h.handleSOSStart(env.Data)
	case EventSOSVoice:
		go h.handleSOSVoice(env.Data)
	case EventSendLiveLocation:
		go h.handleLiveLocation(env.Data)
	default:
		logrus.Warnf("unknown event from %s: %s", conn.ID, env.Event)
	}
}

// handleSOSStart persists the alert burst and unicasts newSOS to the
// receiver. Persistence failure suppresses delivery.
func (h *Hub) handleSOSStart(data json.RawMessage) {
	var p SOSStartPayload
	if err := json.Unmarshal(data, &p); err != nil {
		logrus.Errorf("sosStart decode failed: %v", err)
		return
	}
	if p.UserID == "" || p.ReceiverID == "" || p.Text == "" {
		logrus.Errorf("sosStart missing required data: userId, receiverId, or text")
		metrics.EventRejected(EventSOSStart)
		return
	}

	rec := &models.Emergency{
		UserID:     p.UserID,
		ReceiverID: p.ReceiverID,
		Kind:       models.KindAlert,
		Text:       p.Text,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Address:    models.DefaultAddress,
		Timestamp:  timeFromMillis(p.Timestamp),
	}
	if err := h.store.Save(h.ctx, rec); err != nil {
		logrus.Errorf("error saving SOS event: %v", err)
		metrics.PersistenceFailure()
		return
	}

	h.deliver(p.ReceiverID, EventNewSOS, SOSNotification{
		UserID:     p.UserID,
		ReceiverID: p.ReceiverID,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Address:    models.DefaultAddress,
		Timestamp:  p.Timestamp,
		Text:       p.Text,
	})
}

// handleSOSVoice persists the voice clip and unicasts newSOSVoice. Zero
// coordinates are treated as missing, matching the inherited validation.
func (h *Hub) handleSOSVoice(data json.RawMessage) {
	var p SOSVoicePayload
	if err := json.Unmarshal(data, &p); err != nil {
		logrus.Errorf("sosVoice decode failed: %v", err)
		return
	}
	if p.UserID == "" || p.ReceiverID == "" || len(p.AudioBlob) == 0 || p.Latitude == 0 || p.Longitude == 0 {
		logrus.Errorf("sosVoice missing required data: userId, receiverId, or audioBlob")
		metrics.EventRejected(EventSOSVoice)
		return
	}

	rec := &models.Emergency{
		UserID:     p.UserID,
		ReceiverID: p.ReceiverID,
		Kind:       models.KindVoice,
		Text:       models.VoiceText,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		AudioBlob:  p.AudioBlob,
		Timestamp:  time.Now(),
	}
	if err := h.store.Save(h.ctx, rec); err != nil {
		logrus.Errorf("error saving SOS voice: %v", err)
		metrics.PersistenceFailure()
		return
	}
	if h.archiver != nil {
		go h.archiver.Archive(h.ctx, rec.ID, p.AudioBlob)
	}

	h.deliver(p.ReceiverID, EventNewSOSVoice, VoiceNotification{
		UserID:    p.UserID,
		AudioBlob: p.AudioBlob,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
	})
}

// handleLiveLocation persists one location sample and unicasts
// newLiveLocation to the receiver.
func (h *Hub) handleLiveLocation(data json.RawMessage) {
	var p LiveLocationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		logrus.Errorf("sendLiveLocation decode failed: %v", err)
		return
	}
	if p.UserID == "" || p.ReceiverID == "" {
		logrus.Errorf("sendLiveLocation missing required data: userId, receiverId")
		metrics.EventRejected(EventSendLiveLocation)
		return
	}

	rec := &models.Emergency{
		UserID:     p.UserID,
		ReceiverID: p.ReceiverID,
		Kind:       models.KindLiveLocation,
		Text:       models.LiveLocationStoreText,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Address:    models.DefaultAddress,
		Timestamp:  timeFromMillis(p.Timestamp),
	}
	if err := h.store.Save(h.ctx, rec); err != nil {
		logrus.Errorf("error saving live location: %v", err)
		metrics.PersistenceFailure()
		return
	}

	h.deliver(p.ReceiverID, EventNewLiveLocation, SOSNotification{
		UserID:     p.UserID,
		ReceiverID: p.ReceiverID,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Address:    models.DefaultAddress,
		Timestamp:  p.Timestamp,
		Text:       models.LiveLocationText,
	})
}

// trySend applies the backpressure policy: drop on full buffer, or wait up
// to SendTimeout when DropOnFull is off.
func (h *Hub) trySend(conn *Connection, data []byte, onDrop func()) {
	if h.config.DropOnFull {
		select {
		case conn.Send <- data:
		default:
			onDrop()
		}
		return
	}
	timeout := h.config.SendTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	select {
	case conn.Send <- data:
	case <-time.After(timeout):
		onDrop()
	}
}

// checkHeartbeats closes connections whose pong is overdue.
func (h *Hub) checkHeartbeats() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	for _, conn := range h.connections {
		conn.mu.RLock()
		last := conn.LastPing
		conn.mu.RUnlock()
		if now.Sub(last) > h.config.ConnectionTimeout {
			logrus.Warnf("connection %s heartbeat timeout", conn.ID)
			conn.setAlive(false)
			conn.closeSocket()
		}
	}
}

// GetConnectionCount returns the number of registered connections.
func (h *Hub) GetConnectionCount() int64 {
	return atomic.LoadInt64(&h.connectionCount)
}

// OnlineUsers returns the currently bound user identities.
func (h *Hub) OnlineUsers() []string {
	return h.presence.List()
}

// Close stops the run loop and closes every connection.
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	for _, conn := range h.connections {
		conn.closeSocket()
	}
	h.mu.Unlock()

	logrus.Info("websocket hub closed")
}

func marshalEnvelope(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Envelope{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func timeFromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}
