package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Lifeline/internal/models"
)

// fakeStore records saves in memory, optionally failing every write.
type fakeStore struct {
	mu     sync.Mutex
	saved  []models.Emergency
	nextID uint
	fail   bool
}

func (s *fakeStore) Save(_ context.Context, rec *models.Emergency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("disk full")
	}
	s.nextID++
	rec.ID = s.nextID
	s.saved = append(s.saved, *rec)
	return nil
}

func (s *fakeStore) records() []models.Emergency {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Emergency, len(s.saved))
	copy(out, s.saved)
	return out
}

func testConn(id, userID string) *Connection {
	return &Connection{
		ID:       id,
		UserID:   userID,
		Send:     make(chan []byte, 64),
		LastPing: time.Now(),
		IsAlive:  true,
	}
}

// waitForEvent drains conn.Send until the wanted event shows up. Presence
// broadcasts interleave with unicasts, so callers filter by event name.
func waitForEvent(t *testing.T, conn *Connection, event string) *Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-conn.Send:
			var env Envelope
			require.NoError(t, json.Unmarshal(data, &env))
			if env.Event == event {
				return &env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
			return nil
		}
	}
}

func assertNoEvent(t *testing.T, conn *Connection, event string) {
	t.Helper()
	for {
		select {
		case data := <-conn.Send:
			var env Envelope
			require.NoError(t, json.Unmarshal(data, &env))
			assert.NotEqual(t, event, env.Event)
		case <-time.After(150 * time.Millisecond):
			return
		}
	}
}

func TestNewHubDefaults(t *testing.T) {
	hub := NewHub(nil, &fakeStore{})
	defer hub.Close()

	assert.NotNil(t, hub)
	assert.Equal(t, int64(DefaultMaxConnections), hub.config.MaxConnections)
	assert.Equal(t, DefaultHeartbeatInterval*time.Second, hub.config.HeartbeatInterval)
}

func TestHubConnectionLifecycle(t *testing.T) {
	hub := NewHub(DefaultConfig(), &fakeStore{})
	defer hub.Close()

	conn := testConn("conn_1", "alice")
	hub.register <- conn
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int64(1), hub.GetConnectionCount())
	assert.Equal(t, []string{"alice"}, hub.OnlineUsers())

	hub.unregister <- conn
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int64(0), hub.GetConnectionCount())
	assert.Empty(t, hub.OnlineUsers())
}

func TestHubUnboundConnection(t *testing.T) {
	hub := NewHub(DefaultConfig(), &fakeStore{})
	defer hub.Close()

	conn := testConn("conn_1", "")
	hub.register <- conn
	time.Sleep(100 * time.Millisecond)

	// connected but never bound
	assert.Equal(t, int64(1), hub.GetConnectionCount())
	assert.Empty(t, hub.OnlineUsers())

	// unbound connections still receive presence broadcasts
	env := waitForEvent(t, conn, EventGetOnlineUsers)
	var users []string
	require.NoError(t, json.Unmarshal(env.Data, &users))
	assert.Empty(t, users)
}

func TestHubPresenceBroadcastOnJoin(t *testing.T) {
	hub := NewHub(DefaultConfig(), &fakeStore{})
	defer hub.Close()

	alice := testConn("conn_a", "alice")
	hub.register <- alice
	time.Sleep(50 * time.Millisecond)

	bob := testConn("conn_b", "bob")
	hub.register <- bob
	time.Sleep(100 * time.Millisecond)

	// the broadcast that includes bob reaches the earlier connection too
	for {
		env := waitForEvent(t, alice, EventGetOnlineUsers)
		var users []string
		require.NoError(t, json.Unmarshal(env.Data, &users))
		if len(users) == 2 {
			assert.Equal(t, []string{"alice", "bob"}, users)
			return
		}
	}
}

func TestSOSStartPersistsThenDelivers(t *testing.T) {
	store := &fakeStore{}
	hub := NewHub(DefaultConfig(), store)
	defer hub.Close()

	receiver := testConn("conn_r", "guardian")
	hub.register <- receiver
	time.Sleep(100 * time.Millisecond)

	payload, _ := json.Marshal(SOSStartPayload{
		UserID:     "alice",
		ReceiverID: "guardian",
		Latitude:   48.8584,
		Longitude:  2.2945,
		Timestamp:  1700000000000,
		Text:       models.AlertText,
	})
	hub.handleSOSStart(payload)

	records := store.records()
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].UserID)
	assert.Equal(t, "guardian", records[0].ReceiverID)
	assert.Equal(t, models.KindAlert, records[0].Kind)
	assert.Equal(t, models.AlertText, records[0].Text)
	assert.Equal(t, models.DefaultAddress, records[0].Address)
	assert.Equal(t, time.UnixMilli(1700000000000), records[0].Timestamp)

	env := waitForEvent(t, receiver, EventNewSOS)
	var note SOSNotification
	require.NoError(t, json.Unmarshal(env.Data, &note))
	assert.Equal(t, "alice", note.UserID)
	assert.Equal(t, 48.8584, note.Latitude)
	assert.Equal(t, 2.2945, note.Longitude)
	assert.Equal(t, models.DefaultAddress, note.Address)
	assert.Equal(t, models.AlertText, note.Text)
	assert.Equal(t, int64(1700000000000), note.Timestamp)
}

func TestSOSStartRejectsMissingFields(t *testing.T) {
	store := &fakeStore{}
	hub := NewHub(DefaultConfig(), store)
	defer hub.Close()

	receiver := testConn("conn_r", "guardian")
	hub.register <- receiver
	time.Sleep(100 * time.Millisecond)

	cases := []SOSStartPayload{
		{ReceiverID: "guardian", Text: models.AlertText},
		{UserID: "alice", Text: models.AlertText},
		{UserID: "alice", ReceiverID: "guardian"},
	}
	for _, p := range cases {
		payload, _ := json.Marshal(p)
		hub.handleSOSStart(payload)
	}

	assert.Empty(t, store.records())
	assertNoEvent(t, receiver, EventNewSOS)
}

func TestSOSStartOfflineReceiverStillPersists(t *testing.T) {
	store := &fakeStore{}
	hub := NewHub(DefaultConfig(), store)
	defer hub.Close()

	payload, _ := json.Marshal(SOSStartPayload{
		UserID:     "alice",
		ReceiverID: "nobody",
		Text:       models.AlertText,
	})
	hub.handleSOSStart(payload)

	// the durable write happens regardless of delivery
	require.Len(t, store.records(), 1)
	assert.Equal(t, "nobody", store.records()[0].ReceiverID)
}

func TestPersistenceFailureSuppressesDelivery(t *testing.T) {
	store := &fakeStore{fail: true}
	hub := NewHub(DefaultConfig(), store)
	defer hub.Close()

	receiver := testConn("conn_r", "guardian")
	hub.register <- receiver
	time.Sleep(100 * time.Millisecond)

	payload, _ := json.Marshal(SOSStartPayload{
		UserID:     "alice",
		ReceiverID: "guardian",
		Text:       models.AlertText,
	})
	hub.handleSOSStart(payload)

	assertNoEvent(t, receiver, EventNewSOS)
}

func TestSOSVoiceDelivery(t *testing.T) {
	store := &fakeStore{}
	hub := NewHub(DefaultConfig(), store)
	defer hub.Close()

	receiver := testConn("conn_r", "guardian")
	hub.register <- receiver
	time.Sleep(100 * time.Millisecond)

	clip := []byte("RIFF....WAVEfmt ")
	payload, _ := json.Marshal(SOSVoicePayload{
		UserID:     "alice",
		ReceiverID: "guardian",
		AudioBlob:  clip,
		Latitude:   48.8584,
		Longitude:  2.2945,
	})
	hub.handleSOSVoice(payload)

	records := store.records()
	require.Len(t, records, 1)
	assert.Equal(t, models.KindVoice, records[0].Kind)
	assert.Equal(t, models.VoiceText, records[0].Text)
	assert.Equal(t, clip, records[0].AudioBlob)

	env := waitForEvent(t, receiver, EventNewSOSVoice)
	var note VoiceNotification
	require.NoError(t, json.Unmarshal(env.Data, &note))
	assert.Equal(t, "alice", note.UserID)
	assert.Equal(t, clip, note.AudioBlob)
	assert.Equal(t, 48.8584, note.Latitude)
}

func TestSOSVoiceRejectsZeroCoordinates(t *testing.T) {
	store := &fakeStore{}
	hub := NewHub(DefaultConfig(), store)
	defer hub.Close()

	receiver := testConn("conn_r", "guardian")
	hub.register <- receiver
	time.Sleep(100 * time.Millisecond)

	payload, _ := json.Marshal(SOSVoicePayload{
		UserID:     "alice",
		ReceiverID: "guardian",
		AudioBlob:  []byte("clip"),
		Latitude:   0,
		Longitude:  2.2945,
	})
	hub.handleSOSVoice(payload)

	assert.Empty(t, store.records())
	assertNoEvent(t, receiver, EventNewSOSVoice)
}

type archiverFunc func(ctx context.Context, recordID uint, clip []byte)

func (f archiverFunc) Archive(ctx context.Context, recordID uint, clip []byte) {
	f(ctx, recordID, clip)
}

func TestSOSVoiceArchiverRunsAfterSave(t *testing.T) {
	store := &fakeStore{}
	hub := NewHub(DefaultConfig(), store)
	defer hub.Close()

	archived := make(chan uint, 1)
	hub.SetAudioArchiver(archiverFunc(func(_ context.Context, recordID uint, _ []byte) {
		archived <- recordID
	}))

	payload, _ := json.Marshal(SOSVoicePayload{
		UserID:     "alice",
		ReceiverID: "guardian",
		AudioBlob:  []byte("clip"),
		Latitude:   1,
		Longitude:  1,
	})
	hub.handleSOSVoice(payload)

	select {
	case id := <-archived:
		assert.Equal(t, uint(1), id)
	case <-time.After(time.Second):
		t.Fatal("archiver never ran")
	}
}

func TestLiveLocationTexts(t *testing.T) {
	store := &fakeStore{}
	hub := NewHub(DefaultConfig(), store)
	defer hub.Close()

	receiver := testConn("conn_r", "guardian")
	hub.register <- receiver
	time.Sleep(100 * time.Millisecond)

	payload, _ := json.Marshal(LiveLocationPayload{
		UserID:     "alice",
		ReceiverID: "guardian",
		Latitude:   48.86,
		Longitude:  2.29,
		Timestamp:  1700000001000,
	})
	hub.handleLiveLocation(payload)

	// stored and delivered texts differ on purpose
	records := store.records()
	require.Len(t, records, 1)
	assert.Equal(t, models.KindLiveLocation, records[0].Kind)
	assert.Equal(t, models.LiveLocationStoreText, records[0].Text)

	env := waitForEvent(t, receiver, EventNewLiveLocation)
	var note SOSNotification
	require.NoError(t, json.Unmarshal(env.Data, &note))
	assert.Equal(t, models.LiveLocationText, note.Text)
	assert.Equal(t, models.DefaultAddress, note.Address)
}

func TestDeliverUnicastExactness(t *testing.T) {
	store := &fakeStore{}
	hub := NewHub(DefaultConfig(), store)
	defer hub.Close()

	guardian := testConn("conn_g", "guardian")
	bystander := testConn("conn_b", "bystander")
	hub.register <- guardian
	hub.register <- bystander
	time.Sleep(100 * time.Millisecond)

	payload, _ := json.Marshal(SOSStartPayload{
		UserID:     "alice",
		ReceiverID: "guardian",
		Text:       models.AlertText,
	})
	hub.handleSOSStart(payload)

	waitForEvent(t, guardian, EventNewSOS)
	assertNoEvent(t, bystander, EventNewSOS)
}

func TestDeliverSurvivesReceiverDisconnect(t *testing.T) {
	store := &fakeStore{}
	hub := NewHub(DefaultConfig(), store)
	defer hub.Close()

	// deliveries race connect/disconnect cycles of the receiver; a teardown
	// mid-delivery must degrade to a drop, never a panic
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.deliver("guardian", EventNewSOS, SOSNotification{UserID: "alice"})
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		conn := testConn(fmt.Sprintf("conn_%d", i), "guardian")
		hub.register <- conn
		time.Sleep(time.Millisecond)
		hub.unregister <- conn
	}

	close(stop)
	wg.Wait()
}

func TestHeartbeatTimeoutDuringDeliveries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	cfg.ConnectionTimeout = 30 * time.Millisecond
	require.NoError(t, ValidateConfig(cfg))

	hub := NewHub(cfg, &fakeStore{})
	defer hub.Close()

	conn := testConn("conn_r", "guardian")
	conn.LastPing = time.Now().Add(-time.Minute)
	hub.register <- conn
	time.Sleep(10 * time.Millisecond)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.deliver("guardian", EventNewSOS, SOSNotification{UserID: "alice"})
					hub.broadcastOnlineUsers()
				}
			}
		}()
	}

	require.Eventually(t, func() bool { return !conn.alive() }, 2*time.Second, 10*time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestConfigValidation(t *testing.T) {
	assert.Error(t, ValidateConfig(nil))
	assert.NoError(t, ValidateConfig(DefaultConfig()))

	cfg := DefaultConfig()
	cfg.MaxConnections = 0
	assert.Error(t, ValidateConfig(cfg))

	cfg = DefaultConfig()
	cfg.ConnectionTimeout = cfg.HeartbeatInterval
	assert.Error(t, ValidateConfig(cfg))

	cfg = DefaultConfig()
	cfg.MaxMessageSize = 0
	assert.Error(t, ValidateConfig(cfg))
}

func dialTestClient(t *testing.T, serverURL, userID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + RouteWebSocket
	if userID != "" {
		wsURL += "?userId=" + userID
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, event string) *Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Event == event {
			return &env
		}
	}
}

func TestEndToEndSOSFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeStore{}
	hub := NewHub(DefaultConfig(), store)
	defer hub.Close()

	engine := gin.New()
	RegisterRoutes(engine, NewHandler(hub))
	server := httptest.NewServer(engine)
	defer server.Close()

	sender := dialTestClient(t, server.URL, "alice")
	defer sender.Close()
	receiver := dialTestClient(t, server.URL, "guardian")
	defer receiver.Close()
	time.Sleep(100 * time.Millisecond)

	// wait until the roster shows both users
	for {
		env := readEvent(t, receiver, EventGetOnlineUsers)
		var users []string
		require.NoError(t, json.Unmarshal(env.Data, &users))
		if len(users) == 2 {
			break
		}
	}

	payload, _ := json.Marshal(SOSStartPayload{
		UserID:     "alice",
		ReceiverID: "guardian",
		Latitude:   48.8584,
		Longitude:  2.2945,
		Timestamp:  1700000000000,
		Text:       models.AlertText,
	})
	out, _ := json.Marshal(Envelope{Event: EventSOSStart, Data: payload})
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, out))

	env := readEvent(t, receiver, EventNewSOS)
	var note SOSNotification
	require.NoError(t, json.Unmarshal(env.Data, &note))
	assert.Equal(t, "alice", note.UserID)
	assert.Equal(t, models.AlertText, note.Text)
	require.Eventually(t, func() bool { return len(store.records()) == 1 }, time.Second, 20*time.Millisecond)
}

func TestEndToEndDisconnectUpdatesRoster(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(DefaultConfig(), &fakeStore{})
	defer hub.Close()

	engine := gin.New()
	RegisterRoutes(engine, NewHandler(hub))
	server := httptest.NewServer(engine)
	defer server.Close()

	sender := dialTestClient(t, server.URL, "alice")
	defer sender.Close()
	receiver := dialTestClient(t, server.URL, "guardian")
	time.Sleep(100 * time.Millisecond)

	receiver.Close()

	require.Eventually(t, func() bool {
		users := hub.OnlineUsers()
		return len(users) == 1 && users[0] == "alice"
	}, 2*time.Second, 50*time.Millisecond)
}

func TestEnvelopeMarshal(t *testing.T) {
	data, err := marshalEnvelope(EventNewSOS, SOSNotification{UserID: "alice"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, EventNewSOS, env.Event)
	assert.NotZero(t, env.Timestamp)
}
