package sosclient

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Lifeline/internal/models"
	"Lifeline/pkg/websocket"
)

type memoryStore struct {
	mu     sync.Mutex
	saved  []models.Emergency
	nextID uint
}

func (s *memoryStore) Save(_ context.Context, rec *models.Emergency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	s.saved = append(s.saved, *rec)
	return nil
}

func (s *memoryStore) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.saved {
		if rec.Kind == kind {
			n++
		}
	}
	return n
}

func startTestServer(t *testing.T, store websocket.EmergencyStore) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := websocket.NewHub(websocket.DefaultConfig(), store)
	t.Cleanup(hub.Close)

	engine := gin.New()
	websocket.RegisterRoutes(engine, websocket.NewHandler(hub))
	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)
	return server
}

func TestClientDialUnboundMode(t *testing.T) {
	server := startTestServer(t, &memoryStore{})

	client, err := Dial(server.URL, "")
	require.NoError(t, err)
	defer client.Close()

	roster := make(chan []string, 4)
	client.On(websocket.EventGetOnlineUsers, func(data json.RawMessage) {
		var users []string
		if json.Unmarshal(data, &users) == nil {
			roster <- users
		}
	})

	// unbound clients get the broadcast but never appear in it
	bound, err := Dial(server.URL, "alice")
	require.NoError(t, err)
	defer bound.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case users := <-roster:
			if len(users) == 1 {
				assert.Equal(t, []string{"alice"}, users)
				return
			}
		case <-deadline:
			t.Fatal("roster update never arrived")
		}
	}
}

func TestFullSessionOverWire(t *testing.T) {
	store := &memoryStore{}
	server := startTestServer(t, store)

	sender, err := Dial(server.URL, "alice")
	require.NoError(t, err)
	defer sender.Close()

	receiver, err := Dial(server.URL, "guardian")
	require.NoError(t, err)
	defer receiver.Close()

	var mu sync.Mutex
	received := map[string]int{}
	var voice websocket.VoiceNotification
	for _, event := range []string{websocket.EventNewSOS, websocket.EventNewLiveLocation, websocket.EventNewSOSVoice} {
		event := event
		receiver.On(event, func(data json.RawMessage) {
			mu.Lock()
			defer mu.Unlock()
			received[event]++
			if event == websocket.EventNewSOSVoice {
				json.Unmarshal(data, &voice)
			}
		})
	}
	time.Sleep(100 * time.Millisecond)

	session := NewSession("alice", "guardian", sender, fixedLocation(48.8584, 2.2945), &ClipRecorder{Clip: []byte("clip")}, testConfig())
	require.NoError(t, session.Trigger(context.Background()))
	waitDone(t, session)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received[websocket.EventNewSOS] == 1 &&
			received[websocket.EventNewLiveLocation] == 4 &&
			received[websocket.EventNewSOSVoice] == 1
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []byte("clip"), voice.AudioBlob)
	assert.Equal(t, 48.8584, voice.Latitude)
	mu.Unlock()

	// every delivered event has a durable record behind it
	assert.Equal(t, 1, store.count(models.KindAlert))
	assert.Equal(t, 4, store.count(models.KindLiveLocation))
	assert.Equal(t, 1, store.count(models.KindVoice))
}
