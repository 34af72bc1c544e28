package websocket

import "encoding/json"

// Wire event names. Inbound events arrive from the sender's connection;
// outbound events go to the resolved receiver (unicast) or to everyone
// (getOnlineUsers).
const (
	// client -> server
	EventSOSStart         = "sosStart"
	EventSOSVoice         = "sosVoice"
	EventSendLiveLocation = "sendLiveLocation"

	// server -> client
	EventGetOnlineUsers  = "getOnlineUsers"
	EventNewSOS          = "newSOS"
	EventNewSOSVoice     = "newSOSVoice"
	EventNewLiveLocation = "newLiveLocation"
)

// Envelope frames every message on the wire.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// SOSStartPayload is the inbound alert burst. Timestamp is epoch millis from
// the client clock; zero means "now".
type SOSStartPayload struct {
	UserID     string  `json:"userId"`
	ReceiverID string  `json:"receiverId"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Timestamp  int64   `json:"timestamp"`
	Text       string  `json:"text"`
}

// SOSVoicePayload carries the recorded clip plus the coordinates captured at
// session start. AudioBlob travels base64-encoded inside the JSON envelope.
type SOSVoicePayload struct {
	UserID     string  `json:"userId"`
	ReceiverID string  `json:"receiverId"`
	AudioBlob  []byte  `json:"audioBlob"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// LiveLocationPayload is one sample of the live-location stream.
type LiveLocationPayload struct {
	UserID     string  `json:"userId"`
	ReceiverID string  `json:"receiverId"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Timestamp  int64   `json:"timestamp"`
}

// SOSNotification is the unicast payload for newSOS and newLiveLocation.
type SOSNotification struct {
	UserID     string  `json:"userId"`
	ReceiverID string  `json:"receiverId"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Address    string  `json:"address"`
	Timestamp  int64   `json:"timestamp"`
	Text       string  `json:"text"`
}

// VoiceNotification is the unicast payload for newSOSVoice.
type VoiceNotification struct {
	UserID    string  `json:"userId"`
	AudioBlob []byte  `json:"audioBlob"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
