package models

import "time"

// Emergency event kinds.
const (
	KindAlert        = "alert"
	KindLiveLocation = "live-location"
	KindVoice        = "voice"
)

// Texts mirrored to clients; the address is a display string, not geocoded.
const (
	DefaultAddress        = "Click to view on Google Maps"
	AlertText             = "🚨 SOS! User in danger."
	LiveLocationText      = "🚨 SOS! User in danger. Live location update."
	LiveLocationStoreText = "SOS Live Location Update"
	VoiceText             = "SOS voice message"
)

// Emergency is the durable record of one emergency event. Records are
// append-only: the core never updates or deletes them.
type Emergency struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"size:64;index;not null" json:"userId"`     // sender identity
	ReceiverID string    `gorm:"size:64;index;not null" json:"receiverId"` // receiver identity
	Kind       string    `gorm:"size:32" json:"kind"`                      // alert / live-location / voice
	Text       string    `gorm:"size:512;not null" json:"text"`
	Latitude   float64   `gorm:"not null" json:"latitude"`
	Longitude  float64   `gorm:"not null" json:"longitude"`
	Address    string    `gorm:"size:256" json:"address,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	AudioBlob  []byte    `gorm:"type:blob" json:"audioBlob,omitempty"` // voice clip, optional
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
