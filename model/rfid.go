package model

import "time"

// RFID event names carried in the status payload.
const (
	RFIDEventTagPresent = "tag_present"
	RFIDEventTagAbsent  = "tag_absent"
)

// RFID status values returned by the status endpoint.
const (
	RFIDStatusActive  = "active"  // at least one event has been published
	RFIDStatusWaiting = "waiting" // reader service has not reported anything yet
)

// RFIDTag links a physical tag to a song in the library.
type RFIDTag struct {
	ID        int64     `json:"id"`
	TagID     string    `json:"tag_id"`
	Name      string    `json:"name,omitempty"`
	SongID    int64     `json:"song_id"`
	LastUsed  time.Time `json:"last_used"`
	CreatedAt time.Time `json:"created_at"`
}

// RFIDEventData is the payload attached to a presence event. Song fields are
// filled in when the tag resolves against the registry, so a client can fall
// back to direct-filename playback for tracks outside its loaded catalog.
type RFIDEventData struct {
	TagID    string `json:"tag_id"`
	Name     string `json:"name,omitempty"`
	SongID   int64  `json:"song_id,omitempty"`
	Filename string `json:"filename,omitempty"`
	Title    string `json:"title,omitempty"`
}

// RFIDStatus is the poll response of GET /api/rfid/status. Timestamp is an
// RFC3339 UTC string; pollers compare it as an opaque value to de-duplicate
// repeated reports of the same event.
type RFIDStatus struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Event     string         `json:"event,omitempty"`
	Data      *RFIDEventData `json:"data,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}
