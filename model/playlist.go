package model

import "time"

// Playlist is a named, ordered list of tracks. Tracks are appended one at a
// time; the server keeps the order in the position column.
type Playlist struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Tracks    []Track   `json:"tracks"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
