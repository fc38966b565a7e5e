package model

// Track represents one playable song in the music library. Identity on the
// wire is the filename (relative to the music directory); the numeric ID is a
// stable key used by playlist membership and RFID tag associations.
type Track struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Filename   string `json:"filename"`
	CoverImage string `json:"cover_image,omitempty"`
}
