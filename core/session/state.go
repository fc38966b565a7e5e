package session

import (
	"time"

	"hoerbox/model"
)

// State represents the playback state owned by the Controller.
type State int

const (
	StateEmpty   State = iota // No active sequence, nothing to play
	StateLoading              // A load+play command is in flight
	StatePaused               // A track is selected but not audibly playing
	StatePlaying              // The engine confirmed playback
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Engine abstracts the native media playback primitive. Load and Resume are
// asynchronous: the engine calls resolve exactly once with the outcome, on
// its own goroutine. Pause is immediate and never fails. A load that is
// overtaken by a newer one resolves with ErrSuperseded.
type Engine interface {
	Load(track model.Track, resolve func(error))
	Resume(resolve func(error))
	Pause()
	SeekTo(pos time.Duration)
	Duration() time.Duration
	SetVolume(v float64)
}

// Snapshot is the read-only projection of controller state handed to display
// subscribers. Rendering is a pure function of the snapshot.
type Snapshot struct {
	State       State
	Index       int
	Track       *model.Track
	SequenceLen int
	Volume      float64
	Muted       bool
	Err         string // display-only playback error, empty when none
}

// ChangeCallback is called after every observable state change.
type ChangeCallback func(Snapshot)
