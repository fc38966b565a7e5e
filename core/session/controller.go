package session

import (
	"errors"
	"sync"
	"time"

	"hoerbox/logger"
	"hoerbox/model"
)

// DefaultVolume is used when no stored preference exists and as the fallback
// when unmuting from a zero pre-mute volume.
const DefaultVolume = 0.7

// ErrSuperseded is resolved by the engine when a load or resume was overtaken
// by a newer command before it could complete.
var ErrSuperseded = errors.New("playback superseded by a newer command")

// playErrMessage is the display-only message surfaced when the engine rejects
// a play command or fails mid-track.
const playErrMessage = "Error playing song"

// Controller owns the playback session: the active track sequence, the
// current index and the play state. All engine commands flow through it.
//
// Engine outcomes arrive asynchronously. Every command that changes what the
// engine should be doing increments reqSeq; an outcome tagged with an older
// sequence number is discarded, so a stale load can never overwrite the
// state of a command issued after it.
type Controller struct {
	mu       sync.Mutex
	engine   Engine
	onChange ChangeCallback

	sequence []model.Track
	index    int
	state    State
	reqSeq   uint64

	// loaded reports whether the engine has (or is acquiring) a source for
	// the current track. After a sequence reset the state is Paused but
	// nothing is loaded yet, so the next play command must issue a full load.
	loaded bool

	volume  float64
	preMute float64
	dispErr string
}

// NewController creates a controller around the given engine.
func NewController(engine Engine) *Controller {
	c := &Controller{
		engine:  engine,
		state:   StateEmpty,
		volume:  DefaultVolume,
		preMute: DefaultVolume,
	}
	return c
}

// SetOnChange registers the single display subscriber. The callback runs
// outside the controller lock, after the state change it reports.
func (c *Controller) SetOnChange(cb ChangeCallback) {
	c.mu.Lock()
	c.onChange = cb
	c.mu.Unlock()
}

// SelectAndPlay replaces the active sequence and starts playback at index.
// With an empty sequence it clears the session without touching the engine.
// An out-of-range index is ignored.
func (c *Controller) SelectAndPlay(tracks []model.Track, index int) {
	c.mu.Lock()
	if len(tracks) == 0 {
		c.becomeEmptyLocked()
		c.mu.Unlock()
		c.notifyChange()
		return
	}
	if index < 0 || index >= len(tracks) {
		c.mu.Unlock()
		logger.Warn("ignoring play request with out-of-range index",
			logger.Int("index", index),
			logger.Int("sequence_len", len(tracks)))
		return
	}

	c.sequence = tracks
	c.index = index
	c.state = StateLoading
	c.loaded = true
	c.dispErr = ""
	c.reqSeq++
	seqNo := c.reqSeq
	track := tracks[index]
	c.mu.Unlock()

	c.notifyChange()
	logger.Info("loading track",
		logger.String("title", track.Title),
		logger.Int("index", index))
	c.engine.Load(track, func(err error) {
		c.onPlayOutcome(seqNo, err)
	})
}

// TogglePlayPause flips between playing and paused. When nothing is loaded
// yet it starts the active sequence from the top. Pausing takes effect
// immediately; starting playback waits for the engine outcome.
func (c *Controller) TogglePlayPause() {
	c.mu.Lock()

	if c.state == StateEmpty || !c.loaded {
		seq := c.sequence
		c.mu.Unlock()
		c.SelectAndPlay(seq, 0)
		return
	}

	if c.state == StatePlaying || c.state == StateLoading {
		c.state = StatePaused
		c.reqSeq++
		c.mu.Unlock()
		c.engine.Pause()
		c.notifyChange()
		return
	}

	// Paused with a loaded track: resume and wait for confirmation.
	c.reqSeq++
	seqNo := c.reqSeq
	c.mu.Unlock()
	c.engine.Resume(func(err error) {
		c.onPlayOutcome(seqNo, err)
	})
}

// Pause stops audible playback. It is idempotent and safe to call from the
// sleep timer or the RFID poller regardless of current state.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state != StatePlaying && c.state != StateLoading {
		c.mu.Unlock()
		return
	}
	c.state = StatePaused
	c.reqSeq++
	c.mu.Unlock()
	c.engine.Pause()
	c.notifyChange()
}

// Advance moves through the sequence by direction steps (+1 next, -1
// previous), wrapping at both ends, and plays the resulting track. A single
// track sequence restarts the same track. No-op when the session is empty.
func (c *Controller) Advance(direction int) {
	c.mu.Lock()
	n := len(c.sequence)
	if n == 0 {
		c.mu.Unlock()
		return
	}
	next := ((c.index+direction)%n + n) % n
	seq := c.sequence
	c.mu.Unlock()

	c.SelectAndPlay(seq, next)
}

// OnTrackEnded handles natural end of the current track by advancing to the
// next one. With a single-track sequence the track restarts.
func (c *Controller) OnTrackEnded() {
	c.Advance(1)
}

// OnEngineError handles a playback failure reported outside a load or resume
// outcome, for example mid-track decode errors. The session drops to Paused
// at the same index and surfaces a display-only error; the sequence stays
// usable.
func (c *Controller) OnEngineError(reason string) {
	c.mu.Lock()
	if c.state == StateEmpty {
		c.mu.Unlock()
		return
	}
	c.state = StatePaused
	c.reqSeq++
	c.dispErr = playErrMessage
	c.mu.Unlock()

	logger.Warn("playback engine reported an error", logger.String("reason", reason))
	c.notifyChange()
}

// SeekToFraction seeks within the current track to fraction f of its
// duration. Out-of-range fractions are clamped. No-op when nothing is loaded
// or the duration is not yet known.
func (c *Controller) SeekToFraction(f float64) {
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}

	c.mu.Lock()
	if c.state == StateEmpty || !c.loaded {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	d := c.engine.Duration()
	if d <= 0 {
		return
	}
	c.engine.SeekTo(time.Duration(f * float64(d)))
}

// SetVolume sets playback volume in [0, 1]. Values outside the range are
// clamped. Setting volume to zero reads as muted.
func (c *Controller) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}

	c.mu.Lock()
	c.volume = v
	c.mu.Unlock()

	c.engine.SetVolume(v)
	c.notifyChange()
}

// ToggleMute drops volume to zero, remembering the previous level, or
// restores it. Unmuting from a zero pre-mute level falls back to the default
// volume so the player never unmutes into silence.
func (c *Controller) ToggleMute() {
	c.mu.Lock()
	if c.volume > 0 {
		c.preMute = c.volume
		c.volume = 0
	} else {
		restore := c.preMute
		if restore <= 0 {
			restore = DefaultVolume
		}
		c.volume = restore
	}
	v := c.volume
	c.mu.Unlock()

	c.engine.SetVolume(v)
	c.notifyChange()
}

// RestoreVolume applies persisted volume levels at startup without going
// through the mute toggle.
func (c *Controller) RestoreVolume(volume, preMute float64) {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	if preMute <= 0 || preMute > 1 {
		preMute = DefaultVolume
	}

	c.mu.Lock()
	c.volume = volume
	c.preMute = preMute
	c.mu.Unlock()

	c.engine.SetVolume(volume)
}

// ResetForSequence installs a new sequence without starting playback: a
// non-empty sequence lands on Paused at index 0 with nothing loaded, an
// empty one clears the session. Any in-flight load is invalidated and the
// engine is silenced.
func (c *Controller) ResetForSequence(tracks []model.Track) {
	c.mu.Lock()
	if len(tracks) == 0 {
		c.becomeEmptyLocked()
	} else {
		c.sequence = tracks
		c.index = 0
		c.state = StatePaused
		c.loaded = false
		c.dispErr = ""
		c.reqSeq++
	}
	c.mu.Unlock()

	c.engine.Pause()
	c.notifyChange()
}

// Snapshot returns the current state projection.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsPlaying reports whether the controller believes audio is playing.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StatePlaying
}

// Index returns the active index within the sequence.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// CurrentTrack returns a copy of the active track, or nil when the session
// is empty.
func (c *Controller) CurrentTrack() *model.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sequence) == 0 {
		return nil
	}
	t := c.sequence[c.index]
	return &t
}

// Volume returns the current volume level.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// PreMuteVolume returns the level ToggleMute will restore to.
func (c *Controller) PreMuteVolume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preMute
}

// onPlayOutcome applies the result of an asynchronous load or resume. An
// outcome whose sequence number no longer matches belongs to a superseded
// command and is dropped without touching state.
func (c *Controller) onPlayOutcome(seqNo uint64, err error) {
	c.mu.Lock()
	if seqNo != c.reqSeq {
		c.mu.Unlock()
		return
	}
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			c.mu.Unlock()
			return
		}
		c.state = StatePaused
		c.dispErr = playErrMessage
		c.mu.Unlock()

		logger.Warn("play command rejected", logger.ErrorField(err))
		c.notifyChange()
		return
	}
	c.state = StatePlaying
	c.dispErr = ""
	c.mu.Unlock()
	c.notifyChange()
}

func (c *Controller) becomeEmptyLocked() {
	c.sequence = nil
	c.index = 0
	c.state = StateEmpty
	c.loaded = false
	c.dispErr = ""
	c.reqSeq++
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:       c.state,
		Index:       c.index,
		SequenceLen: len(c.sequence),
		Volume:      c.volume,
		Muted:       c.volume == 0,
		Err:         c.dispErr,
	}
	if len(c.sequence) > 0 && c.index < len(c.sequence) {
		t := c.sequence[c.index]
		snap.Track = &t
	}
	return snap
}

// notifyChange invokes the subscriber with a fresh snapshot, outside the
// controller lock so the callback may call back into the controller.
func (c *Controller) notifyChange() {
	c.mu.Lock()
	cb := c.onChange
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
}
