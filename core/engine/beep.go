package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"

	"hoerbox/core/session"
	"hoerbox/logger"
	"hoerbox/model"
)

// speakerRate is the fixed output rate. Tracks with a different source rate
// are resampled on the fly.
const speakerRate = beep.SampleRate(44100)

// Speaker and decoder entry points. Swappable in tests, since the real
// speaker needs an audio device.
var (
	speakerInit   = speaker.Init
	speakerPlay   = speaker.Play
	speakerClear  = speaker.Clear
	speakerLock   = speaker.Lock
	speakerUnlock = speaker.Unlock
	decodeMP3     = mp3.Decode
)

// MediaFetcher opens the audio stream for a track filename. The engine closes
// the returned reader once the track is buffered.
type MediaFetcher func(filename string) (io.ReadCloser, error)

// BeepEngine plays MP3 tracks through the system speaker. It implements
// session.Engine: loads run asynchronously and resolve with their outcome,
// and a load overtaken by a newer one resolves with session.ErrSuperseded.
type BeepEngine struct {
	mu    sync.Mutex
	fetch MediaFetcher

	// generation increments on every Load so a slow decode can detect that
	// a newer load replaced it before it reached the speaker.
	generation uint64

	// paused is the standing intent. A Pause that lands while a load is
	// still fetching has no ctrl to flip yet; the completing load reads
	// this flag and brings the pipeline up silent.
	paused bool

	speakerReady bool
	stream       beep.StreamSeekCloser
	format       beep.Format
	ctrl         *beep.Ctrl
	volume       *effects.Volume
	level        float64
	onTrackEnd   func()
}

// NewBeepEngine creates an engine that fetches media through fetch. The
// speaker is initialized lazily on the first load.
func NewBeepEngine(fetch MediaFetcher) *BeepEngine {
	return &BeepEngine{fetch: fetch, level: session.DefaultVolume}
}

// SetOnTrackEnd registers the callback fired when the current track plays to
// its natural end. It is not fired for paused, replaced or closed tracks.
func (e *BeepEngine) SetOnTrackEnd(cb func()) {
	e.mu.Lock()
	e.onTrackEnd = cb
	e.mu.Unlock()
}

// Load fetches, decodes and starts playing a track. resolve is called exactly
// once from a background goroutine.
func (e *BeepEngine) Load(track model.Track, resolve func(error)) {
	go func() {
		resolve(e.load(track))
	}()
}

func (e *BeepEngine) load(track model.Track) error {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.paused = false
	e.mu.Unlock()

	rc, err := e.fetch(track.Filename)
	if err != nil {
		e.discardCurrent(gen)
		return fmt.Errorf("failed to fetch media %q: %w", track.Filename, err)
	}

	// Buffer the whole track before decoding. An HTTP body is not seekable,
	// which would leave duration unknown and seeking dead for served media.
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		e.discardCurrent(gen)
		return fmt.Errorf("failed to read media %q: %w", track.Filename, err)
	}

	stream, format, err := decodeMP3(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		e.discardCurrent(gen)
		return fmt.Errorf("failed to decode %q: %w", track.Filename, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		stream.Close()
		return session.ErrSuperseded
	}

	if !e.speakerReady {
		if err := speakerInit(speakerRate, speakerRate.N(time.Second/10)); err != nil {
			stream.Close()
			return fmt.Errorf("failed to initialize speaker: %w", err)
		}
		e.speakerReady = true
	}

	speakerClear()
	if e.stream != nil {
		e.stream.Close()
	}
	e.stream = stream
	e.format = format

	var src beep.Streamer = stream
	if format.SampleRate != speakerRate {
		src = beep.Resample(4, format.SampleRate, speakerRate, stream)
	}
	e.volume = &effects.Volume{
		Streamer: src,
		Base:     2,
		Volume:   volumeExponent(e.level),
		Silent:   e.level == 0,
	}
	// A pause issued while this load was in flight must win: the pipeline
	// comes up installed but silent.
	e.ctrl = &beep.Ctrl{Streamer: e.volume, Paused: e.paused}

	done := beep.Callback(func() {
		e.handleTrackEnd(gen)
	})
	speakerPlay(beep.Seq(e.ctrl, done))
	return nil
}

// discardCurrent tears down whatever pipeline is installed, unless a newer
// load owns it. A failed load must not leave the previous track resumable
// at the new track's position.
func (e *BeepEngine) discardCurrent(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return
	}
	if e.speakerReady {
		speakerClear()
	}
	if e.stream != nil {
		e.stream.Close()
		e.stream = nil
	}
	e.ctrl = nil
	e.volume = nil
}

// Resume unpauses the current track.
func (e *BeepEngine) Resume(resolve func(error)) {
	go func() {
		e.mu.Lock()
		e.paused = false
		ctrl := e.ctrl
		e.mu.Unlock()

		if ctrl == nil {
			resolve(errors.New("no track loaded"))
			return
		}
		speakerLock()
		ctrl.Paused = false
		speakerUnlock()
		resolve(nil)
	}()
}

// Pause silences playback immediately. The intent sticks: a load still in
// flight when Pause lands finishes silent instead of starting audio under a
// paused session.
func (e *BeepEngine) Pause() {
	e.mu.Lock()
	e.paused = true
	ctrl := e.ctrl
	e.mu.Unlock()

	if ctrl == nil {
		return
	}
	speakerLock()
	ctrl.Paused = true
	speakerUnlock()
}

// SeekTo jumps to an absolute position within the current track, clamped to
// its bounds.
func (e *BeepEngine) SeekTo(pos time.Duration) {
	e.mu.Lock()
	stream := e.stream
	format := e.format
	e.mu.Unlock()

	if stream == nil {
		return
	}

	speakerLock()
	n := format.SampleRate.N(pos)
	if max := stream.Len() - 1; n > max {
		n = max
	}
	if n < 0 {
		n = 0
	}
	err := stream.Seek(n)
	speakerUnlock()

	if err != nil {
		logger.Warn("seek failed", logger.ErrorField(err))
	}
}

// Duration returns the length of the current track, or zero when nothing is
// loaded.
func (e *BeepEngine) Duration() time.Duration {
	e.mu.Lock()
	stream := e.stream
	format := e.format
	e.mu.Unlock()

	if stream == nil {
		return 0
	}
	speakerLock()
	n := stream.Len()
	speakerUnlock()
	return format.SampleRate.D(n)
}

// SetVolume applies a linear volume level in [0, 1], mapped onto the
// exponential scale the mixer uses. Zero is fully silent.
func (e *BeepEngine) SetVolume(v float64) {
	e.mu.Lock()
	e.level = v
	vol := e.volume
	e.mu.Unlock()

	if vol == nil {
		return
	}
	speakerLock()
	vol.Volume = volumeExponent(v)
	vol.Silent = v == 0
	speakerUnlock()
}

// Close stops playback and releases the current stream.
func (e *BeepEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation++
	if e.speakerReady {
		speakerClear()
	}
	if e.stream != nil {
		e.stream.Close()
		e.stream = nil
	}
	e.ctrl = nil
	e.volume = nil
}

func (e *BeepEngine) handleTrackEnd(gen uint64) {
	e.mu.Lock()
	current := gen == e.generation
	cb := e.onTrackEnd
	e.mu.Unlock()

	if current && cb != nil {
		cb()
	}
}

// volumeExponent converts a linear level to the base-2 exponent expected by
// effects.Volume. The zero case is handled by the Silent flag.
func volumeExponent(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log2(v)
}
