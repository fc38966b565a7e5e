package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"hoerbox/model"
)

// fakeEngine records commands and lets tests resolve load/resume outcomes
// manually, so superseding and late-outcome behavior can be driven
// deterministically.
type fakeEngine struct {
	mu       sync.Mutex
	loads    []loadCall
	resumes  []func(error)
	pauses   int
	volume   float64
	duration time.Duration
	seeks    []time.Duration
}

type loadCall struct {
	track   model.Track
	resolve func(error)
}

func (f *fakeEngine) Load(track model.Track, resolve func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, loadCall{track: track, resolve: resolve})
}

func (f *fakeEngine) Resume(resolve func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes = append(f.resumes, resolve)
}

func (f *fakeEngine) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeEngine) SeekTo(pos time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, pos)
}

func (f *fakeEngine) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeEngine) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakeEngine) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

func (f *fakeEngine) lastLoad() loadCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[len(f.loads)-1]
}

func (f *fakeEngine) loadAt(i int) loadCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[i]
}

func (f *fakeEngine) lastResume() func(error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumes[len(f.resumes)-1]
}

func (f *fakeEngine) pauseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pauses
}

func testTracks() []model.Track {
	return []model.Track{
		{ID: 1, Title: "Song A", Filename: "a.mp3"},
		{ID: 2, Title: "Song B", Filename: "b.mp3"},
		{ID: 3, Title: "Song C", Filename: "c.mp3"},
	}
}

func newTestController() (*Controller, *fakeEngine) {
	eng := &fakeEngine{}
	return NewController(eng), eng
}

// startPlaying gets the controller into StatePlaying at the given index.
func startPlaying(t *testing.T, c *Controller, eng *fakeEngine, tracks []model.Track, index int) {
	t.Helper()
	c.SelectAndPlay(tracks, index)
	eng.lastLoad().resolve(nil)
	if c.State() != StatePlaying {
		t.Fatalf("expected playing after confirmed load, got %v", c.State())
	}
}

func TestSelectAndPlayConfirms(t *testing.T) {
	c, eng := newTestController()
	tracks := testTracks()

	c.SelectAndPlay(tracks, 1)
	if c.State() != StateLoading {
		t.Fatalf("expected loading while outcome pending, got %v", c.State())
	}
	if c.IsPlaying() {
		t.Error("must not report playing before the engine confirms")
	}

	eng.lastLoad().resolve(nil)
	if c.State() != StatePlaying {
		t.Fatalf("expected playing after confirmation, got %v", c.State())
	}
	if got := c.CurrentTrack(); got == nil || got.Title != "Song B" {
		t.Errorf("expected Song B active, got %+v", got)
	}
}

func TestSelectAndPlayEmptySequence(t *testing.T) {
	c, eng := newTestController()

	c.SelectAndPlay(nil, 0)
	if c.State() != StateEmpty {
		t.Fatalf("expected empty state, got %v", c.State())
	}
	if eng.loadCount() != 0 || eng.pauseCount() != 0 {
		t.Error("empty sequence must not touch the engine")
	}
}

func TestSelectAndPlayOutOfRangeIndex(t *testing.T) {
	c, eng := newTestController()
	tracks := testTracks()
	startPlaying(t, c, eng, tracks, 0)

	c.SelectAndPlay(tracks, 3)
	c.SelectAndPlay(tracks, -1)

	if c.State() != StatePlaying || c.Index() != 0 {
		t.Errorf("out-of-range index must leave state untouched, got %v index %d", c.State(), c.Index())
	}
	if eng.loadCount() != 1 {
		t.Errorf("expected no extra loads, got %d", eng.loadCount())
	}
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	c, eng := newTestController()
	tracks := testTracks()

	c.SelectAndPlay(tracks, 0)
	c.SelectAndPlay(tracks, 1)
	if eng.loadCount() != 2 {
		t.Fatalf("expected two loads, got %d", eng.loadCount())
	}

	// The stale outcome lands after the newer command was issued.
	eng.loadAt(0).resolve(nil)
	if c.State() != StateLoading {
		t.Errorf("stale success must not flip state, got %v", c.State())
	}
	if c.Index() != 1 {
		t.Errorf("index must stay at the newer selection, got %d", c.Index())
	}

	eng.loadAt(1).resolve(nil)
	if c.State() != StatePlaying || c.Index() != 1 {
		t.Errorf("expected playing at index 1, got %v index %d", c.State(), c.Index())
	}

	// An engine that cancels the old pipeline resolves it with ErrSuperseded.
	eng.loadAt(0).resolve(ErrSuperseded)
	if c.State() != StatePlaying {
		t.Errorf("superseded error must be ignored, got %v", c.State())
	}
}

func TestPauseDuringLoadingDiscardsOutcome(t *testing.T) {
	c, eng := newTestController()
	tracks := testTracks()

	c.SelectAndPlay(tracks, 0)
	c.TogglePlayPause()
	if c.State() != StatePaused {
		t.Fatalf("expected paused, got %v", c.State())
	}
	if eng.pauseCount() != 1 {
		t.Fatalf("expected one engine pause, got %d", eng.pauseCount())
	}

	eng.lastLoad().resolve(nil)
	if c.State() != StatePaused {
		t.Errorf("load outcome after pause must be discarded, got %v", c.State())
	}
}

func TestToggleResumeWaitsForOutcome(t *testing.T) {
	c, eng := newTestController()
	tracks := testTracks()
	startPlaying(t, c, eng, tracks, 0)

	c.TogglePlayPause()
	if c.State() != StatePaused {
		t.Fatalf("expected paused, got %v", c.State())
	}

	c.TogglePlayPause()
	if c.State() != StatePaused {
		t.Errorf("must stay paused until resume confirms, got %v", c.State())
	}
	eng.lastResume()(nil)
	if c.State() != StatePlaying {
		t.Errorf("expected playing after resume confirms, got %v", c.State())
	}
	if eng.loadCount() != 1 {
		t.Errorf("resume must not reload the track, got %d loads", eng.loadCount())
	}
}

func TestToggleWithNothingLoadedStartsFromTop(t *testing.T) {
	c, eng := newTestController()
	tracks := testTracks()

	c.ResetForSequence(tracks)
	if c.State() != StatePaused || c.Index() != 0 {
		t.Fatalf("expected paused at 0, got %v index %d", c.State(), c.Index())
	}

	c.TogglePlayPause()
	if eng.loadCount() != 1 {
		t.Fatalf("expected a full load, got %d", eng.loadCount())
	}
	if got := eng.lastLoad().track.Title; got != "Song A" {
		t.Errorf("expected the first track, got %q", got)
	}
	if c.State() != StateLoading {
		t.Errorf("expected loading, got %v", c.State())
	}
}

func TestToggleOnEmptySessionIsNoop(t *testing.T) {
	c, eng := newTestController()

	c.TogglePlayPause()
	if c.State() != StateEmpty {
		t.Errorf("expected empty, got %v", c.State())
	}
	if eng.loadCount() != 0 || len(eng.resumes) != 0 {
		t.Error("toggle on an empty session must not touch the engine")
	}
}

func TestAdvanceWrapsBothWays(t *testing.T) {
	c, eng := newTestController()
	tracks := testTracks()
	startPlaying(t, c, eng, tracks, 2)

	c.Advance(1)
	if c.Index() != 0 {
		t.Errorf("next from last track must wrap to 0, got %d", c.Index())
	}
	eng.lastLoad().resolve(nil)

	c.Advance(-1)
	if c.Index() != 2 {
		t.Errorf("previous from first track must wrap to last, got %d", c.Index())
	}
}

func TestAdvanceOnEmptySessionIsNoop(t *testing.T) {
	c, eng := newTestController()
	c.Advance(1)
	c.Advance(-1)
	if c.State() != StateEmpty || eng.loadCount() != 0 {
		t.Error("advance on an empty session must be a no-op")
	}
}

func TestTrackEndedAdvances(t *testing.T) {
	c, eng := newTestController()
	tracks := testTracks()
	startPlaying(t, c, eng, tracks, 0)

	c.OnTrackEnded()
	if c.Index() != 1 || c.State() != StateLoading {
		t.Errorf("expected loading index 1, got %v index %d", c.State(), c.Index())
	}
}

func TestSingleTrackSequenceRestarts(t *testing.T) {
	c, eng := newTestController()
	single := testTracks()[:1]
	startPlaying(t, c, eng, single, 0)

	c.OnTrackEnded()
	if c.Index() != 0 {
		t.Errorf("single track must restart at 0, got %d", c.Index())
	}
	if eng.loadCount() != 2 {
		t.Errorf("restart must issue a fresh load, got %d", eng.loadCount())
	}
}

func TestLoadFailureSurfacesError(t *testing.T) {
	c, eng := newTestController()
	tracks := testTracks()

	c.SelectAndPlay(tracks, 0)
	eng.lastLoad().resolve(errors.New("decode failed"))

	snap := c.Snapshot()
	if snap.State != StatePaused {
		t.Errorf("expected paused after rejected load, got %v", snap.State)
	}
	if snap.Err == "" {
		t.Error("expected a display error after rejected load")
	}
	if snap.Index != 0 {
		t.Errorf("index must be unchanged, got %d", snap.Index)
	}
}

func TestEngineErrorDropsToPaused(t *testing.T) {
	c, eng := newTestController()
	tracks := testTracks()
	startPlaying(t, c, eng, tracks, 1)

	c.OnEngineError("underrun")
	snap := c.Snapshot()
	if snap.State != StatePaused || snap.Index != 1 {
		t.Errorf("expected paused at same index, got %v index %d", snap.State, snap.Index)
	}
	if snap.Err == "" {
		t.Error("expected a display error")
	}

	// The session stays usable: the next play command clears the error.
	c.TogglePlayPause()
	eng.lastResume()(nil)
	if got := c.Snapshot(); got.State != StatePlaying || got.Err != "" {
		t.Errorf("expected playing with no error, got %v %q", got.State, got.Err)
	}
}

func TestResetForSequenceInvalidatesPendingLoad(t *testing.T) {
	c, eng := newTestController()
	long := testTracks()

	c.SelectAndPlay(long, 2)
	c.ResetForSequence(long[:1])
	if c.State() != StatePaused || c.Index() != 0 {
		t.Fatalf("expected paused at 0, got %v index %d", c.State(), c.Index())
	}
	if eng.pauseCount() == 0 {
		t.Error("reset must silence the engine")
	}

	eng.lastLoad().resolve(nil)
	if c.State() != StatePaused {
		t.Errorf("outcome of a pre-reset load must be discarded, got %v", c.State())
	}

	snap := c.Snapshot()
	if snap.SequenceLen != 1 {
		t.Errorf("expected the new sequence installed, got len %d", snap.SequenceLen)
	}
}

func TestResetForEmptySequence(t *testing.T) {
	c, eng := newTestController()
	startPlaying(t, c, eng, testTracks(), 0)

	c.ResetForSequence(nil)
	if c.State() != StateEmpty {
		t.Errorf("expected empty, got %v", c.State())
	}
	if c.CurrentTrack() != nil {
		t.Error("expected no active track")
	}
	if eng.pauseCount() == 0 {
		t.Error("reset to empty must silence the engine")
	}
}

func TestSeekToFraction(t *testing.T) {
	c, eng := newTestController()
	eng.duration = 100 * time.Second
	startPlaying(t, c, eng, testTracks(), 0)

	c.SeekToFraction(0.5)
	if len(eng.seeks) != 1 || eng.seeks[0] != 50*time.Second {
		t.Errorf("expected seek to 50s, got %v", eng.seeks)
	}

	c.SeekToFraction(1.5)
	if eng.seeks[len(eng.seeks)-1] != 100*time.Second {
		t.Errorf("fraction above 1 must clamp to the end, got %v", eng.seeks)
	}
}

func TestSeekIgnoredWithoutLoadedTrack(t *testing.T) {
	c, eng := newTestController()
	eng.duration = 100 * time.Second

	c.SeekToFraction(0.5)
	c.ResetForSequence(testTracks())
	c.SeekToFraction(0.5)
	if len(eng.seeks) != 0 {
		t.Errorf("seek without a loaded track must be a no-op, got %v", eng.seeks)
	}
}

func TestMuteRestoresPreviousVolume(t *testing.T) {
	c, eng := newTestController()

	c.SetVolume(0.4)
	c.ToggleMute()
	snap := c.Snapshot()
	if snap.Volume != 0 || !snap.Muted {
		t.Fatalf("expected muted, got volume %v muted %v", snap.Volume, snap.Muted)
	}
	if eng.volume != 0 {
		t.Errorf("expected engine volume 0, got %v", eng.volume)
	}

	c.ToggleMute()
	snap = c.Snapshot()
	if snap.Volume != 0.4 || snap.Muted {
		t.Errorf("expected volume restored to 0.4, got %v muted %v", snap.Volume, snap.Muted)
	}
}

func TestUnmuteFromZeroFallsBackToDefault(t *testing.T) {
	c, _ := newTestController()

	c.SetVolume(0)
	c.ToggleMute()
	if got := c.Volume(); got != DefaultVolume {
		t.Errorf("expected default volume %v, got %v", DefaultVolume, got)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	c, _ := newTestController()

	c.SetVolume(1.7)
	if got := c.Volume(); got != 1 {
		t.Errorf("expected clamp to 1, got %v", got)
	}
	c.SetVolume(-0.3)
	if got := c.Volume(); got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}
}

func TestRestoreVolume(t *testing.T) {
	c, eng := newTestController()

	c.RestoreVolume(0.25, 0.8)
	if c.Volume() != 0.25 || c.PreMuteVolume() != 0.8 {
		t.Errorf("expected 0.25/0.8, got %v/%v", c.Volume(), c.PreMuteVolume())
	}
	if eng.volume != 0.25 {
		t.Errorf("expected engine volume applied, got %v", eng.volume)
	}

	c.ToggleMute()
	c.ToggleMute()
	if c.Volume() != 0.8 {
		t.Errorf("expected restore to persisted pre-mute level, got %v", c.Volume())
	}
}

func TestChangeNotifications(t *testing.T) {
	c, eng := newTestController()

	var mu sync.Mutex
	var states []State
	c.SetOnChange(func(snap Snapshot) {
		mu.Lock()
		states = append(states, snap.State)
		mu.Unlock()
	})

	c.SelectAndPlay(testTracks(), 0)
	eng.lastLoad().resolve(nil)
	c.TogglePlayPause()

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateLoading, StatePlaying, StatePaused}
	if len(states) != len(want) {
		t.Fatalf("expected %d notifications, got %d (%v)", len(want), len(states), states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("notification %d: expected %v, got %v", i, want[i], states[i])
		}
	}
}

// Walks a full listening session across three tracks: play, natural
// advancing, manual skip and wrap-around.
func TestFullSessionFlow(t *testing.T) {
	c, eng := newTestController()
	tracks := testTracks()

	startPlaying(t, c, eng, tracks, 0)

	c.OnTrackEnded()
	eng.lastLoad().resolve(nil)
	if c.Index() != 1 || c.State() != StatePlaying {
		t.Fatalf("expected playing Song B, got %v index %d", c.State(), c.Index())
	}

	c.TogglePlayPause()
	c.Advance(1)
	eng.lastLoad().resolve(nil)
	if c.Index() != 2 || c.State() != StatePlaying {
		t.Fatalf("expected playing Song C, got %v index %d", c.State(), c.Index())
	}

	c.OnTrackEnded()
	eng.lastLoad().resolve(nil)
	if c.Index() != 0 {
		t.Errorf("expected wrap to Song A, got index %d", c.Index())
	}
}
