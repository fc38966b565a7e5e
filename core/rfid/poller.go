package rfid

import (
	"context"
	"time"

	"github.com/samber/lo"

	"hoerbox/logger"
	"hoerbox/model"
)

// Transport fetches the latest RFID status from the backend.
type Transport interface {
	RFIDStatus(ctx context.Context) (*model.RFIDStatus, error)
}

// Commander is the playback surface the poller drives.
type Commander interface {
	SelectAndPlay(tracks []model.Track, index int)
	Pause()
}

// SequenceSource resolves event song IDs against the active view and the
// full catalog.
type SequenceSource interface {
	ActiveTracks() []model.Track
	Songs() []model.Track
}

// Poller polls the RFID status endpoint and translates presence edges into
// playback commands. Polling runs at a fixed interval with no backoff; a
// failed poll only flips the connectivity indicator and the next tick tries
// again.
type Poller struct {
	transport Transport
	commander Commander
	source    SequenceSource
	interval  time.Duration

	// onConnectivity is called when reachability of the backend changes.
	onConnectivity func(up bool)

	// lastTimestamp is the de-duplication token: the endpoint keeps serving
	// the latest event, so an unchanged timestamp means nothing new happened.
	lastTimestamp string

	// tagPresent tracks the believed physical state. Commands fire only on
	// transitions, never on a re-reported steady state.
	tagPresent bool

	connKnown bool
	connected bool
}

// NewPoller creates a poller. interval is the poll period.
func NewPoller(transport Transport, commander Commander, source SequenceSource, interval time.Duration) *Poller {
	return &Poller{
		transport: transport,
		commander: commander,
		source:    source,
		interval:  interval,
	}
}

// SetOnConnectivity registers the backend reachability indicator. Call before
// Run.
func (p *Poller) SetOnConnectivity(cb func(up bool)) {
	p.onConnectivity = cb
}

// Run polls until the context is canceled. The first poll happens
// immediately.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce performs a single poll cycle. Exported so the cycle can be driven
// without timers.
func (p *Poller) PollOnce(ctx context.Context) {
	status, err := p.transport.RFIDStatus(ctx)
	if err != nil {
		logger.Debug("RFID status poll failed", logger.ErrorField(err))
		p.setConnected(false)
		return
	}
	p.setConnected(true)

	if status.Status != model.RFIDStatusActive || status.Timestamp == "" {
		return
	}
	if status.Timestamp == p.lastTimestamp {
		return
	}
	p.lastTimestamp = status.Timestamp

	switch status.Event {
	case model.RFIDEventTagPresent:
		if p.tagPresent {
			return
		}
		p.tagPresent = true
		p.handleTagPresent(status.Data)
	case model.RFIDEventTagAbsent:
		if !p.tagPresent {
			return
		}
		p.tagPresent = false
		logger.Info("tag removed, pausing playback")
		p.commander.Pause()
	default:
		logger.Warn("unknown RFID event", logger.String("event", status.Event))
	}
}

// handleTagPresent resolves the event's song and starts playback. Resolution
// prefers the active sequence so playback continues into its neighbors; a
// song known only to the catalog, or only to the event itself, plays as a
// standalone single-track sequence.
func (p *Poller) handleTagPresent(data *model.RFIDEventData) {
	if data == nil {
		logger.Warn("tag present event without data, ignoring")
		return
	}

	active := p.source.ActiveTracks()
	if _, idx, ok := lo.FindIndexOf(active, func(t model.Track) bool {
		return t.ID == data.SongID && data.SongID != 0
	}); ok {
		logger.Info("tag resolved within active sequence",
			logger.String("tag_id", data.TagID),
			logger.Int("index", idx))
		p.commander.SelectAndPlay(active, idx)
		return
	}

	if track, ok := lo.Find(p.source.Songs(), func(t model.Track) bool {
		return t.ID == data.SongID && data.SongID != 0
	}); ok {
		logger.Info("tag resolved from catalog",
			logger.String("tag_id", data.TagID),
			logger.String("title", track.Title))
		p.commander.SelectAndPlay([]model.Track{track}, 0)
		return
	}

	if data.Filename != "" {
		title := data.Title
		if title == "" {
			title = data.Name
		}
		logger.Info("tag resolved from event payload",
			logger.String("tag_id", data.TagID),
			logger.String("filename", data.Filename))
		p.commander.SelectAndPlay([]model.Track{{
			ID:       data.SongID,
			Title:    title,
			Filename: data.Filename,
		}}, 0)
		return
	}

	logger.Warn("tag present event references no playable song",
		logger.String("tag_id", data.TagID))
}

func (p *Poller) setConnected(up bool) {
	if p.connKnown && p.connected == up {
		return
	}
	p.connKnown = true
	p.connected = up

	if up {
		logger.Info("backend reachable")
	} else {
		logger.Warn("backend unreachable, will keep polling")
	}
	if p.onConnectivity != nil {
		p.onConnectivity(up)
	}
}
