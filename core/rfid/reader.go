package rfid

import (
	"context"
	"os"
	"strings"
	"time"

	"hoerbox/logger"
	"hoerbox/model"
)

// missThreshold is how many consecutive failed reads are tolerated before a
// tag counts as removed. RC522-class readers regularly drop single reads
// while the tag sits still on the box.
const missThreshold = 3

// TagReader reads the UID of the tag currently on the reader. ok is false
// when no tag answers.
type TagReader interface {
	ReadTag() (uid string, ok bool)
}

// EventPublisher publishes a presence event as the latest one.
type EventPublisher interface {
	Publish(ctx context.Context, event string, data *model.RFIDEventData) error
}

// TagResolver looks up tag registrations.
type TagResolver interface {
	GetTagByTagID(tagID string) (*model.RFIDTag, error)
	TouchLastUsed(tagID string) error
}

// SongLookup resolves a registered tag's song.
type SongLookup interface {
	GetSongByID(id int64) (*model.Track, error)
}

// Service drives the physical reader loop: it samples the reader at a fixed
// interval, debounces flaky reads and publishes presence edges.
type Service struct {
	reader    TagReader
	publisher EventPublisher
	tags      TagResolver
	songs     SongLookup
	interval  time.Duration

	currentTag string
	misses     int
}

// NewService creates a reader service sampling at interval.
func NewService(reader TagReader, publisher EventPublisher, tags TagResolver, songs SongLookup, interval time.Duration) *Service {
	return &Service{
		reader:    reader,
		publisher: publisher,
		tags:      tags,
		songs:     songs,
		interval:  interval,
	}
}

// Run samples the reader until the context is canceled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step(ctx)
		}
	}
}

// Step performs one sample cycle. Exported so tests can drive the loop
// without timers.
func (s *Service) Step(ctx context.Context) {
	uid, ok := s.reader.ReadTag()
	if ok {
		s.misses = 0
		if uid == s.currentTag {
			return
		}
		s.currentTag = uid
		s.publishPresent(ctx, uid)
		return
	}

	if s.currentTag == "" {
		return
	}
	s.misses++
	if s.misses <= missThreshold {
		return
	}

	gone := s.currentTag
	s.currentTag = ""
	s.misses = 0
	s.publishAbsent(ctx, gone)
}

func (s *Service) publishPresent(ctx context.Context, uid string) {
	data := &model.RFIDEventData{TagID: uid}

	tag, err := s.tags.GetTagByTagID(uid)
	if err != nil {
		logger.Warn("failed to look up tag", logger.String("tag_id", uid), logger.ErrorField(err))
	}
	if tag != nil {
		data.Name = tag.Name
		data.SongID = tag.SongID

		if err := s.tags.TouchLastUsed(uid); err != nil {
			logger.Warn("failed to record tag use", logger.String("tag_id", uid), logger.ErrorField(err))
		}
		song, err := s.songs.GetSongByID(tag.SongID)
		if err != nil {
			logger.Warn("failed to look up song for tag", logger.String("tag_id", uid), logger.ErrorField(err))
		}
		if song != nil {
			data.Filename = song.Filename
			data.Title = song.Title
		}
	}

	logger.Info("tag placed on reader",
		logger.String("tag_id", uid),
		logger.String("title", data.Title))
	if err := s.publisher.Publish(ctx, model.RFIDEventTagPresent, data); err != nil {
		logger.Error("failed to publish tag present event", logger.ErrorField(err))
	}
}

func (s *Service) publishAbsent(ctx context.Context, uid string) {
	logger.Info("tag removed from reader", logger.String("tag_id", uid))
	if err := s.publisher.Publish(ctx, model.RFIDEventTagAbsent, &model.RFIDEventData{TagID: uid}); err != nil {
		logger.Error("failed to publish tag absent event", logger.ErrorField(err))
	}
}

// FileReader is a TagReader backed by a plain text file holding the UID of
// the simulated tag, useful for development on machines without reader
// hardware. An empty or missing file means no tag.
type FileReader struct {
	Path string
}

func (f *FileReader) ReadTag() (string, bool) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return "", false
	}
	uid := strings.TrimSpace(string(raw))
	if uid == "" {
		return "", false
	}
	return uid, true
}
