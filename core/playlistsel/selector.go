package playlistsel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"

	"hoerbox/logger"
	"hoerbox/model"
)

// AllSongsView is the virtual view ID for the full catalog. Real playlist IDs
// start at 1.
const AllSongsView int64 = 0

// Backend is the slice of the API the selector needs.
type Backend interface {
	Songs(ctx context.Context) ([]model.Track, error)
	Playlists(ctx context.Context) ([]model.Playlist, error)
	CreatePlaylist(ctx context.Context, name string) (*model.Playlist, error)
	AppendPlaylistSong(ctx context.Context, playlistID int64, title, filename string) (*model.Track, error)
}

// Sessioner receives the new track sequence when the active view changes.
type Sessioner interface {
	ResetForSequence(tracks []model.Track)
}

// ValidationError is a user-facing input error, distinct from transport or
// backend failures.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// AddResult reports the outcome of adding one track to a playlist.
type AddResult struct {
	Track model.Track
	Err   error
}

// Selector owns which view (the full catalog or one playlist) feeds the
// playback session. Switching views always hands the session a fresh
// sequence; playback never continues across a view switch.
type Selector struct {
	mu      sync.Mutex
	api     Backend
	session Sessioner

	songs     []model.Track
	playlists []model.Playlist
	activeID  int64
}

// New creates a selector starting on the all-songs view.
func New(api Backend, session Sessioner) *Selector {
	return &Selector{api: api, session: session, activeID: AllSongsView}
}

// Refresh reloads the catalog and playlists from the backend.
func (s *Selector) Refresh(ctx context.Context) error {
	songs, err := s.api.Songs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load songs: %w", err)
	}
	playlists, err := s.api.Playlists(ctx)
	if err != nil {
		return fmt.Errorf("failed to load playlists: %w", err)
	}

	s.mu.Lock()
	s.songs = songs
	s.playlists = playlists
	s.mu.Unlock()
	return nil
}

// SelectView switches the active view and resets the session onto its track
// sequence. The view content is reloaded first so the sequence is
// authoritative, not a stale cache.
func (s *Selector) SelectView(ctx context.Context, viewID int64) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	tracks, err := s.viewTracksLocked(viewID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.activeID = viewID
	s.mu.Unlock()

	logger.Info("switching view",
		logger.Int64("view_id", viewID),
		logger.Int("tracks", len(tracks)))
	s.session.ResetForSequence(tracks)
	return nil
}

// ActiveID returns the active view ID.
func (s *Selector) ActiveID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// ActiveTracks returns the track sequence of the active view.
func (s *Selector) ActiveTracks() []model.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks, err := s.viewTracksLocked(s.activeID)
	if err != nil {
		return nil
	}
	return tracks
}

// Songs returns the cached catalog.
func (s *Selector) Songs() []model.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Track(nil), s.songs...)
}

// Playlists returns the cached playlists.
func (s *Selector) Playlists() []model.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Playlist(nil), s.playlists...)
}

// CreatePlaylist creates a playlist after trimming and validating the name.
func (s *Selector) CreatePlaylist(ctx context.Context, name string) (*model.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Msg: "playlist name is required"}
	}

	p, err := s.api.CreatePlaylist(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// AddTracks appends tracks to a playlist one by one, reporting a result per
// track so a single failure does not abort the batch. The playlist cache is
// reloaded afterwards so callers see the backend's view, not an optimistic
// local one.
func (s *Selector) AddTracks(ctx context.Context, playlistID int64, tracks []model.Track) []AddResult {
	results := lo.Map(tracks, func(t model.Track, _ int) AddResult {
		_, err := s.api.AppendPlaylistSong(ctx, playlistID, t.Title, t.Filename)
		if err != nil {
			logger.Warn("failed to add track to playlist",
				logger.Int64("playlist_id", playlistID),
				logger.String("title", t.Title),
				logger.ErrorField(err))
		}
		return AddResult{Track: t, Err: err}
	})

	if err := s.Refresh(ctx); err != nil {
		logger.Warn("failed to reload playlists after adding tracks", logger.ErrorField(err))
	}
	return results
}

func (s *Selector) viewTracksLocked(viewID int64) ([]model.Track, error) {
	if viewID == AllSongsView {
		return append([]model.Track(nil), s.songs...), nil
	}
	p, ok := lo.Find(s.playlists, func(p model.Playlist) bool {
		return p.ID == viewID
	})
	if !ok {
		return nil, fmt.Errorf("playlist %d not found", viewID)
	}
	return append([]model.Track(nil), p.Tracks...), nil
}
